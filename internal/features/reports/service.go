package reports

import (
	"context"
	"fmt"

	"github.com/apex/log"

	"github.com/tlemoine/signalmap/internal/features/auth"
	"github.com/tlemoine/signalmap/internal/remote"
	apperrors "github.com/tlemoine/signalmap/pkg/errors"
)

// PhotoStorer offloads encoded photos to external storage, returning the
// URL to persist instead of the inline bytes. Optional.
type PhotoStorer interface {
	Store(ctx context.Context, name string, data []byte) (string, error)
}

// Service performs the remote create/delete operations for reports. The
// mirror stays untouched here: results only land locally through the live
// feed echo.
type Service struct {
	store    remote.Store
	mirror   *Mirror
	identity *auth.Identity
	photos   PhotoStorer

	maxSingleBytes int
	maxTotalBytes  int
}

func NewService(store remote.Store, mirror *Mirror, identity *auth.Identity, maxSingleBytes, maxTotalBytes int) *Service {
	return &Service{
		store:          store,
		mirror:         mirror,
		identity:       identity,
		maxSingleBytes: maxSingleBytes,
		maxTotalBytes:  maxTotalBytes,
	}
}

// WithPhotoStorer enables external photo offload.
func (s *Service) WithPhotoStorer(ps PhotoStorer) *Service {
	s.photos = ps
	return s
}

// Create validates the draft and persists it. Returns the generated id.
// The report is not inserted locally; the feed echo is the single source
// of truth.
func (s *Service) Create(ctx context.Context, d Draft) (string, error) {
	user, ok := s.identity.Current()
	if !ok {
		return "", fmt.Errorf("create report: %w", apperrors.ErrUnauthorized)
	}

	if err := ValidateDraft(d, s.maxSingleBytes, s.maxTotalBytes); err != nil {
		return "", err
	}

	if s.photos != nil {
		for i, p := range d.Photos {
			url, err := s.photos.Store(ctx, p.Name, p.Data)
			if err != nil {
				return "", fmt.Errorf("photo upload failed: %w", err)
			}
			d.Photos[i].URL = url
			d.Photos[i].Data = nil
		}
	}

	id, err := s.store.Insert(ctx, Collection, toDocument(d, user.ID, user.Label))
	if err != nil {
		return "", err
	}

	log.WithFields(log.Fields{"id": id, "title": d.Title, "photos": len(d.Photos)}).
		Info("report created")
	return id, nil
}

// Delete removes a report. Only its creator may delete it; the check here
// is defensive, the remote store remains the authority.
func (s *Service) Delete(ctx context.Context, id string) error {
	user, ok := s.identity.Current()
	if !ok {
		return fmt.Errorf("delete report: %w", apperrors.ErrUnauthorized)
	}

	r, found := s.mirror.Get(id)
	if !found {
		return fmt.Errorf("report %s: %w", id, apperrors.ErrNotFound)
	}
	if r.CreatorID != user.ID {
		return fmt.Errorf("report %s belongs to another user: %w", id, apperrors.ErrUnauthorized)
	}

	if err := s.store.Delete(ctx, Collection, id); err != nil {
		return err
	}

	log.WithField("id", id).Info("report deleted")
	return nil
}

// CanDelete reports whether the detail view should offer deletion.
func (s *Service) CanDelete(r Report) bool {
	user, ok := s.identity.Current()
	return ok && r.CreatorID == user.ID
}
