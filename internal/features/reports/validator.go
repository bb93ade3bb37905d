package reports

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tlemoine/signalmap/internal/features/imaging"
)

var (
	ErrTitleRequired  = errors.New("title is required")
	ErrTooManyPhotos  = fmt.Errorf("a report holds at most %d photos", imaging.MaxBatch)
	ErrPhotoOversized = errors.New("a photo exceeds the per-photo size limit")
	ErrPayloadTooBig  = errors.New("photos exceed the total size limit")
)

// ValidateDraft runs every client-side check before any remote call:
// non-empty title, photo count, per-photo ceiling, total ceiling.
// Violations are rejected synchronously, the draft untouched.
func ValidateDraft(d Draft, maxSingleBytes, maxTotalBytes int) error {
	if strings.TrimSpace(d.Title) == "" {
		return ErrTitleRequired
	}
	if len(d.Photos) > imaging.MaxBatch {
		return ErrTooManyPhotos
	}

	total := 0
	for _, p := range d.Photos {
		if len(p.Data) > maxSingleBytes {
			return fmt.Errorf("photo %q is %d bytes: %w", p.Name, len(p.Data), ErrPhotoOversized)
		}
		total += len(p.Data)
	}
	if total > maxTotalBytes {
		return fmt.Errorf("photos total %d bytes: %w", total, ErrPayloadTooBig)
	}

	return nil
}
