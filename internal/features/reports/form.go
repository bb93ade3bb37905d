package reports

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/apex/log"
	"github.com/google/uuid"

	"github.com/tlemoine/signalmap/internal/features/imaging"
)

// FormState is where a form session sits in its lifecycle.
type FormState string

const (
	StateIdle        FormState = "idle"
	StateCollecting  FormState = "collecting"
	StateCompressing FormState = "compressing"
	StateSubmitting  FormState = "submitting"
)

var (
	ErrFormClosed = errors.New("no form session open")
	ErrFormBusy   = errors.New("a submission is already in flight")
)

// photoTooLargeMsg tells the user what to actually do about it.
const photoTooLargeMsg = "A photo is still too large after compression. Remove it and pick a smaller image."

// PendingPhoto is a photo attached to an in-progress form: a locally
// generated id, the original filename, and the raw bytes. It exists only
// for the lifetime of the session.
type PendingPhoto struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int    `json:"size"`
	Data []byte `json:"-"`
}

// FieldPatch updates the editable fields of an open form. Nil members are
// left unchanged.
type FieldPatch struct {
	Title           *string  `json:"title"`
	Description     *string  `json:"description"`
	AreaSqMeters    *float64 `json:"areaSqMeters"`
	Budget          *float64 `json:"budget"`
	ProgressPercent *int     `json:"progressPercent"`
	ResponsibleOrg  *string  `json:"responsibleOrg"`
}

// Snapshot is the read view of the session for the UI glue.
type Snapshot struct {
	State     FormState      `json:"state"`
	Draft     Draft          `json:"draft"`
	Photos    []PendingPhoto `json:"photos"`
	Error     string         `json:"error,omitempty"`
	CanSubmit bool           `json:"canSubmit"`
}

// Form is the state machine over a single in-progress submission:
// Idle -> Collecting -> Compressing -> Submitting -> Idle on success,
// back to Collecting with everything intact on failure. The Submitting
// state doubles as the mutual-exclusion device: a second submit while one
// is in flight is refused, never queued.
type Form struct {
	pipeline *imaging.Pipeline
	svc      *Service

	mu      sync.Mutex
	state   FormState
	draft   Draft
	photos  []PendingPhoto
	lastErr string
}

func NewForm(pipeline *imaging.Pipeline, svc *Service) *Form {
	return &Form{
		pipeline: pipeline,
		svc:      svc,
		state:    StateIdle,
	}
}

// Open starts (or re-anchors) a session at the clicked coordinate.
// Clicking the map while already collecting moves the anchor instead of
// discarding the draft.
func (f *Form) Open(lat, lng float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case StateCompressing, StateSubmitting:
		return ErrFormBusy
	case StateIdle:
		f.draft = Draft{Latitude: lat, Longitude: lng}
		f.photos = nil
		f.lastErr = ""
		f.state = StateCollecting
	default:
		f.draft.Latitude = lat
		f.draft.Longitude = lng
	}
	return nil
}

// SetFields edits the draft. Legal only while collecting.
func (f *Form) SetFields(patch FieldPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.requireCollecting(); err != nil {
		return err
	}

	if patch.Title != nil {
		f.draft.Title = *patch.Title
	}
	if patch.Description != nil {
		f.draft.Description = *patch.Description
	}
	if patch.AreaSqMeters != nil {
		f.draft.AreaSqMeters = patch.AreaSqMeters
	}
	if patch.Budget != nil {
		f.draft.Budget = patch.Budget
	}
	if patch.ProgressPercent != nil {
		p := *patch.ProgressPercent
		if p < 0 {
			p = 0
		}
		if p > 100 {
			p = 100
		}
		f.draft.ProgressPercent = p
	}
	if patch.ResponsibleOrg != nil {
		f.draft.ResponsibleOrg = *patch.ResponsibleOrg
	}
	return nil
}

// AddPhotos attaches captured images, truncating past the cap. The
// truncated flag is a warning for the UI, not an error.
func (f *Form) AddPhotos(raws []imaging.RawImage) (truncated bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.requireCollecting(); err != nil {
		return false, err
	}

	room := imaging.MaxBatch - len(f.photos)
	if room <= 0 {
		return len(raws) > 0, nil
	}
	if len(raws) > room {
		raws = raws[:room]
		truncated = true
	}

	for _, raw := range raws {
		f.photos = append(f.photos, PendingPhoto{
			ID:   uuid.NewString(),
			Name: raw.Name,
			Size: len(raw.Data),
			Data: raw.Data,
		})
	}
	return truncated, nil
}

// RemovePhoto drops a pending photo by its local id. Always legal while
// the form is open.
func (f *Form) RemovePhoto(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, p := range f.photos {
		if p.ID == id {
			f.photos = append(f.photos[:i], f.photos[i+1:]...)
			return true
		}
	}
	return false
}

// Cancel discards the session. Legal from Collecting (including the
// failed display), refused mid-flight.
func (f *Form) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case StateIdle:
		return ErrFormClosed
	case StateCompressing, StateSubmitting:
		return ErrFormBusy
	}

	f.reset()
	return nil
}

// Submit runs the compression pipeline over the pending photos, then the
// remote create. On any failure the draft and photos survive so the user
// can correct and retry.
func (f *Form) Submit(ctx context.Context) (string, error) {
	f.mu.Lock()
	switch f.state {
	case StateIdle:
		f.mu.Unlock()
		return "", ErrFormClosed
	case StateCompressing, StateSubmitting:
		f.mu.Unlock()
		return "", ErrFormBusy
	}
	if strings.TrimSpace(f.draft.Title) == "" {
		f.lastErr = ErrTitleRequired.Error()
		f.mu.Unlock()
		return "", ErrTitleRequired
	}

	f.state = StateCompressing
	f.lastErr = ""
	raws := make([]imaging.RawImage, len(f.photos))
	for i, p := range f.photos {
		raws[i] = imaging.RawImage{Name: p.Name, Data: p.Data}
	}
	draft := f.draft
	f.mu.Unlock()

	encoded, err := f.pipeline.CompressBatch(raws)
	if err != nil {
		f.fail(photoFailureMessage(err))
		return "", err
	}

	draft.Photos = make([]Photo, len(encoded))
	for i, data := range encoded {
		draft.Photos[i] = Photo{Name: raws[i].Name, Data: data}
	}

	f.mu.Lock()
	f.state = StateSubmitting
	f.mu.Unlock()

	id, err := f.svc.Create(ctx, draft)
	if err != nil {
		// Remote/store messages pass through verbatim for diagnostics.
		f.fail(err.Error())
		return "", err
	}

	f.mu.Lock()
	f.reset()
	f.mu.Unlock()

	log.WithField("id", id).Info("form submitted")
	return id, nil
}

// View returns the current session snapshot.
func (f *Form) View() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	photos := make([]PendingPhoto, len(f.photos))
	copy(photos, f.photos)

	return Snapshot{
		State:     f.state,
		Draft:     f.draft,
		Photos:    photos,
		Error:     f.lastErr,
		CanSubmit: f.state == StateCollecting && strings.TrimSpace(f.draft.Title) != "",
	}
}

func (f *Form) requireCollecting() error {
	switch f.state {
	case StateIdle:
		return ErrFormClosed
	case StateCompressing, StateSubmitting:
		return ErrFormBusy
	}
	return nil
}

// fail returns the session to Collecting with fields and photos intact.
func (f *Form) fail(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = StateCollecting
	f.lastErr = msg
}

func (f *Form) reset() {
	f.state = StateIdle
	f.draft = Draft{}
	f.photos = nil
	f.lastErr = ""
}

func photoFailureMessage(err error) string {
	if errors.Is(err, imaging.ErrPhotoTooLarge) {
		return photoTooLargeMsg
	}
	return err.Error()
}
