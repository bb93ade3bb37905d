package reports

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tlemoine/signalmap/internal/features/auth"
	"github.com/tlemoine/signalmap/internal/features/imaging"
)

func formTestJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8((x * 31) % 256), G: uint8((y * 17) % 256), B: uint8((x ^ y) % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func newTestForm(t *testing.T, store *fakeStore, cfg imaging.Config) *Form {
	t.Helper()
	identity := auth.NewIdentity()
	identity.SignIn(auth.User{ID: "u1", Label: "u1@example.com"})
	svc, _ := newTestService(store, identity)
	return NewForm(imaging.NewPipeline(cfg), svc)
}

func TestFormLifecycle(t *testing.T) {
	store := newFakeStore()
	f := newTestForm(t, store, imaging.Config{})

	require.Equal(t, StateIdle, f.View().State)

	require.NoError(t, f.Open(48.85, 2.35))
	snap := f.View()
	require.Equal(t, StateCollecting, snap.State)
	require.Equal(t, 48.85, snap.Draft.Latitude)
	require.False(t, snap.CanSubmit, "no title yet")

	title := "Pothole"
	progress := 150
	require.NoError(t, f.SetFields(FieldPatch{Title: &title, ProgressPercent: &progress}))
	snap = f.View()
	require.Equal(t, "Pothole", snap.Draft.Title)
	require.Equal(t, 100, snap.Draft.ProgressPercent, "progress is clamped to 0..100")
	require.True(t, snap.CanSubmit)

	id, err := f.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, "generated-id", id)
	require.Equal(t, 1, store.insertCount())

	// Success wipes the session.
	snap = f.View()
	require.Equal(t, StateIdle, snap.State)
	require.Empty(t, snap.Draft.Title)
	require.Empty(t, snap.Photos)
}

func TestFormOperationsRequireOpenSession(t *testing.T) {
	f := newTestForm(t, newFakeStore(), imaging.Config{})

	title := "x"
	require.ErrorIs(t, f.SetFields(FieldPatch{Title: &title}), ErrFormClosed)
	_, err := f.AddPhotos([]imaging.RawImage{{Name: "a.jpg"}})
	require.ErrorIs(t, err, ErrFormClosed)
	require.ErrorIs(t, f.Cancel(), ErrFormClosed)
	_, err = f.Submit(context.Background())
	require.ErrorIs(t, err, ErrFormClosed)
}

func TestFormReanchorsOnSecondClick(t *testing.T) {
	f := newTestForm(t, newFakeStore(), imaging.Config{})

	require.NoError(t, f.Open(48.85, 2.35))
	title := "Pothole"
	require.NoError(t, f.SetFields(FieldPatch{Title: &title}))
	_, err := f.AddPhotos([]imaging.RawImage{{Name: "a.jpg", Data: []byte{1}}})
	require.NoError(t, err)

	// Clicking elsewhere moves the anchor, keeps the rest.
	require.NoError(t, f.Open(45.76, 4.83))
	snap := f.View()
	require.Equal(t, StateCollecting, snap.State)
	require.Equal(t, 45.76, snap.Draft.Latitude)
	require.Equal(t, "Pothole", snap.Draft.Title)
	require.Len(t, snap.Photos, 1)
}

func TestFormSubmitWithoutTitle(t *testing.T) {
	store := newFakeStore()
	f := newTestForm(t, store, imaging.Config{})
	require.NoError(t, f.Open(48.85, 2.35))

	_, err := f.Submit(context.Background())
	require.ErrorIs(t, err, ErrTitleRequired)
	require.Zero(t, store.insertCount())

	snap := f.View()
	require.Equal(t, StateCollecting, snap.State)
	require.Equal(t, ErrTitleRequired.Error(), snap.Error)
}

func TestFormPhotoCapTruncates(t *testing.T) {
	f := newTestForm(t, newFakeStore(), imaging.Config{})
	require.NoError(t, f.Open(48.85, 2.35))

	raws := make([]imaging.RawImage, imaging.MaxBatch+2)
	for i := range raws {
		raws[i] = imaging.RawImage{Name: "p.jpg", Data: []byte{byte(i)}}
	}

	truncated, err := f.AddPhotos(raws)
	require.NoError(t, err)
	require.True(t, truncated)
	require.Len(t, f.View().Photos, imaging.MaxBatch)

	// Already full: further adds are silently refused with the warning.
	truncated, err = f.AddPhotos([]imaging.RawImage{{Name: "extra.jpg"}})
	require.NoError(t, err)
	require.True(t, truncated)
	require.Len(t, f.View().Photos, imaging.MaxBatch)
}

func TestFormRemovePhoto(t *testing.T) {
	f := newTestForm(t, newFakeStore(), imaging.Config{})
	require.NoError(t, f.Open(48.85, 2.35))

	_, err := f.AddPhotos([]imaging.RawImage{
		{Name: "a.jpg", Data: []byte{1}},
		{Name: "b.jpg", Data: []byte{2}},
	})
	require.NoError(t, err)

	photos := f.View().Photos
	require.Len(t, photos, 2)

	require.True(t, f.RemovePhoto(photos[0].ID))
	remaining := f.View().Photos
	require.Len(t, remaining, 1)
	require.Equal(t, "b.jpg", remaining[0].Name)

	require.False(t, f.RemovePhoto("no-such-id"))
}

func TestFormSubmitFailurePreservesEverything(t *testing.T) {
	store := newFakeStore()
	// Ceiling below the safety margin headroom: compression cannot win.
	f := newTestForm(t, store, imaging.Config{MaxSingleBytes: 51_000})

	require.NoError(t, f.Open(48.85, 2.35))
	title := "Pothole"
	require.NoError(t, f.SetFields(FieldPatch{Title: &title}))
	_, err := f.AddPhotos([]imaging.RawImage{{Name: "big.jpg", Data: formTestJPEG(t, 2000, 1500)}})
	require.NoError(t, err)

	_, err = f.Submit(context.Background())
	require.ErrorIs(t, err, imaging.ErrPhotoTooLarge)
	require.Zero(t, store.insertCount(), "compression failure never reaches the store")

	snap := f.View()
	require.Equal(t, StateCollecting, snap.State, "failure returns to collecting")
	require.Equal(t, "Pothole", snap.Draft.Title)
	require.Len(t, snap.Photos, 1, "the offending photo stays so the user can remove it")
	require.Equal(t, photoTooLargeMsg, snap.Error)
}

func TestFormRemoteFailureSurfacesVerbatim(t *testing.T) {
	store := newFakeStore()
	store.insertErr = context.DeadlineExceeded
	f := newTestForm(t, store, imaging.Config{})

	require.NoError(t, f.Open(48.85, 2.35))
	title := "Pothole"
	require.NoError(t, f.SetFields(FieldPatch{Title: &title}))

	_, err := f.Submit(context.Background())
	require.Error(t, err)

	snap := f.View()
	require.Equal(t, StateCollecting, snap.State)
	require.Equal(t, err.Error(), snap.Error, "remote message passes through verbatim")
	require.Equal(t, "Pothole", snap.Draft.Title)
}

func TestFormCancelDiscardsSession(t *testing.T) {
	f := newTestForm(t, newFakeStore(), imaging.Config{})
	require.NoError(t, f.Open(48.85, 2.35))
	title := "Pothole"
	require.NoError(t, f.SetFields(FieldPatch{Title: &title}))

	require.NoError(t, f.Cancel())
	snap := f.View()
	require.Equal(t, StateIdle, snap.State)
	require.Empty(t, snap.Draft.Title)
}

func TestFormRefusesConcurrentSubmit(t *testing.T) {
	store := newFakeStore()
	f := newTestForm(t, store, imaging.Config{})
	require.NoError(t, f.Open(48.85, 2.35))
	title := "Pothole"
	require.NoError(t, f.SetFields(FieldPatch{Title: &title}))

	// Force the in-flight state by hand; the machine must refuse everything
	// except View until the flight lands.
	f.mu.Lock()
	f.state = StateSubmitting
	f.mu.Unlock()

	_, err := f.Submit(context.Background())
	require.ErrorIs(t, err, ErrFormBusy)
	require.ErrorIs(t, f.Cancel(), ErrFormBusy)
	require.ErrorIs(t, f.Open(1, 1), ErrFormBusy)
	require.ErrorIs(t, f.SetFields(FieldPatch{Title: &title}), ErrFormBusy)
	require.Zero(t, store.insertCount())
}
