package imaging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// MaxBatch is the photo cap per capture invocation and per report.
const MaxBatch = 5

// RawImage is an undecoded picture straight from a capture source.
type RawImage struct {
	Name string
	Data []byte
}

// Source is a device collaborator handing over raw images: the platform
// camera, the gallery picker, or the gateway upload bridge.
type Source interface {
	Pick(ctx context.Context) ([]RawImage, error)
}

// Capture pulls images from a source, truncating anything past max. The
// truncated flag is a warning for the caller, not an error.
func Capture(ctx context.Context, src Source, max int) (images []RawImage, truncated bool, err error) {
	if max <= 0 || max > MaxBatch {
		max = MaxBatch
	}

	images, err = src.Pick(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("capture failed: %w", err)
	}

	if len(images) > max {
		images = images[:max]
		truncated = true
	}
	return images, truncated, nil
}

// FileSource reads images from local paths. It backs the gallery side of
// the capture contract for the headless agent.
type FileSource struct {
	Paths []string
}

func (s FileSource) Pick(ctx context.Context) ([]RawImage, error) {
	images := make([]RawImage, 0, len(s.Paths))
	for _, p := range s.Paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		images = append(images, RawImage{Name: filepath.Base(p), Data: data})
	}
	return images, nil
}

// StaticSource returns a fixed image set. Used by tests and by the
// gateway, which receives the bytes in a multipart upload.
type StaticSource []RawImage

func (s StaticSource) Pick(ctx context.Context) ([]RawImage, error) {
	return s, nil
}
