package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"sync"

	"github.com/apex/log"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"
)

// ErrPhotoTooLarge means the image still exceeds the per-photo ceiling
// after the full compression ladder. The submission owning it must be
// rejected as a whole, never silently trimmed.
var ErrPhotoTooLarge = errors.New("photo exceeds size limit after compression")

// The two-try ladder. Not iterative: one retry at reduced size/quality,
// then give up.
var ladder = []struct {
	maxDim  int
	quality int
}{
	{800, 60},
	{600, 50},
}

// safetyMargin keeps encoded photos clear of the ceiling so the document
// envelope never tips a field over the backend limit.
const safetyMargin = 50_000

// Config bounds the pipeline output. Zero values fall back to the
// defaults used by the mobile app.
type Config struct {
	MaxSingleBytes int
	MaxTotalBytes  int
}

func (c Config) withDefaults() Config {
	if c.MaxSingleBytes <= 0 {
		c.MaxSingleBytes = 900_000
	}
	if c.MaxTotalBytes <= 0 {
		c.MaxTotalBytes = 3_000_000
	}
	return c
}

// Pipeline turns raw captured images into size-bounded JPEGs.
type Pipeline struct {
	cfg Config
}

func NewPipeline(cfg Config) *Pipeline {
	return &Pipeline{cfg: cfg.withDefaults()}
}

func (p *Pipeline) MaxSingleBytes() int { return p.cfg.MaxSingleBytes }
func (p *Pipeline) MaxTotalBytes() int  { return p.cfg.MaxTotalBytes }

// Compress re-encodes one image through the ladder. An image that is
// already within the first rung's dimensions and under the ceiling is
// returned unchanged, bytes intact.
func (p *Pipeline) Compress(data []byte) ([]byte, error) {
	limit := p.cfg.MaxSingleBytes - safetyMargin

	orientation := readOrientation(data)

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if orientation != 1 {
		img = correctOrientation(img, orientation)
	}

	bounds := img.Bounds()
	if longest(bounds) <= ladder[0].maxDim && len(data) <= limit && orientation == 1 {
		return data, nil
	}

	for _, rung := range ladder {
		encoded, err := encodeScaled(img, rung.maxDim, rung.quality)
		if err != nil {
			return nil, err
		}
		if len(encoded) <= limit {
			log.Debugf("image compressed: %d bytes -> %d bytes (max %dpx, q%d)",
				len(data), len(encoded), rung.maxDim, rung.quality)
			return encoded, nil
		}
	}

	return nil, ErrPhotoTooLarge
}

// CompressBatch compresses up to MaxBatch images concurrently. It fails
// the whole batch on the first error so a partial photo set never reaches
// a submission.
func (p *Pipeline) CompressBatch(raws []RawImage) ([][]byte, error) {
	results := make([][]byte, len(raws))
	errs := make([]error, len(raws))

	var wg sync.WaitGroup
	for i, raw := range raws {
		wg.Add(1)
		go func(i int, data []byte) {
			defer wg.Done()
			results[i], errs[i] = p.Compress(data)
		}(i, raw.Data)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("photo %q: %w", raws[i].Name, err)
		}
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	if total > p.cfg.MaxTotalBytes {
		return nil, fmt.Errorf("photos total %d bytes: %w", total, ErrPhotoTooLarge)
	}

	return results, nil
}

func longest(b image.Rectangle) int {
	if b.Dx() > b.Dy() {
		return b.Dx()
	}
	return b.Dy()
}

func encodeScaled(img image.Image, maxDim, quality int) ([]byte, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if w > maxDim || h > maxDim {
		scale := float64(maxDim) / float64(w)
		if sy := float64(maxDim) / float64(h); sy < scale {
			scale = sy
		}
		nw, nh := int(float64(w)*scale), int(float64(h)*scale)
		if nw < 1 {
			nw = 1
		}
		if nh < 1 {
			nh = 1
		}
		scaled := image.NewRGBA(image.Rect(0, 0, nw, nh))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)
		img = scaled
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// readOrientation extracts the EXIF orientation tag, defaulting to 1 when
// the image carries none.
func readOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	val, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return val
}

func correctOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return transform(img, false, func(w, h, x, y int) (int, int) { return w - 1 - x, y })
	case 3:
		return transform(img, false, func(w, h, x, y int) (int, int) { return w - 1 - x, h - 1 - y })
	case 4:
		return transform(img, false, func(w, h, x, y int) (int, int) { return x, h - 1 - y })
	case 5:
		return transform(img, true, func(w, h, x, y int) (int, int) { return y, x })
	case 6:
		return transform(img, true, func(w, h, x, y int) (int, int) { return h - 1 - y, x })
	case 7:
		return transform(img, true, func(w, h, x, y int) (int, int) { return h - 1 - y, w - 1 - x })
	case 8:
		return transform(img, true, func(w, h, x, y int) (int, int) { return y, w - 1 - x })
	default:
		return img
	}
}

// transform remaps every pixel through f. swapAxes is true for the
// rotations that turn a WxH image into HxW.
func transform(img image.Image, swapAxes bool, f func(w, h, x, y int) (int, int)) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	var dst *image.RGBA
	if swapAxes {
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
	} else {
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			nx, ny := f(w, h, x, y)
			dst.Set(nx, ny, img.At(bounds.Min.X+x, bounds.Min.Y+y))
		}
	}
	return dst
}
