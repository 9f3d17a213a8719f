// Package imageprep turns raw evidence images into bounded JPEG payloads
// ready for embedding: rotate, crop, downscale, re-encode.
package imageprep

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"

	xdraw "golang.org/x/image/draw"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Sentinel errors for image preparation.
var (
	ErrUnsupportedFormat = errors.New("imageprep: unsupported or corrupt image")
	ErrInvalidRotation   = errors.New("imageprep: rotation must be a multiple of 90 degrees")
	ErrEmptyCrop         = errors.New("imageprep: crop region lies outside the image")
)

// DefaultMaxDimension bounds the longest axis of prepared images, in pixels.
const DefaultMaxDimension = 1600

const defaultQuality = 85

// Rect is a crop rectangle in post-rotation pixel coordinates.
type Rect struct {
	X, Y, W, H int
}

// Options controls one preparation. Rotation is applied first (clockwise
// quarter turns), then Crop in the rotated coordinate space, then a
// downscale so neither axis exceeds MaxDimension. Images are never
// upscaled.
type Options struct {
	Rotation     int
	Crop         *Rect
	MaxDimension int
	Quality      int
}

// Prepared is a ready-to-embed image payload.
type Prepared struct {
	Data   []byte
	Width  int
	Height int
}

// Prepare decodes, transforms, and re-encodes one image.
// Unreadable input returns ErrUnsupportedFormat.
func Prepare(r io.Reader, opts Options) (*Prepared, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	img, err := rotate(src, opts.Rotation)
	if err != nil {
		return nil, err
	}
	if opts.Crop != nil {
		img, err = crop(img, *opts.Crop)
		if err != nil {
			return nil, err
		}
	}

	maxDim := opts.MaxDimension
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}
	img = scaleDown(img, maxDim)

	quality := opts.Quality
	if quality <= 0 {
		quality = defaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("imageprep: encode: %w", err)
	}
	b := img.Bounds()
	return &Prepared{Data: buf.Bytes(), Width: b.Dx(), Height: b.Dy()}, nil
}

// PrepareFile is Prepare reading from a file on disk.
func PrepareFile(path string, opts Options) (*Prepared, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("imageprep: open %s: %w", path, err)
	}
	defer f.Close()
	return Prepare(f, opts)
}

// rotate applies a clockwise quarter-turn rotation.
func rotate(src image.Image, degrees int) (image.Image, error) {
	turns := ((degrees % 360) + 360) % 360
	if turns%90 != 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRotation, degrees)
	}
	if turns == 0 {
		return src, nil
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	var dst *image.RGBA
	switch turns {
	case 90, 270:
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
	default:
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := src.At(b.Min.X+x, b.Min.Y+y)
			switch turns {
			case 90:
				dst.Set(h-1-y, x, c)
			case 180:
				dst.Set(w-1-x, h-1-y, c)
			case 270:
				dst.Set(y, w-1-x, c)
			}
		}
	}
	return dst, nil
}

// crop copies the region out of img, clamped to the image bounds.
func crop(img image.Image, r Rect) (image.Image, error) {
	b := img.Bounds()
	region := image.Rect(b.Min.X+r.X, b.Min.Y+r.Y, b.Min.X+r.X+r.W, b.Min.Y+r.Y+r.H)
	region = region.Intersect(b)
	if region.Empty() {
		return nil, ErrEmptyCrop
	}
	dst := image.NewRGBA(image.Rect(0, 0, region.Dx(), region.Dy()))
	xdraw.Copy(dst, image.Point{}, img, region, xdraw.Over, nil)
	return dst, nil
}

// scaleDown resizes so both axes fit maxDim, preserving aspect ratio.
func scaleDown(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}
	scale := float64(maxDim) / float64(w)
	if h > w {
		scale = float64(maxDim) / float64(h)
	}
	tw := int(float64(w)*scale + 0.5)
	th := int(float64(h)*scale + 0.5)
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}
