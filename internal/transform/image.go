package transform

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // register png decoder for image.Decode

	xdraw "golang.org/x/image/draw"
)

// ImageReencoder decodes an image, downsamples it to fit within MaxWidth x
// MaxHeight (keeping aspect ratio; images already inside the bounds are left
// at their size), and re-encodes it as JPEG. It demonstrates the Transformer
// contract used for image normalization; a WebP encoder plugs in the same way.
type ImageReencoder struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
}

// NewImageReencoder creates an ImageReencoder with sane bounds.
func NewImageReencoder(maxWidth, maxHeight, quality int) *ImageReencoder {
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	if maxWidth <= 0 {
		maxWidth = 1600
	}
	if maxHeight <= 0 {
		maxHeight = 1600
	}
	return &ImageReencoder{MaxWidth: maxWidth, MaxHeight: maxHeight, Quality: quality}
}

var _ Transformer = (*ImageReencoder)(nil)

func (t *ImageReencoder) Transform(content []byte, mimeType string) (Result, error) {
	img, format, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return Result{}, fmt.Errorf("decode image: %w", err)
	}

	resized := t.resize(img)

	var buf bytes.Buffer
	switch format {
	case "jpeg", "png":
		if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: t.Quality}); err != nil {
			return Result{}, fmt.Errorf("encode jpeg: %w", err)
		}
	default:
		return Result{}, fmt.Errorf("unsupported image format: %s", format)
	}

	return Result{
		Content:  buf.Bytes(),
		Suffix:   ".jpg",
		MimeType: "image/jpeg",
	}, nil
}

func (t *ImageReencoder) resize(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= t.MaxWidth && h <= t.MaxHeight {
		return img
	}

	ratio := float64(t.MaxWidth) / float64(w)
	if r := float64(t.MaxHeight) / float64(h); r < ratio {
		ratio = r
	}
	nw := int(float64(w) * ratio)
	nh := int(float64(h) * ratio)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}
