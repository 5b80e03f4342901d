// Package raster prepares image sources for the OCR and vision tiers.
//
// PNG and JPEG files are passed through untouched when they fit. TIFF, BMP
// and WebP are decoded and re-encoded as PNG, which every engine accepts.
// Images larger than a caller-supplied bound are downscaled.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"github.com/thywilljoshua/docladder/internal/document"
)

var ErrNotImage = errors.New("raster: not an image format")

// Image is an encoded raster ready to hand to an engine. Width and Height
// are zero for pass-through images whose header was not inspected.
type Image struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}

type codec struct {
	mime   string
	decode func(io.Reader) (image.Image, error)
	config func(io.Reader) (image.Config, error)
}

var codecs = map[document.Format]codec{
	document.FormatPNG:  {"image/png", png.Decode, png.DecodeConfig},
	document.FormatJPG:  {"image/jpeg", jpeg.Decode, jpeg.DecodeConfig},
	document.FormatTIFF: {"image/tiff", tiff.Decode, tiff.DecodeConfig},
	document.FormatBMP:  {"image/bmp", bmp.Decode, bmp.DecodeConfig},
	document.FormatWebP: {"image/webp", webp.Decode, webp.DecodeConfig},
}

// native reports whether engines take the format as is.
func native(f document.Format) bool { return f == document.FormatPNG || f == document.FormatJPG }

// Load reads the image at path and prepares it with Encode.
func Load(path string, maxSide int) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("raster: %w", err)
	}
	return Encode(data, document.FormatFromPath(path), maxSide)
}

// Encode prepares data of the given format. A maxSide of 0 or less
// disables scaling.
func Encode(data []byte, format document.Format, maxSide int) (*Image, error) {
	c, ok := codecs[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotImage, format)
	}
	if native(format) && maxSide <= 0 {
		return &Image{Data: data, MIMEType: c.mime}, nil
	}

	cfg, err := c.config(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("raster: read %s header: %w", format, err)
	}
	fits := maxSide <= 0 || max(cfg.Width, cfg.Height) <= maxSide
	if native(format) && fits {
		return &Image{Data: data, MIMEType: c.mime, Width: cfg.Width, Height: cfg.Height}, nil
	}

	img, err := c.decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("raster: decode %s: %w", format, err)
	}
	if !fits {
		img = Scale(img, maxSide)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("raster: encode png: %w", err)
	}
	b := img.Bounds()
	return &Image{Data: buf.Bytes(), MIMEType: "image/png", Width: b.Dx(), Height: b.Dy()}, nil
}

// Scale resizes img so its longest side is maxSide, keeping the aspect
// ratio.
func Scale(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	f := float64(maxSide) / float64(max(b.Dx(), b.Dy()))
	w := max(1, int(math.Round(float64(b.Dx())*f)))
	h := max(1, int(math.Round(float64(b.Dy())*f)))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
