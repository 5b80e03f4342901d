//go:build ocr

package ocr

import (
	"context"
	"fmt"
	"strconv"

	"github.com/otiai10/gosseract/v2"
)

// tesseract is not safe for concurrent use; the orchestrator runs one
// strategy at a time.
type tesseract struct {
	client *gosseract.Client
}

// NewEngine creates a Tesseract engine. Close it when done.
func NewEngine(cfg Config) (Engine, error) {
	c := gosseract.NewClient()
	if cfg.TessdataPrefix != "" {
		c.TessdataPrefix = cfg.TessdataPrefix
	}
	if err := c.SetLanguage(cfg.Languages...); err != nil {
		c.Close()
		return nil, fmt.Errorf("ocr: set languages: %w", err)
	}
	if cfg.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), strconv.Itoa(cfg.DPI)); err != nil {
			c.Close()
			return nil, fmt.Errorf("ocr: set dpi: %w", err)
		}
	}
	return &tesseract{client: c}, nil
}

func (t *tesseract) Recognize(ctx context.Context, image []byte) ([]Box, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := t.client.SetImageFromBytes(image); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_PARA)
	if err != nil {
		return nil, fmt.Errorf("bounding boxes: %w", err)
	}
	out := make([]Box, 0, len(boxes))
	for _, b := range boxes {
		out = append(out, Box{
			Text:       b.Word,
			X:          b.Box.Min.X,
			Y:          b.Box.Min.Y,
			W:          b.Box.Dx(),
			H:          b.Box.Dy(),
			Confidence: b.Confidence / 100,
		})
	}
	return out, nil
}

func (t *tesseract) Close() error { return t.client.Close() }
