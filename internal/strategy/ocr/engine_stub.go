//go:build !ocr

package ocr

import "errors"

// ErrOCRNotEnabled is returned when Tesseract support was not compiled in.
// Rebuild with -tags ocr to enable it.
var ErrOCRNotEnabled = errors.New("ocr support not enabled; rebuild with -tags ocr")

func NewEngine(Config) (Engine, error) { return nil, ErrOCRNotEnabled }
