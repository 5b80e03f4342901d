//go:build !ocr

package ocr

import (
	"context"
	"errors"
	"testing"
)

func TestProviderWithoutOCR(t *testing.T) {
	_, err := Provider(Config{})(context.Background())
	if !errors.Is(err, ErrOCRNotEnabled) {
		t.Errorf("Provider() error = %v, want ErrOCRNotEnabled", err)
	}
}
