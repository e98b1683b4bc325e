//go:build cgo && linux

package marker

import (
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

const ocrAvailable = true

// markerChars limits recognition to the characters a version label uses.
const markerChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-:= "

// recognize runs Tesseract on a PNG-encoded image.
func recognize(png []byte, language string) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(language); err != nil {
		return "", fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		return "", fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetWhitelist(markerChars); err != nil {
		return "", fmt.Errorf("failed to set whitelist: %w", err)
	}
	if err := client.SetImageFromBytes(png); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return text, nil
}

// TesseractVersion returns the version of the linked Tesseract library.
func TesseractVersion() (string, error) {
	client := gosseract.NewClient()
	defer client.Close()
	return client.Version(), nil
}
