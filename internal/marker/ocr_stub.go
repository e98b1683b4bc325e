//go:build !cgo || !linux

package marker

const ocrAvailable = false

func recognize(png []byte, language string) (string, error) {
	return "", ErrUnavailable
}

// TesseractVersion reports that OCR is not compiled in.
func TesseractVersion() (string, error) {
	return "", ErrUnavailable
}
