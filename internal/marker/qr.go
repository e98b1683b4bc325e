package marker

import (
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/vishrutha-03/detectomr/internal/imaging"
	"github.com/vishrutha-03/detectomr/internal/template"
)

// QRDecoder reads a QR symbol whose payload is the version string.
type QRDecoder struct {
	// Region limits the search to part of the sheet, in normalized
	// coordinates. The zero value searches the whole sheet.
	Region template.BBox
	// MaxSide downscales the searched region so its longest side is at most
	// MaxSide pixels. Zero keeps full resolution.
	MaxSide int
}

// Decode returns the payload of the first QR symbol found.
func (d QRDecoder) Decode(img image.Image) (string, bool) {
	if img == nil || img.Bounds().Empty() {
		return "", false
	}

	src := img
	if r := region(img, d.Region); r != img.Bounds() {
		cropped, err := imaging.Crop(img, r.Sub(img.Bounds().Min), 1)
		if err != nil {
			return "", false
		}
		src = cropped
	}
	if d.MaxSide > 0 {
		src, _ = imaging.FitWithin(src, d.MaxSide)
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(src)
	if err != nil {
		return "", false
	}
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	res, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", false
	}
	return cleanVersion(res.GetText())
}
