// Package marker reads the version marker printed on a sheet.
//
// A marker names the template layout the sheet was printed with. It is only
// used to pick a template; a sheet without a readable marker is graded with
// the configured default template, so Decode reports absence with a false
// result rather than an error.
//
// Two decoders are provided:
//
//   - QRDecoder reads a QR symbol with gozxing. It works everywhere.
//   - TextDecoder reads printed text with Tesseract (gosseract/v2). It needs
//     cgo and an installed Tesseract with language data:
//     apt-get install tesseract-ocr tesseract-ocr-eng
//     Without cgo, NewTextDecoder returns ErrUnavailable.
//
// Chain tries several decoders in order.
package marker
