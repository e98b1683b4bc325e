package main

import (
	"errors"
	"fmt"
	"log"

	"github.com/vishrutha-03/detectomr/internal/config"
	"github.com/vishrutha-03/detectomr/internal/marker"
	"github.com/vishrutha-03/detectomr/internal/pipeline"
	"github.com/vishrutha-03/detectomr/internal/sheet"
	"github.com/vishrutha-03/detectomr/internal/template"
)

// qrMaxSide bounds the image handed to the QR reader.
const qrMaxSide = 1200

// newGrader wires a Grader from cfg: templates and answer keys from the
// templates directory, the marker decoders and the sheet normalizer.
func newGrader(cfg *config.Config, logger *log.Logger) (*pipeline.Grader, error) {
	dir := cfg.GetTemplatesDir()
	reg, err := template.LoadDir(dir)
	if reg == nil {
		return nil, err
	}
	if err != nil {
		// Broken templates are skipped; the rest still grade.
		logger.Printf("Some templates failed to load: %v", err)
	}
	if reg.Len() == 0 {
		return nil, fmt.Errorf("no templates found in %s", dir)
	}
	if cfg.Debug() {
		logger.Printf("Loaded %d templates from %s: %v", reg.Len(), dir, reg.Names())
	}

	return pipeline.New(pipeline.Options{
		Normalizer:      sheet.New(cfg.Sheet()),
		Templates:       reg,
		DefaultTemplate: cfg.GetDefaultTemplate(),
		Keys:            template.DefaultKeys(dir),
		Marker:          newMarker(cfg, logger),
		Thresholds:      cfg.Thresholds(),
		PerSubjectMax:   cfg.GetPerSubjectMax(),
		Workers:         cfg.GetWorkers(),
		Logger:          logger,
		Debug:           cfg.Debug(),
	})
}

func newMarker(cfg *config.Config, logger *log.Logger) marker.Decoder {
	var chain marker.Chain
	if on, region := cfg.MarkerQR(); on {
		chain = append(chain, &marker.QRDecoder{Region: region, MaxSide: qrMaxSide})
	}
	if on, region, lang, prefix := cfg.MarkerText(); on {
		dec, err := marker.NewTextDecoder(region, lang, prefix)
		switch {
		case errors.Is(err, marker.ErrUnavailable):
			logger.Printf("Text markers are enabled but OCR is not available in this build")
		case err != nil:
			logger.Printf("Text markers disabled: %v", err)
		default:
			chain = append(chain, dec)
		}
	}
	if len(chain) == 0 {
		return nil
	}
	return chain
}
