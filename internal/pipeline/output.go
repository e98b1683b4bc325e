package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/vishrutha-03/detectomr/internal/imaging"
	"github.com/vishrutha-03/detectomr/internal/template"
)

// BatchCSV is the name of the batch summary file.
const BatchCSV = "batch_results.csv"

var csvHeader = []string{"id", "file", "template", "version", "total_score", "subject_scores", "ambiguous", "sheet_detected", "error"}

// Writer stores outcomes under a directory. It is safe for concurrent use.
type Writer struct {
	dir string
	mu  sync.Mutex
}

// NewWriter creates dir if needed and returns a Writer for it.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Files lists what was written for one sheet.
type Files struct {
	JSON    string `json:"json"`
	Warped  string `json:"warped,omitempty"`
	Overlay string `json:"overlay,omitempty"`
}

type outcomeFile struct {
	*Outcome
	TemplateUsed *template.Template `json:"template_used,omitempty"`
}

// Write stores the report of one sheet as <id>.json and, when the sheet was
// normalized, <id>_warped.png and <id>_overlay.png.
func (w *Writer) Write(o *Outcome) (Files, error) {
	files := Files{JSON: filepath.Join(w.dir, o.ID+".json")}

	data, err := json.MarshalIndent(outcomeFile{Outcome: o, TemplateUsed: o.Tmpl}, "", "  ")
	if err != nil {
		return files, fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(files.JSON, data, 0644); err != nil {
		return files, fmt.Errorf("failed to write report: %w", err)
	}

	if o.Rectified == nil {
		return files, nil
	}
	files.Warped = filepath.Join(w.dir, o.ID+"_warped.png")
	if err := writePNG(files.Warped, o.Rectified); err != nil {
		return files, err
	}
	if o.Tmpl != nil {
		files.Overlay = filepath.Join(w.dir, o.ID+"_overlay.png")
		if err := writePNG(files.Overlay, Overlay(o)); err != nil {
			return files, err
		}
	}
	return files, nil
}

func writePNG(path string, img image.Image) error {
	data, err := imaging.EncodePNG(img)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// AppendCSV appends one row per outcome to batch_results.csv. The header is
// written only when the file is created.
func (w *Writer) AppendCSV(outcomes []*Outcome) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	path := filepath.Join(w.dir, BatchCSV)
	writeHeader := false
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		writeHeader = true
	} else if err != nil {
		return fmt.Errorf("failed to stat %s: %w", BatchCSV, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", BatchCSV, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if writeHeader {
		if err := cw.Write(csvHeader); err != nil {
			return err
		}
	}
	for _, o := range outcomes {
		if o == nil {
			continue
		}
		if err := cw.Write(csvRow(o)); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", BatchCSV, err)
	}
	return nil
}

func csvRow(o *Outcome) []string {
	total, subjects := "", ""
	if o.Report != nil {
		total = strconv.FormatFloat(o.Report.TotalScore, 'f', 2, 64)
		parts := make([]string, 0, len(o.Report.Subjects))
		for _, s := range o.Report.Subjects {
			parts = append(parts, fmt.Sprintf("%s=%.2f", s.Name, s.Score))
		}
		subjects = strings.Join(parts, ";")
	}
	return []string{
		o.ID,
		o.Source,
		o.Template,
		o.Version,
		total,
		subjects,
		strconv.Itoa(len(o.Ambiguous)),
		strconv.FormatBool(o.SheetDetected),
		o.Error,
	}
}
