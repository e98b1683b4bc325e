package pipeline

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/vishrutha-03/detectomr/internal/imaging"
	"github.com/vishrutha-03/detectomr/internal/marker"
	"github.com/vishrutha-03/detectomr/internal/omr"
	"github.com/vishrutha-03/detectomr/internal/scoring"
	"github.com/vishrutha-03/detectomr/internal/sheet"
	"github.com/vishrutha-03/detectomr/internal/template"
)

// ErrNoTemplate is returned when no template can be chosen for a sheet.
var ErrNoTemplate = errors.New("no template available")

// Options configures a Grader. Zero fields take defaults.
type Options struct {
	Normalizer *sheet.Normalizer
	Templates  *template.Registry
	// DefaultTemplate names the template used when no marker is read or
	// the marker matches no template. Empty means the first template.
	DefaultTemplate string
	// Keys resolves answer keys. Nil uses only keys embedded in templates.
	Keys          template.AnswerKeySource
	Marker        marker.Decoder
	Thresholds    omr.Thresholds
	PerSubjectMax float64
	Workers       int
	Logger        *log.Logger
	Debug         bool
}

// Grader grades sheets. It is safe for concurrent use.
type Grader struct {
	normalizer    *sheet.Normalizer
	templates     *template.Registry
	defaultName   string
	keys          template.AnswerKeySource
	marker        marker.Decoder
	thresholds    omr.Thresholds
	perSubjectMax float64
	workers       int
	logger        *log.Logger
	debug         bool
}

// New returns a Grader for opts.
func New(opts Options) (*Grader, error) {
	g := &Grader{
		normalizer:    opts.Normalizer,
		templates:     opts.Templates,
		defaultName:   opts.DefaultTemplate,
		keys:          opts.Keys,
		marker:        opts.Marker,
		thresholds:    opts.Thresholds,
		perSubjectMax: opts.PerSubjectMax,
		workers:       opts.Workers,
		logger:        opts.Logger,
		debug:         opts.Debug,
	}
	if g.normalizer == nil {
		g.normalizer = sheet.New(sheet.DefaultConfig())
	}
	if g.templates == nil {
		g.templates = template.NewRegistry()
	}
	if g.keys == nil {
		g.keys = template.EmbeddedKeys{}
	}
	if g.thresholds == (omr.Thresholds{}) {
		g.thresholds = omr.DefaultThresholds()
	}
	if err := g.thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", omr.ErrInvalidInput, err)
	}
	if g.perSubjectMax <= 0 {
		g.perSubjectMax = scoring.DefaultPerSubjectMax
	}
	if g.workers < 1 {
		g.workers = 1
	}
	if g.logger == nil {
		g.logger = log.New(io.Discard, "", 0)
	}
	if g.defaultName != "" {
		if _, ok := g.templates.Get(g.defaultName); !ok {
			return nil, fmt.Errorf("%w: default template %q not found", ErrNoTemplate, g.defaultName)
		}
	}
	return g, nil
}

// Templates returns the template registry.
func (g *Grader) Templates() *template.Registry { return g.templates }

// Normalizer returns the sheet normalizer.
func (g *Grader) Normalizer() *sheet.Normalizer { return g.normalizer }

// Thresholds returns the classification thresholds.
func (g *Grader) Thresholds() omr.Thresholds { return g.thresholds }

// PerSubjectMax returns the score of a fully correct subject.
func (g *Grader) PerSubjectMax() float64 { return g.perSubjectMax }

// DecodeMarker reads the version marker of a rectified sheet.
func (g *Grader) DecodeMarker(rectified image.Image) (string, bool) {
	if g.marker == nil {
		return "", false
	}
	return g.marker.Decode(rectified)
}

// Template returns the template a sheet would be graded with: name if set,
// otherwise the one matching version, otherwise the default.
func (g *Grader) Template(name, version string) (*template.Template, string, error) {
	if name != "" {
		t, ok := g.templates.Get(name)
		if !ok {
			return nil, "", fmt.Errorf("%w: template %q not found", ErrNoTemplate, name)
		}
		return t, name, nil
	}
	if version != "" {
		if t, n, ok := g.templates.ForVersion(version); ok {
			return t, n, nil
		}
	}
	return g.defaultTemplate()
}

// Source is one sheet to grade.
type Source struct {
	// Name identifies the sheet in logs and the batch CSV, usually the
	// file name.
	Name string
	// Path is read when Data and Image are nil.
	Path string
	Data []byte
	// Image is an already decoded sheet; it takes precedence over Data.
	Image image.Image
	// Template forces a template by registry name, skipping the marker.
	Template string
}

// FileSource returns the Source for a file on disk.
func FileSource(path string) Source {
	return Source{Name: filepath.Base(path), Path: path}
}

// Outcome is the result of grading one sheet.
type Outcome struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	// Template is the registry name of the template used.
	Template string `json:"template,omitempty"`
	// Version is the decoded marker, if any.
	Version string `json:"version,omitempty"`
	// SheetDetected is false when the photo was resized without
	// perspective correction.
	SheetDetected bool                  `json:"sheet_detected"`
	Report        *scoring.Report       `json:"report,omitempty"`
	Ambiguous     []omr.AmbiguousBubble `json:"ambiguous"`
	Warnings      []string              `json:"warnings,omitempty"`
	Error         string                `json:"error,omitempty"`

	// Err is the failure of the sheet; nil on success.
	Err error `json:"-"`
	// Rectified is the normalized sheet image.
	Rectified image.Image `json:"-"`
	// States are the raw bubble measurements.
	States omr.FillStates `json:"-"`
	// Tmpl is the template used.
	Tmpl *template.Template `json:"-"`
}

// OK reports whether the sheet was graded.
func (o *Outcome) OK() bool {
	return o.Err == nil
}

func newOutcome(src Source) *Outcome {
	name := src.Name
	if name == "" && src.Path != "" {
		name = filepath.Base(src.Path)
	}
	return &Outcome{ID: uuid.NewString(), Source: name, Ambiguous: []omr.AmbiguousBubble{}}
}

func (o *Outcome) fail(err error) *Outcome {
	o.Err = err
	o.Error = err.Error()
	return o
}

func (g *Grader) debugf(format string, args ...interface{}) {
	if g.debug {
		g.logger.Printf(format, args...)
	}
}

// Grade grades one sheet. Failures are reported in the Outcome.
func (g *Grader) Grade(src Source) *Outcome {
	out := newOutcome(src)

	img, err := decodeSource(src)
	if err != nil {
		return out.fail(err)
	}
	if img.Bounds().Empty() {
		return out.fail(fmt.Errorf("%w: image has zero area", omr.ErrInvalidInput))
	}
	g.debugf("%s: %dx%d", out.Source, img.Bounds().Dx(), img.Bounds().Dy())

	res := g.normalizer.Process(img)
	out.Rectified = res.Image
	out.SheetDetected = res.Found
	if res.Found {
		g.debugf("%s: sheet outline %v", out.Source, res.Quad)
	} else {
		g.debugf("%s: no sheet outline found, using the resized photo", out.Source)
	}

	tmpl, name, err := g.chooseTemplate(src, res.Image, out)
	if err != nil {
		return out.fail(err)
	}
	out.Template = name
	out.Tmpl = tmpl

	cls, err := omr.Classify(res.Image, tmpl, g.thresholds)
	if err != nil {
		return out.fail(fmt.Errorf("failed to classify bubbles: %w", err))
	}
	out.States = cls.States
	out.Ambiguous = cls.Ambiguous

	key, err := g.keys.AnswerKey(tmpl)
	switch {
	case errors.Is(err, template.ErrMissingAnswerKey):
		out.Warnings = append(out.Warnings, err.Error())
		g.logger.Printf("%s: %v, scores will be zero", out.Source, err)
		key = nil
	case err != nil:
		return out.fail(fmt.Errorf("failed to load answer key: %w", err))
	}

	out.Report = scoring.Score(cls.States, tmpl, key, g.perSubjectMax)
	g.debugf("%s: template %s, total %.2f, %d ambiguous", out.Source, name, out.Report.TotalScore, len(out.Ambiguous))
	return out
}

func decodeSource(src Source) (image.Image, error) {
	if src.Image != nil {
		return src.Image, nil
	}
	data := src.Data
	if data == nil {
		var err error
		if data, err = os.ReadFile(src.Path); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", src.Path, err)
		}
	}
	img, _, err := imaging.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", omr.ErrInvalidInput, err)
	}
	return img, nil
}

// chooseTemplate picks the forced template, then the one named by the
// marker, then the default.
func (g *Grader) chooseTemplate(src Source, rectified image.Image, out *Outcome) (*template.Template, string, error) {
	if src.Template != "" {
		return g.Template(src.Template, "")
	}

	if v, ok := g.DecodeMarker(rectified); ok {
		out.Version = v
		if t, name, ok := g.templates.ForVersion(v); ok {
			g.debugf("%s: marker %q selects template %s", out.Source, v, name)
			return t, name, nil
		}
		out.Warnings = append(out.Warnings, fmt.Sprintf("marker %q matches no template", v))
	}
	return g.defaultTemplate()
}

func (g *Grader) defaultTemplate() (*template.Template, string, error) {
	name := g.defaultName
	if name == "" {
		names := g.templates.Names()
		if len(names) == 0 {
			return nil, "", ErrNoTemplate
		}
		name = names[0]
	}
	t, ok := g.templates.Get(name)
	if !ok {
		return nil, "", fmt.Errorf("%w: template %q not found", ErrNoTemplate, name)
	}
	return t, name, nil
}
