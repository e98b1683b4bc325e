package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vishrutha-03/detectomr/internal/sheet"
	"github.com/vishrutha-03/detectomr/internal/template"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := Empty()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultTemplatesDir, cfg.GetTemplatesDir())
	assert.Equal(t, DefaultOutputDir, cfg.GetOutputDir())
	assert.Equal(t, "", cfg.GetDefaultTemplate())
	assert.Equal(t, runtime.NumCPU(), cfg.GetWorkers())
	assert.False(t, cfg.Debug())
	assert.Equal(t, sheet.DefaultConfig(), cfg.Sheet())
	assert.Equal(t, 0.12, cfg.Thresholds().Low)
	assert.Equal(t, 0.40, cfg.Thresholds().High)
	assert.Equal(t, 20.0, cfg.GetPerSubjectMax())

	qr, region := cfg.MarkerQR()
	assert.True(t, qr)
	assert.Equal(t, template.BBox{}, region)

	text, _, _, prefix := cfg.MarkerText()
	assert.False(t, text)
	assert.Equal(t, DefaultMarkerPrefix, prefix)
}

func TestLoadFile_Partial(t *testing.T) {
	path := writeConfig(t, "omr.json", `{
		"templates_dir": "/srv/templates",
		"workers": 3,
		"min_area_ratio": 0.5,
		"high_threshold": 0.5,
		"marker": {"qr": false, "text": true, "text_region": [0.7, 0, 0.3, 0.05], "prefix": "VERSION"}
	}`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/templates", cfg.GetTemplatesDir())
	assert.Equal(t, 3, cfg.GetWorkers())
	assert.Equal(t, 0.5, cfg.Sheet().MinAreaRatio)
	assert.Equal(t, sheet.DefaultTargetWidth, cfg.Sheet().TargetWidth, "unset fields keep defaults")
	assert.Equal(t, 0.12, cfg.Thresholds().Low)
	assert.Equal(t, 0.5, cfg.Thresholds().High)

	qr, _ := cfg.MarkerQR()
	assert.False(t, qr)
	text, region, lang, prefix := cfg.MarkerText()
	assert.True(t, text)
	assert.Equal(t, template.BBox{X: 0.7, Y: 0, W: 0.3, H: 0.05}, region)
	assert.Equal(t, "", lang)
	assert.Equal(t, "VERSION", prefix)
}

func TestLoadFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"wrong extension", "omr.yaml", `{}`, ".json extension"},
		{"bad json", "omr.json", `{"workers":`, "parse"},
		{"zero workers", "omr.json", `{"workers": 0}`, "workers"},
		{"inverted thresholds", "omr.json", `{"low_threshold": 0.5, "high_threshold": 0.3}`, "thresholds"},
		{"area ratio of one", "omr.json", `{"min_area_ratio": 1}`, "min_area_ratio"},
		{"negative target", "omr.json", `{"target_width": -5}`, "target_width"},
		{"log level", "omr.json", `{"log_level": "trace"}`, "log_level"},
		{"per subject max", "omr.json", `{"per_subject_max": 0}`, "per_subject_max"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tt.file, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadFile_TooLarge(t *testing.T) {
	big := `{"templates_dir": "` + strings.Repeat("x", maxFileSize) + `"}`
	_, err := LoadFile(writeConfig(t, "big.json", big))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvTemplatesDir, "/env/templates")
	t.Setenv(EnvOutputDir, "/env/out")
	t.Setenv(EnvWorkers, "7")
	t.Setenv(EnvLogLevel, "DEBUG")
	t.Setenv(EnvDefaultTemplate, "seta")

	cfg := Empty()
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, "/env/templates", cfg.GetTemplatesDir())
	assert.Equal(t, "/env/out", cfg.GetOutputDir())
	assert.Equal(t, 7, cfg.GetWorkers())
	assert.True(t, cfg.Debug())
	assert.Equal(t, "seta", cfg.GetDefaultTemplate())

	t.Setenv(EnvWorkers, "many")
	assert.Error(t, Empty().ApplyEnv())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "omr.json", `{"output_dir": "/file/out", "workers": 2}`)
	envFile := writeConfig(t, ".env", "DETECTOMR_OUTPUT_DIR=/dotenv/out\n")
	t.Setenv(EnvOutputDir, "")
	t.Setenv(EnvWorkers, "")
	// godotenv does not override variables that are already set, so unset
	// the one provided by the .env file.
	require.NoError(t, os.Unsetenv(EnvOutputDir))

	cfg, err := Load(path, envFile)
	require.NoError(t, err)
	assert.Equal(t, "/dotenv/out", cfg.GetOutputDir())
	assert.Equal(t, 2, cfg.GetWorkers())
}

func TestLoad_NoFiles(t *testing.T) {
	cfg, err := Load("", filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	t.Setenv(EnvWorkers, "0")
	_, err = Load("", filepath.Join(t.TempDir(), "absent.env"))
	assert.Error(t, err)
}
