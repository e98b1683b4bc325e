// Package config loads grading settings.
//
// Settings come from an optional JSON file whose fields are all optional;
// a field left out keeps its default, so partial files are safe. After the
// file, a .env file (if present) and DETECTOMR_* environment variables are
// applied:
//
//	DETECTOMR_TEMPLATES_DIR   directory of template JSON files
//	DETECTOMR_DEFAULT_TEMPLATE template used when no marker is read
//	DETECTOMR_OUTPUT_DIR      where graded sheets are written
//	DETECTOMR_WORKERS         sheets graded in parallel
//	DETECTOMR_LOG_LEVEL       "debug" enables debug logging
//
// The Get* methods return the effective value of each setting.
package config
