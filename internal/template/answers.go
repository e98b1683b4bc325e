package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrMissingAnswerKey is returned by an AnswerKeySource that has no key for a
// template. Grading continues without a key; every question is then scored
// as unknown.
var ErrMissingAnswerKey = errors.New("missing answer key")

// Answer is the set of accepted option labels for one question.
//
// On the wire an Answer is a single string; several accepted labels are
// joined with commas, e.g. "A,B,C,D".
type Answer []string

// ParseAnswer splits a comma separated label list. Blank labels are dropped.
func ParseAnswer(s string) Answer {
	var a Answer
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			a = append(a, p)
		}
	}
	return a
}

// String returns the wire form of the answer.
func (a Answer) String() string {
	return strings.Join(a, ",")
}

// Accepts reports whether option is one of the accepted labels.
func (a Answer) Accepts(option string) bool {
	for _, l := range a {
		if l == option {
			return true
		}
	}
	return false
}

// MarshalJSON encodes the answer as a comma separated string.
func (a Answer) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts either "A" / "A,B" or ["A", "B"].
func (a *Answer) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = ParseAnswer(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("answer must be a string or a list of strings: %s", string(data))
	}
	*a = ParseAnswer(strings.Join(list, ","))
	return nil
}

// AnswerKey maps question numbers to their accepted answers. JSON object
// keys are the question numbers as strings.
type AnswerKey map[int]Answer

// ParseAnswerKey decodes an answer key from JSON.
func ParseAnswerKey(data []byte) (AnswerKey, error) {
	var k AnswerKey
	if err := json.Unmarshal(data, &k); err != nil {
		return nil, fmt.Errorf("failed to parse answer key: %w", err)
	}
	return k, nil
}

// LoadAnswerKey reads an answer key file.
func LoadAnswerKey(path string) (AnswerKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read answer key: %w", err)
	}
	return ParseAnswerKey(data)
}

// AnswerKeySource resolves the answer key for a template.
//
// Implementations return an error wrapping ErrMissingAnswerKey when they have
// no key; other errors indicate a key that exists but could not be read.
type AnswerKeySource interface {
	AnswerKey(t *Template) (AnswerKey, error)
}

// EmbeddedKeys serves the key embedded in the template's "answers" field.
type EmbeddedKeys struct{}

// AnswerKey implements AnswerKeySource.
func (EmbeddedKeys) AnswerKey(t *Template) (AnswerKey, error) {
	if t == nil || len(t.Answers) == 0 {
		return nil, fmt.Errorf("%w: template has no embedded answers", ErrMissingAnswerKey)
	}
	return t.Answers, nil
}

// DirKeys reads answers_<version>.json from a directory.
type DirKeys struct {
	Dir string
}

// AnswerKeyPath returns the file DirKeys reads for a version.
func AnswerKeyPath(dir, version string) string {
	return filepath.Join(dir, "answers_"+version+".json")
}

// AnswerKey implements AnswerKeySource.
func (d DirKeys) AnswerKey(t *Template) (AnswerKey, error) {
	if t == nil || t.Version == "" {
		return nil, fmt.Errorf("%w: template has no version", ErrMissingAnswerKey)
	}
	path := AnswerKeyPath(d.Dir, t.Version)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", ErrMissingAnswerKey, path)
		}
		return nil, fmt.Errorf("failed to stat answer key: %w", err)
	}
	k, err := LoadAnswerKey(path)
	if err != nil {
		return nil, err
	}
	if len(k) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrMissingAnswerKey, path)
	}
	return k, nil
}

// StaticKeys serves keys held in memory, indexed by template version.
type StaticKeys map[string]AnswerKey

// AnswerKey implements AnswerKeySource.
func (s StaticKeys) AnswerKey(t *Template) (AnswerKey, error) {
	if t != nil {
		if k, ok := s[t.Version]; ok && len(k) > 0 {
			return k, nil
		}
	}
	return nil, fmt.Errorf("%w: no static key for version", ErrMissingAnswerKey)
}

// KeyChain tries each source in order and returns the first key found.
// A source error other than ErrMissingAnswerKey stops the search.
type KeyChain []AnswerKeySource

// AnswerKey implements AnswerKeySource.
func (c KeyChain) AnswerKey(t *Template) (AnswerKey, error) {
	for _, src := range c {
		k, err := src.AnswerKey(t)
		if err == nil {
			return k, nil
		}
		if !errors.Is(err, ErrMissingAnswerKey) {
			return nil, err
		}
	}
	version := ""
	if t != nil {
		version = t.Version
	}
	return nil, fmt.Errorf("%w for version %q", ErrMissingAnswerKey, version)
}

// DefaultKeys embeds first, then answers_<version>.json in dir.
func DefaultKeys(dir string) AnswerKeySource {
	return KeyChain{EmbeddedKeys{}, DirKeys{Dir: dir}}
}
