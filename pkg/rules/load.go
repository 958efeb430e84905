package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/younsl/costadvisor/internal/models"
)

// Set is the pair of rules one evaluation runs with
type Set struct {
	Compute models.Rule `json:"compute" yaml:"compute"`
	Storage models.Rule `json:"storage" yaml:"storage"`
}

// Defaults returns a fresh copy of the built-in rules
func Defaults() Set {
	return Set{
		Compute: DefaultCompute(),
		Storage: DefaultStorage(),
	}
}

// Clone returns a deep copy of the set
func (s Set) Clone() Set {
	return Set{Compute: Clone(s.Compute), Storage: Clone(s.Storage)}
}

// Validate checks both rules
func (s Set) Validate() error {
	if err := ValidateCompute(s.Compute); err != nil {
		return err
	}
	return ValidateStorage(s.Storage)
}

// Load reads a YAML or JSON rules file over the defaults and validates the result.
// Fields absent from the file keep their default values.
func Load(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("error reading rules file: %w", err)
	}

	set := Defaults()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &set)
	default:
		err = yaml.Unmarshal(data, &set)
	}
	if err != nil {
		return Set{}, &ConfigError{Domain: "rules", Field: filepath.Base(path), Reason: "is malformed: " + err.Error()}
	}

	if err := set.Validate(); err != nil {
		return Set{}, err
	}
	return set, nil
}

// MergeJSON decodes a stored JSON document over base. An empty document
// returns base unchanged.
func MergeJSON(base Set, doc []byte) (Set, error) {
	merged := base.Clone()
	if len(strings.TrimSpace(string(doc))) == 0 {
		return merged, nil
	}
	if err := json.Unmarshal(doc, &merged); err != nil {
		return Set{}, &ConfigError{Domain: "rules", Field: "preferences", Reason: "is malformed: " + err.Error()}
	}
	return merged, nil
}

// Encode renders a set as indented JSON
func Encode(s Set) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("error encoding rules: %w", err)
	}
	return data, nil
}

// WriteFile persists a set as YAML or JSON depending on the file extension
func WriteFile(path string, s Set) error {
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = Encode(s)
	default:
		data, err = yaml.Marshal(s)
	}
	if err != nil {
		return fmt.Errorf("error encoding rules: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing rules file: %w", err)
	}
	return nil
}
