package rule

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is the encoding of a rules document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"

	defaultRulesFile = "defaults/rules.yaml"
)

var (
	//go:embed defaults/*
	defaultsFS embed.FS
)

// FormatFromPath infers the document format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", &ConfigError{Index: -1, Field: "path", Reason: fmt.Sprintf("unsupported rules file extension: %s (use .json, .yaml or .yml)", path)}
	}
}

// Load reads, prepares and validates the rule set at path.
func Load(path string) (*RuleSet, error) {
	if path == "" {
		return nil, &ConfigError{Index: -1, Field: "path", Reason: "rules file path required"}
	}

	f, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file %s: %w", path, err)
	}

	rs, err := Parse(b, f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	slog.Debug("rules loaded", "path", path, "rules", len(rs.Rules), "categories", len(rs.Categories()))
	return rs, nil
}

// Parse decodes a rules document, applies defaults, normalizes keywords and
// validates the result. Unknown fields are rejected.
func Parse(b []byte, f Format) (*RuleSet, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, &ConfigError{Index: -1, Reason: "rules document is empty"}
	}

	var rs RuleSet
	switch f {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&rs); err != nil {
			return nil, &ConfigError{Index: -1, Reason: fmt.Sprintf("malformed JSON: %v", err)}
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&rs); err != nil {
			return nil, &ConfigError{Index: -1, Reason: fmt.Sprintf("malformed YAML: %v", err)}
		}
	default:
		return nil, &ConfigError{Index: -1, Reason: fmt.Sprintf("unsupported format: %q", f)}
	}

	rs.prepare()
	if err := rs.Validate(); err != nil {
		return nil, err
	}

	return &rs, nil
}

// Default returns a fresh copy of the embedded default rule set.
func Default() *RuleSet {
	b, err := defaultsFS.ReadFile(defaultRulesFile)
	if err != nil {
		panic(fmt.Sprintf("embedded default rules missing: %v", err))
	}
	rs, err := Parse(b, FormatYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded default rules invalid: %v", err))
	}
	return rs
}

// Encode writes the rule set in the requested format.
func Encode(rs *RuleSet, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return json.MarshalIndent(rs, "", "  ")
	case FormatYAML:
		return yaml.Marshal(rs)
	default:
		return nil, fmt.Errorf("unsupported format: %q", f)
	}
}
