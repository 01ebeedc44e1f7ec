package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// validatable is implemented by every analysis request.
type validatable interface {
	Validate() error
}

// readRequest decodes path ("-" for stdin) into out and validates it.
// YAML input is converted to JSON first so both formats share the JSON
// field names and duration handling of the HTTP API.
func readRequest(path string, out validatable) error {
	raw, err := readInput(path)
	if err != nil {
		return err
	}
	if isYAML(path, raw) {
		raw, err = yamlToJSON(raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	if err := out.Validate(); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

func readInput(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("--file is required")
	}
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func isYAML(path string, raw []byte) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	case ".json":
		return false
	}
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] != '{'
}

func yamlToJSON(raw []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
