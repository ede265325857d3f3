package fewshot

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for example files that are not json, jsonl or yaml.
var ErrUnsupportedFormat = errors.New("unsupported example file format")

// ReadFile loads examples from a .json (array), .jsonl or .yml/.yaml file.
// When schema is non-empty every record is validated against it before decoding.
func ReadFile[E any](path string, schema []byte) ([]E, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read examples: %w", err)
	}

	var records []json.RawMessage
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case ".jsonl":
		records, err = splitJSONL(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case ".yml", ".yaml":
		records, err = yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	return Decode[E](records, schema)
}

// Decode validates raw JSON records against schema (if any) and decodes them.
func Decode[E any](records []json.RawMessage, schema []byte) ([]E, error) {
	var validator *jsonschema.Schema
	if len(schema) > 0 {
		var err error
		validator, err = compileSchema(schema)
		if err != nil {
			return nil, err
		}
	}

	out := make([]E, 0, len(records))
	for i, raw := range records {
		if validator != nil {
			var v any
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, fmt.Errorf("example %d: %w", i, err)
			}
			if err := validator.Validate(v); err != nil {
				return nil, fmt.Errorf("example %d does not match schema: %w", i, err)
			}
		}
		var e E
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("example %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func compileSchema(schema []byte) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("example.json", bytes.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("failed to load example schema: %w", err)
	}
	s, err := compiler.Compile("example.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile example schema: %w", err)
	}
	return s, nil
}

func splitJSONL(data []byte) ([]json.RawMessage, error) {
	var records []json.RawMessage
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		if !json.Valid(raw) {
			return nil, fmt.Errorf("line %d is not valid JSON", line)
		}
		records = append(records, json.RawMessage(append([]byte(nil), raw...)))
	}
	return records, scanner.Err()
}

// yamlToJSON converts a YAML sequence into JSON records so YAML and JSON
// examples share one validation path.
func yamlToJSON(data []byte) ([]json.RawMessage, error) {
	var items []any
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	records := make([]json.RawMessage, 0, len(items))
	for i, item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, raw)
	}
	return records, nil
}
