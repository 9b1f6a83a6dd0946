package job

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/vegasq/nc2parquet/errs"
)

//go:embed schema/job-schema.json
var embeddedSchema []byte

const schemaURL = "https://github.com/vegasq/nc2parquet/schemas/job.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaInitErr  error
)

// Schema returns the embedded job JSON Schema.
func Schema() []byte { return embeddedSchema }

func getCompiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(embeddedSchema))
		if err != nil {
			schemaInitErr = fmt.Errorf("failed to parse embedded schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, doc); err != nil {
			schemaInitErr = fmt.Errorf("failed to add schema resource: %w", err)
			return
		}
		compiledSchema, schemaInitErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaInitErr
}

// Format of a job file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DetectFormat picks the format from the file extension, falling back to
// the content: documents starting with '{' are JSON.
func DetectFormat(path string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		return FormatJSON
	}
	return FormatYAML
}

// LoadFile reads and parses a job file.
func LoadFile(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errs.IO(path, false, err)
	}
	cfg, err := Parse(data, DetectFormat(path, data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a job document, validates it against the job schema and
// returns the typed config. Schema violations are ConfigErrors listing
// every violation.
func Parse(data []byte, format Format) (*Config, error) {
	doc, err := decodeDocument(data, format)
	if err != nil {
		return nil, err
	}
	if err := validateDocument(doc); err != nil {
		return nil, err
	}

	// the document is valid JSON-compatible data, so one typed decode
	// path serves both formats
	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, errs.Configf("", "re-encoding job document: %v", err)
	}
	var cfg Config
	if err := json.Unmarshal(normalized, &cfg); err != nil {
		return nil, errs.Configf("", "decoding job document: %v", err)
	}
	return &cfg, nil
}

func decodeDocument(data []byte, format Format) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errs.Configf("", "empty job document")
	}
	switch format {
	case FormatJSON:
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			return nil, errs.Configf("", "invalid JSON: %v", err)
		}
		return doc, nil
	case FormatYAML:
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, errs.Configf("", "invalid YAML: %v", err)
		}
		// round-trip through JSON so numbers and maps have the shapes the
		// validator expects
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, errs.Configf("", "YAML document is not JSON compatible: %v", err)
		}
		return jsonschema.UnmarshalJSON(bytes.NewReader(b))
	default:
		return nil, errs.Configf(string(format), "unknown job file format")
	}
}

// Violation is one schema violation.
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// SchemaError lists the schema violations of a job document.
type SchemaError struct {
	Violations []Violation
}

func (e *SchemaError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Path + ": " + v.Message
	}
	return "job does not match schema: " + strings.Join(msgs, "; ")
}

func (e *SchemaError) Unwrap() error { return errs.ErrConfig }

func validateDocument(doc any) error {
	schema, err := getCompiledSchema()
	if err != nil {
		return err
	}
	err = schema.Validate(doc)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return errs.Configf("", "%v", err)
	}
	se := &SchemaError{}
	collectViolations(verr, se)
	if len(se.Violations) == 0 {
		se.Violations = append(se.Violations, Violation{Path: "/", Message: verr.Error()})
	}
	return se
}

// collectViolations keeps the leaf errors of a validation error tree.
func collectViolations(err *jsonschema.ValidationError, se *SchemaError) {
	if len(err.Causes) == 0 {
		path := "/" + strings.Join(err.InstanceLocation, "/")
		se.Violations = append(se.Violations, Violation{Path: path, Message: err.Error()})
		return
	}
	for _, c := range err.Causes {
		collectViolations(c, se)
	}
}

// Marshal encodes cfg in format.
func Marshal(cfg *Config, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		b, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, errs.Configf(string(format), "unknown job file format")
	}
}
