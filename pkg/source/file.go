package source

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/panbanda/gradelens/internal/logger"
	"github.com/panbanda/gradelens/pkg/models"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// Format is a dataset document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: unsupported file extension %q", ErrInvalidDataset, filepath.Ext(path))
	}
}

//go:embed dataset.schema.json
var schemaJSON []byte

const schemaURL = "dataset.schema.json"

var datasetSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse dataset schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("add dataset schema: %w", err)
	}
	return c.Compile(schemaURL)
})

// Decode validates a dataset document against the embedded schema and
// decodes it. YAML documents are converted to JSON first so both formats
// go through the same validation.
func Decode(data []byte, format Format) (*models.Dataset, error) {
	switch format {
	case FormatJSON:
	case FormatYAML:
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidDataset, err)
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidDataset, err)
		}
		data = converted
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidDataset, format)
	}

	schema, err := datasetSchema()
	if err != nil {
		return nil, err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDataset, err)
	}
	if err := schema.Validate(inst); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDataset, err)
	}

	var ds models.Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDataset, err)
	}
	return &ds, nil
}

// FileSource reads a JSON or YAML dataset from disk.
type FileSource struct {
	path   string
	logger *logger.Logger
}

var _ Source = (*FileSource)(nil)

// FileOption configures a FileSource.
type FileOption func(*FileSource)

// WithFileLogger sets the logger.
func WithFileLogger(l *logger.Logger) FileOption {
	return func(f *FileSource) {
		f.logger = l
	}
}

// NewFile creates a source reading path.
func NewFile(path string, opts ...FileOption) *FileSource {
	f := &FileSource{path: path, logger: logger.Nop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Path returns the dataset file.
func (f *FileSource) Path() string {
	return f.path
}

// Load implements Source.
func (f *FileSource) Load(ctx context.Context, scope Scope) (*models.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	format, err := FormatFromPath(f.path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	ds, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.path, err)
	}
	if !scope.IsZero() {
		ds = scope.Apply(ds)
	}
	f.logger.Debug("dataset loaded", "path", f.path, "records", len(ds.Scores), "exams", len(ds.Exams))
	return ds, nil
}
