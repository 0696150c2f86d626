package testgen

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"auto-api-healer/internal/types"
)

const (
	// DataFile is the reviewed test data document
	DataFile = "testdata.json"
	// TemplateFile is the generated, not yet reviewed document
	TemplateFile = "testdata_template.json"
	// BodiesFile holds user-edited request bodies keyed by operation id
	BodiesFile = "bodies.json"
)

// TestData represents the on-disk test data structure
type TestData struct {
	Endpoints types.TestDataDocument `json:"endpoints"`
}

// Loader handles loading test data from files
type Loader struct {
	dir string
}

// NewLoader creates a new test data loader
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Dir returns the directory the loader reads from
func (l *Loader) Dir() string {
	return l.dir
}

// LoadTestData loads testdata.json, falling back to the generated template
func (l *Loader) LoadTestData() (types.TestDataDocument, error) {
	data, err := l.loadFromFile(DataFile)
	if err != nil {
		data, err = l.loadFromFile(TemplateFile)
		if err != nil {
			return nil, fmt.Errorf("no test data found: %w", err)
		}
	}
	return data, nil
}

func (l *Loader) loadFromFile(filename string) (types.TestDataDocument, error) {
	return LoadDocumentFile(filepath.Join(l.dir, filename))
}

// LoadDocumentFile reads a test data document from any path
func LoadDocumentFile(path string) (types.TestDataDocument, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseDocument(file)
}

// ParseDocument accepts both {"endpoints": {...}} and a bare map keyed by operation id
func ParseDocument(raw []byte) (types.TestDataDocument, error) {
	var wrapped TestData
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Endpoints != nil {
		return wrapped.Endpoints, nil
	}

	var doc types.TestDataDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse test data: %w", err)
	}
	return doc, nil
}

// LoadManualBodies loads user-edited bodies; a missing file yields an empty set
func (l *Loader) LoadManualBodies() (map[string]string, error) {
	file, err := os.ReadFile(filepath.Join(l.dir, BodiesFile))
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manual bodies: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(file, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse manual bodies: %w", err)
	}

	bodies := make(map[string]string, len(raw))
	for opID, body := range raw {
		bodies[opID] = string(body)
	}
	return bodies, nil
}

// SaveTestData writes the document to testdata.json
func (l *Loader) SaveTestData(doc types.TestDataDocument) error {
	return writeDocument(filepath.Join(l.dir, DataFile), doc)
}

func writeDocument(path string, doc types.TestDataDocument) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := json.MarshalIndent(TestData{Endpoints: doc}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal test data: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write test data file: %w", err)
	}
	return nil
}
