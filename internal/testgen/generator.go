package testgen

import (
	"fmt"
	"path/filepath"

	"auto-api-healer/internal/types"
)

// Generator handles the generation of test data templates
type Generator struct {
	outputDir   string
	synthesizer *Synthesizer
}

// NewGenerator creates a new instance of Generator
func NewGenerator(outputDir string, synthesizer *Synthesizer) *Generator {
	return &Generator{
		outputDir:   outputDir,
		synthesizer: synthesizer,
	}
}

// Template builds a test data document for endpoints keyed by operation id
func (g *Generator) Template(endpoints []types.Endpoint) types.TestDataDocument {
	doc := make(types.TestDataDocument, len(endpoints))
	for _, endpoint := range endpoints {
		doc[endpoint.ID()] = g.generateEndpointTestData(endpoint)
	}
	return doc
}

// GenerateTemplate writes testdata_template.json and returns its path
func (g *Generator) GenerateTemplate(endpoints []types.Endpoint) (string, error) {
	outputPath := filepath.Join(g.outputDir, TemplateFile)
	if err := writeDocument(outputPath, g.Template(endpoints)); err != nil {
		return "", fmt.Errorf("failed to write template: %w", err)
	}
	return outputPath, nil
}

// generateEndpointTestData generates test data for a specific endpoint
func (g *Generator) generateEndpointTestData(endpoint types.Endpoint) types.EndpointTestData {
	testData := types.EndpointTestData{
		PathParams:  make(map[string]interface{}),
		QueryParams: make(map[string]interface{}),
		Headers:     make(map[string]string),
	}

	for _, param := range endpoint.Parameters {
		switch param.In {
		case "path":
			testData.PathParams[param.Name] = "{{" + param.Name + "}}"
		case "query":
			if param.Required {
				testData.QueryParams[param.Name] = g.synthesizer.Synthesize(param.Schema, nil, param.Name, 0)
			}
		case "header":
			if param.Required {
				testData.Headers[param.Name] = types.FormatValue(g.synthesizer.Synthesize(param.Schema, nil, param.Name, 0))
			}
		}
	}

	if endpoint.HasBody() {
		testData.Body = g.synthesizer.Body(endpoint, nil)
	}

	return testData
}
