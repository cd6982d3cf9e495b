package mcpserver

import (
	"encoding/json"
	"fmt"
)

const (
	manifestSchema = "https://static.modelcontextprotocol.io/schemas/2025-10-17/server.schema.json"

	// publisherMetaKey namespaces publisher data inside _meta.
	publisherMetaKey = "io.modelcontextprotocol.registry/publisher-provided"

	// maxDescription is the registry limit on the server description.
	maxDescription = 100
)

// Manifest is the registry entry (server.json) for the gradelens MCP server.
type Manifest struct {
	Schema      string         `json:"$schema"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Version     string         `json:"version"`
	Repository  *Repository    `json:"repository,omitempty"`
	Packages    []Package      `json:"packages,omitempty"`
	Meta        map[string]any `json:"_meta,omitempty"`
}

// Repository points at the source of the server.
type Repository struct {
	URL    string `json:"url"`
	Source string `json:"source"`
	ID     string `json:"id,omitempty"`
}

// Package describes how a client launches the server.
type Package struct {
	RegistryType         string     `json:"registryType"`
	Identifier           string     `json:"identifier"`
	PackageArguments     []Argument `json:"packageArguments,omitempty"`
	EnvironmentVariables []EnvVar   `json:"environmentVariables,omitempty"`
	Transport            Transport  `json:"transport"`
}

// Argument is a command-line argument passed to the package.
type Argument struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
}

// EnvVar is an environment variable the server reads.
type EnvVar struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsRequired  bool   `json:"isRequired"`
	IsSecret    bool   `json:"isSecret"`
}

// Transport is the MCP transport the package speaks.
type Transport struct {
	Type string `json:"type"`
}

// serverEnv lists the variables the mcp command reads at startup.
var serverEnv = []EnvVar{
	{Name: "GRADELENS_CONFIG", Description: "Config file with pass thresholds, bands and signal weights"},
}

// describeServer summarises the registered tools in one registry-sized line.
func describeServer() string {
	d := fmt.Sprintf("Exam score analytics with %d tools: aggregates, bands, movers, signals, cohorts, rankings", len(catalog))
	if len(d) > maxDescription {
		d = d[:maxDescription]
	}
	return d
}

// GenerateManifest creates the MCP server manifest JSON. The tool catalogue
// is published under _meta so registries can list tools without connecting.
func GenerateManifest(version string) ([]byte, error) {
	if version == "" {
		version = "0.0.0"
	}

	manifest := Manifest{
		Schema:      manifestSchema,
		Name:        "io.github.panbanda/gradelens",
		Description: describeServer(),
		Version:     version,
		Repository: &Repository{
			URL:    "https://github.com/panbanda/gradelens",
			Source: "github",
		},
		Packages: []Package{
			{
				RegistryType:         "oci",
				Identifier:           "ghcr.io/panbanda/gradelens:" + version,
				PackageArguments:     []Argument{{Type: "positional", Value: "mcp"}},
				EnvironmentVariables: serverEnv,
				Transport:            Transport{Type: "stdio"},
			},
		},
		Meta: map[string]any{
			publisherMetaKey: map[string]any{"tools": catalog},
		},
	}

	return json.MarshalIndent(manifest, "", "  ")
}
