package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Definition is the declarative node/edge description of a workflow.
type Definition struct {
	Nodes []Node `json:"nodes" yaml:"nodes" validate:"required,min=1,dive"`
	Edges []Edge `json:"edges" yaml:"edges" validate:"dive"`
}

// Node is one stage instance in a workflow definition.
type Node struct {
	ID   string   `json:"id"   yaml:"id"   validate:"required"`
	Type string   `json:"type" yaml:"type" validate:"required"`
	Data NodeData `json:"data" yaml:"data"`
}

// NodeData carries the user-facing label and the stage configuration.
type NodeData struct {
	Label  string         `json:"label,omitempty"  yaml:"label,omitempty"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// Edge connects the output of one node to the next.
type Edge struct {
	Source string `json:"source" yaml:"source" validate:"required"`
	Target string `json:"target" yaml:"target" validate:"required"`
}

// Label returns the node label, falling back to its id.
func (n Node) Label() string {
	if label := strings.TrimSpace(n.Data.Label); label != "" {
		return label
	}
	return n.ID
}

// Config returns the node configuration, never nil.
func (n Node) Config() map[string]any {
	if n.Data.Config == nil {
		return map[string]any{}
	}
	return n.Data.Config
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks structural requirements of the definition (required ids,
// types and edge endpoints, unique node ids). Graph shape is checked by Resolve.
func (d Definition) Validate() error {
	if err := validate.Struct(d); err != nil {
		return newConfigError(ReasonInvalidDefinition, "", describeValidation(err))
	}
	seen := make(map[string]struct{}, len(d.Nodes))
	for _, node := range d.Nodes {
		if _, dup := seen[node.ID]; dup {
			return newConfigError(ReasonInvalidDefinition, node.ID, fmt.Sprintf("duplicate node id %q", node.ID))
		}
		seen[node.ID] = struct{}{}
	}
	return nil
}

// Encode renders the definition as compact JSON for storage.
func (d Definition) Encode() ([]byte, error) {
	return json.Marshal(d)
}

// Parse decodes a JSON workflow definition.
func Parse(data []byte) (Definition, error) {
	var def Definition
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&def); err != nil {
		return Definition{}, newConfigError(ReasonInvalidDefinition, "", fmt.Sprintf("decode definition: %v", err))
	}
	return def, def.Validate()
}

// ParseYAML decodes a YAML workflow definition.
func ParseYAML(data []byte) (Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, newConfigError(ReasonInvalidDefinition, "", fmt.Sprintf("decode definition: %v", err))
	}
	return def, def.Validate()
}

// Load reads a definition file. Files ending in .yaml or .yml are decoded as
// YAML, everything else as JSON.
func Load(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("read workflow definition: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return Parse(data)
	}
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
