// Package definition loads, validates and stores workflow definitions.
package definition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	serrors "github.com/akatz-ai/stepgraph/internal/errors"
	"github.com/akatz-ai/stepgraph/internal/types"
)

// Format is a definition document encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Extensions lists recognized file extensions in lookup order.
var Extensions = []string{".toml", ".yaml", ".yml", ".json"}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unrecognized definition format for %s (want one of %s)", path, strings.Join(Extensions, ", "))
}

// ParseFile reads and parses a definition file.
func ParseFile(path string) (*types.WorkflowDefinition, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, serrors.DefinitionParseError(path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, serrors.IOFileNotFound(path)
		}
		return nil, serrors.IOReadError(path, err)
	}

	def, err := Parse(data, format)
	if err != nil {
		if serrors.Code(err) == serrors.CodeDefParseError {
			return nil, serrors.DefinitionParseError(path, err)
		}
		return nil, err
	}
	return def, nil
}

// Parse decodes a definition document, checks its shape against the
// definition schema, and applies field rules. It does not build the graph.
func Parse(data []byte, format Format) (*types.WorkflowDefinition, error) {
	doc, err := decodeDocument(data, format)
	if err != nil {
		return nil, serrors.Wrap(serrors.CodeDefParseError, fmt.Sprintf("invalid %s", format), err)
	}

	if err := checkSchema(doc); err != nil {
		return nil, err
	}

	// Re-encode the checked document so every format shares one typed decode.
	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, serrors.Wrap(serrors.CodeDefParseError, "failed to normalize definition", err)
	}
	var def types.WorkflowDefinition
	if err := json.Unmarshal(normalized, &def); err != nil {
		return nil, serrors.Wrap(serrors.CodeDefParseError, "failed to decode definition", err)
	}

	if err := Check(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

func decodeDocument(data []byte, format Format) (map[string]any, error) {
	doc := make(map[string]any)
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	return doc, nil
}

// Marshal encodes def in the given format.
func Marshal(def *types.WorkflowDefinition, format Format) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatTOML:
		if err := toml.NewEncoder(&buf).Encode(def); err != nil {
			return nil, err
		}
	case FormatYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(def); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
	case FormatJSON:
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(def); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	return buf.Bytes(), nil
}
