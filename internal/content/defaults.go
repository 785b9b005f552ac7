package content

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"gopkg.in/yaml.v2"
)

//go:embed defaults.yaml
var defaultsYAML []byte

var (
	defaultsOnce sync.Once
	defaultsDoc  Document
)

// Defaults returns a fresh copy of the baseline document.
func Defaults() Document {
	defaultsOnce.Do(func() {
		doc, err := parseDefaults(defaultsYAML)
		if err != nil {
			panic(err)
		}
		defaultsDoc = doc
	})
	return defaultsDoc.Clone()
}

func parseDefaults(raw []byte) (Document, error) {
	var doc Document
	if err := yaml.UnmarshalStrict(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("parse default content: %w", err)
	}
	if len(doc.Destinations) == 0 {
		return Document{}, fmt.Errorf("parse default content: no destinations")
	}
	return doc, nil
}

// YAML renders the document in the same layout as the embedded defaults.
func (d Document) YAML() ([]byte, error) {
	return yaml.Marshal(d)
}

// MergeYAML is Merge for a YAML document, such as one written by YAML.
func MergeYAML(raw []byte) (Document, error) {
	var tree any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return Document{}, fmt.Errorf("parse content yaml: %w", err)
	}
	encoded, err := json.Marshal(jsonTree(tree))
	if err != nil {
		return Document{}, fmt.Errorf("parse content yaml: %w", err)
	}
	return Merge(encoded), nil
}

// jsonTree rewrites the map[interface{}]interface{} nodes yaml.v2 produces
// into map[string]any.
func jsonTree(node any) any {
	switch n := node.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]any, len(n))
		for k, v := range n {
			out[fmt.Sprint(k)] = jsonTree(v)
		}
		return out
	case []interface{}:
		out := make([]any, len(n))
		for i, v := range n {
			out[i] = jsonTree(v)
		}
		return out
	default:
		return n
	}
}
