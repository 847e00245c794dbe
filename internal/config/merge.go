package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// sectionDecoders replaces one Config section from a YAML node. The section
// starts from the built-in defaults, so an overlay that names a section
// owns all of it and omitted fields do not leak in from the user file.
//
//nolint:gochecknoglobals // static table
var sectionDecoders = map[string]func(node *yaml.Node, dst, defaults *Config) error{
	"api":     func(n *yaml.Node, d, def *Config) error { return decodeSection(n, &d.API, def.API) },
	"bulk":    func(n *yaml.Node, d, def *Config) error { return decodeSection(n, &d.Bulk, def.Bulk) },
	"export":  func(n *yaml.Node, d, def *Config) error { return decodeSection(n, &d.Export, def.Export) },
	"session": func(n *yaml.Node, d, def *Config) error { return decodeSection(n, &d.Session, def.Session) },
	"cache":   func(n *yaml.Node, d, def *Config) error { return decodeSection(n, &d.Cache, def.Cache) },
	"logging": func(n *yaml.Node, d, def *Config) error { return decodeSection(n, &d.Logging, def.Logging) },
}

func decodeSection[T any](node *yaml.Node, dst *T, base T) error {
	if err := node.Decode(&base); err != nil {
		return err
	}
	*dst = base
	return nil
}

// ShallowMergeYAML overlays the file at overlayPath onto target one
// top-level section at a time. Sections the file does not mention are left
// alone and unknown top-level keys are ignored.
func ShallowMergeYAML(target *Config, overlayPath string) error {
	if target == nil {
		return errors.New("ShallowMergeYAML: nil target")
	}
	data, err := os.ReadFile(overlayPath)
	if err != nil {
		return fmt.Errorf("reading overlay %s: %w", overlayPath, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing overlay %s: %w", overlayPath, err)
	}
	// Empty or comment-only documents have no content node.
	if len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return nil
	}
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("parsing overlay %s: top level must be a mapping", overlayPath)
	}

	defaults := Default()
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i].Value, root.Content[i+1]
		decode, ok := sectionDecoders[key]
		if !ok {
			continue
		}
		if err := decode(value, target, defaults); err != nil {
			return fmt.Errorf("overlay section %q: %w", key, err)
		}
	}
	return nil
}

// mergeFile decodes a full config file over target field by field,
// rejecting unknown keys.
func mergeFile(target *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening config file %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}
