package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// FileCandidate is a configuration file location proposed by a FileResolver.
type FileCandidate struct {
	Path string
	// Required candidates must exist; a missing optional candidate passes to the next resolver.
	Required bool
	Origin   string
}

// ResolveInput is what a FileResolver may consult.
type ResolveInput struct {
	// FlagValue is the value of --config-file, empty when absent.
	FlagValue string
	LookupEnv func(string) (string, bool)
}

// FileResolver proposes a configuration file. The first resolver returning
// true whose file exists wins.
type FileResolver func(in ResolveInput) (FileCandidate, bool)

// FromFlag resolves the path passed with --config-file.
func FromFlag() FileResolver {
	return func(in ResolveInput) (FileCandidate, bool) {
		if in.FlagValue == "" {
			return FileCandidate{}, false
		}
		return FileCandidate{Path: in.FlagValue, Required: true, Origin: "--" + configFileFlag}, true
	}
}

// FromEnv resolves the path held by an environment variable.
func FromEnv(name string) FileResolver {
	return func(in ResolveInput) (FileCandidate, bool) {
		path, ok := in.LookupEnv(name)
		if !ok || strings.TrimSpace(path) == "" {
			return FileCandidate{}, false
		}
		return FileCandidate{Path: strings.TrimSpace(path), Required: true, Origin: name}, true
	}
}

// AtPath resolves a conventional location that may be absent.
func AtPath(path string) FileResolver {
	return func(ResolveInput) (FileCandidate, bool) {
		return FileCandidate{Path: path, Origin: "default path"}, true
	}
}

// loadConfigFile walks the resolvers and returns the first readable file.
// A nil result with no error means no file applies.
func (r *Registry) loadConfigFile(flagValue string) (string, []byte, error) {
	in := ResolveInput{FlagValue: flagValue, LookupEnv: r.lookupEnv}
	for _, resolve := range r.resolvers {
		candidate, ok := resolve(in)
		if !ok {
			continue
		}
		data, err := r.readFile(candidate.Path)
		if err == nil {
			r.logger.Debug("configuration file loaded",
				zap.String("path", candidate.Path),
				zap.String("origin", candidate.Origin),
			)
			return candidate.Path, data, nil
		}
		if errors.Is(err, fs.ErrNotExist) && !candidate.Required {
			r.logger.Debug("optional configuration file not found", zap.String("path", candidate.Path))
			continue
		}
		return "", nil, fmt.Errorf("%w: %s (from %s): %v", ErrConfigFile, candidate.Path, candidate.Origin, err)
	}
	return "", nil, nil
}

// applyFile overlays values from a YAML document whose sections are groups.
// Unknown sections and keys are ignored; null values keep the lower layer.
func (r *Registry) applyFile(values map[key]Value, path string, data []byte) error {
	var doc map[string]map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrConfigFile, path, err)
	}

	for group, section := range doc {
		for name, node := range section {
			k := key{group: group, name: name}
			e, ok := r.entries[k]
			if !ok {
				r.logger.Debug("ignoring unknown configuration file option",
					zap.String("path", path),
					zap.String("option", k.String()),
				)
				continue
			}

			value, raw, set, err := decodeNode(e.opt.Kind, &node)
			if err != nil {
				return &ConversionError{Group: group, Name: name, Kind: e.opt.Kind, Source: SourceFile, Raw: raw, Err: err}
			}
			if !set {
				continue
			}
			values[k] = resolvedValue(e, value, SourceFile)
		}
	}
	return nil
}

// decodeNode converts a YAML node into a value of kind. Scalars go through
// the kind's text parser; sequences and mappings are accepted for lists and
// maps as long as every element could also be written in the text form.
func decodeNode(kind Kind, node *yaml.Node) (any, string, bool, error) {
	if node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}

	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil, "", false, nil
		}
		value, err := kind.Parse(node.Value)
		return value, node.Value, true, err
	case yaml.SequenceNode:
		if kind != KindStringList {
			return nil, "<sequence>", true, fmt.Errorf("sequence not allowed for %s", kind)
		}
		items := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, "<sequence>", true, fmt.Errorf("list elements must be scalars (line %d)", item.Line)
			}
			if err := checkListElement(item.Value); err != nil {
				return nil, item.Value, true, err
			}
			items = append(items, item.Value)
		}
		return items, FormatList(items), true, nil
	case yaml.MappingNode:
		if kind != KindStringMap {
			return nil, "<mapping>", true, fmt.Errorf("mapping not allowed for %s", kind)
		}
		out := make(map[string]string, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			k, v := node.Content[i], node.Content[i+1]
			if k.Kind != yaml.ScalarNode || v.Kind != yaml.ScalarNode {
				return nil, "<mapping>", true, fmt.Errorf("map entries must be scalars (line %d)", k.Line)
			}
			if err := checkMapEntry(k.Value, v.Value); err != nil {
				return nil, k.Value + pairSeparator + v.Value, true, err
			}
			out[k.Value] = v.Value
		}
		return out, FormatMap(out), true, nil
	}
	return nil, "", true, fmt.Errorf("unsupported YAML node at line %d", node.Line)
}

// applyEnv overlays values from <PREFIX>_<GROUP>_<NAME> variables. Empty values are ignored.
func (r *Registry) applyEnv(values map[key]Value) error {
	for _, k := range r.order {
		e := r.entries[k]
		raw, ok := r.lookupEnv(e.env)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		value, err := e.opt.Kind.Parse(raw)
		if err != nil {
			return &ConversionError{Group: e.group, Name: e.opt.Name, Kind: e.opt.Kind, Source: SourceEnv, Raw: raw, Err: err}
		}
		values[k] = resolvedValue(e, value, SourceEnv)
	}
	return nil
}

func resolvedValue(e *entry, value any, source Source) Value {
	return Value{
		Group:  e.group,
		Name:   e.opt.Name,
		Kind:   e.opt.Kind,
		Value:  value,
		Source: source,
		Secret: e.opt.Secret,
	}
}
