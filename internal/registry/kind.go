package registry

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Kind identifies the value type of an option.
type Kind int

const (
	KindString Kind = iota + 1
	KindInteger
	KindBoolean
	KindStringList
	KindStringMap
)

const (
	listSeparator = ","
	pairSeparator = "="
	// oslo-style dictionaries use key:value pairs; accepted when no '=' is present.
	altPairSeparator = ":"
)

var errEmptyKey = errors.New("empty key")

// codec holds the text conversions of a single kind.
type codec struct {
	name   string
	parse  func(raw string) (any, error)
	format func(v any) string
	check  func(v any) bool
	clone  func(v any) any
}

var codecs = map[Kind]codec{
	KindString: {
		name:   "string",
		parse:  func(raw string) (any, error) { return raw, nil },
		format: func(v any) string { return v.(string) },
		check:  isType[string],
		clone:  identity,
	},
	KindInteger: {
		name:   "integer",
		parse:  parseInteger,
		format: func(v any) string { return strconv.Itoa(v.(int)) },
		check:  isType[int],
		clone:  identity,
	},
	KindBoolean: {
		name:   "boolean",
		parse:  parseBoolean,
		format: func(v any) string { return strconv.FormatBool(v.(bool)) },
		check:  isType[bool],
		clone:  identity,
	},
	KindStringList: {
		name:   "list",
		parse:  func(raw string) (any, error) { return ParseList(raw), nil },
		format: func(v any) string { return FormatList(v.([]string)) },
		check:  isType[[]string],
		clone:  func(v any) any { return slices.Clone(v.([]string)) },
	},
	KindStringMap: {
		name:   "map",
		parse:  func(raw string) (any, error) { return ParseMap(raw) },
		format: func(v any) string { return FormatMap(v.(map[string]string)) },
		check:  isType[map[string]string],
		clone:  func(v any) any { return maps.Clone(v.(map[string]string)) },
	},
}

func (k Kind) String() string {
	if c, ok := codecs[k]; ok {
		return c.name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) valid() bool {
	_, ok := codecs[k]
	return ok
}

// Parse converts raw text into a value of the kind.
func (k Kind) Parse(raw string) (any, error) {
	c, ok := codecs[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidOption, k)
	}
	return c.parse(raw)
}

// Format renders a value of the kind in the textual form accepted by Parse.
func (k Kind) Format(v any) string {
	c, ok := codecs[k]
	if !ok || !c.check(v) {
		return fmt.Sprint(v)
	}
	return c.format(v)
}

// ParseList splits a comma-separated string into trimmed elements.
// Order and duplicates are preserved; an empty string yields an empty list.
func ParseList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, listSeparator)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, strings.TrimSpace(part))
	}
	return out
}

// FormatList joins list elements with commas.
func FormatList(values []string) string {
	return strings.Join(values, listSeparator)
}

// checkListElement rejects elements that FormatList then ParseList would not
// give back unchanged.
func checkListElement(s string) error {
	switch {
	case s == "":
		return errors.New("empty list element")
	case strings.Contains(s, listSeparator):
		return fmt.Errorf("list element %q contains %q", s, listSeparator)
	case strings.TrimSpace(s) != s:
		return fmt.Errorf("list element %q has surrounding whitespace", s)
	}
	return nil
}

// checkMapEntry rejects pairs that FormatMap then ParseMap would not give
// back unchanged.
func checkMapEntry(key, value string) error {
	switch {
	case key == "":
		return errEmptyKey
	case strings.ContainsAny(key, listSeparator+pairSeparator):
		return fmt.Errorf("map key %q contains %q or %q", key, listSeparator, pairSeparator)
	case strings.Contains(value, listSeparator):
		return fmt.Errorf("map value %q for key %q contains %q", value, key, listSeparator)
	case strings.TrimSpace(key) != key, strings.TrimSpace(value) != value:
		return fmt.Errorf("map entry %q=%q has surrounding whitespace", key, value)
	}
	return nil
}

// checkText reports whether a list or map value survives a text round trip.
func checkText(kind Kind, v any) error {
	switch kind {
	case KindStringList:
		for _, item := range v.([]string) {
			if err := checkListElement(item); err != nil {
				return err
			}
		}
	case KindStringMap:
		for key, value := range v.(map[string]string) {
			if err := checkMapEntry(key, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// ParseMap parses a comma-separated series of key=value pairs.
// The last value wins when a key repeats.
func ParseMap(raw string) (map[string]string, error) {
	out := make(map[string]string)
	for _, part := range strings.Split(raw, listSeparator) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		sep := pairSeparator
		if !strings.Contains(part, pairSeparator) {
			sep = altPairSeparator
		}
		key, value, found := strings.Cut(part, sep)
		if !found {
			return nil, fmt.Errorf("pair %q has no %q separator", part, pairSeparator)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("pair %q: %w", part, errEmptyKey)
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}

// FormatMap renders a map as key=value pairs sorted by key.
func FormatMap(values map[string]string) string {
	keys := slices.Sorted(maps.Keys(values))
	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+pairSeparator+values[key])
	}
	return strings.Join(pairs, listSeparator)
}

func parseInteger(raw string) (any, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid integer %q", raw)
	}
	return value, nil
}

func parseBoolean(raw string) (any, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0":
		return false, nil
	}
	return nil, fmt.Errorf("invalid boolean %q", raw)
}

func isType[T any](v any) bool {
	_, ok := v.(T)
	return ok
}

func identity(v any) any { return v }
