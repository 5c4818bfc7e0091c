package registry

import (
	"fmt"
	"strings"
)

// DefaultGroup holds options registered without a group, including CLI options.
const DefaultGroup = "default"

// Option declares a single named, typed, defaulted configuration value.
type Option struct {
	Name    string
	Kind    Kind
	Default any
	Help    string
	// Secret hides the value from listings and logs.
	Secret bool
}

// StringOpt declares a string option.
func StringOpt(name, def, help string) Option {
	return Option{Name: name, Kind: KindString, Default: def, Help: help}
}

// IntOpt declares an integer option.
func IntOpt(name string, def int, help string) Option {
	return Option{Name: name, Kind: KindInteger, Default: def, Help: help}
}

// BoolOpt declares a boolean option.
func BoolOpt(name string, def bool, help string) Option {
	return Option{Name: name, Kind: KindBoolean, Default: def, Help: help}
}

// ListOpt declares an ordered string list option.
func ListOpt(name string, def []string, help string) Option {
	if def == nil {
		def = []string{}
	}
	return Option{Name: name, Kind: KindStringList, Default: def, Help: help}
}

// MapOpt declares a string-to-string map option.
func MapOpt(name string, def map[string]string, help string) Option {
	if def == nil {
		def = map[string]string{}
	}
	return Option{Name: name, Kind: KindStringMap, Default: def, Help: help}
}

// AsSecret returns a copy of the option whose value is masked in listings.
func (o Option) AsSecret() Option {
	o.Secret = true
	return o
}

func (o Option) validate() error {
	if strings.TrimSpace(o.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidOption)
	}
	c, ok := codecs[o.Kind]
	if !ok {
		return fmt.Errorf("%w: %s has unsupported kind %s", ErrInvalidOption, o.Name, o.Kind)
	}
	if !c.check(o.Default) {
		return fmt.Errorf("%w: %s default %T does not match kind %s", ErrInvalidOption, o.Name, o.Default, o.Kind)
	}
	if err := checkText(o.Kind, o.Default); err != nil {
		return fmt.Errorf("%w: %s default: %v", ErrInvalidOption, o.Name, err)
	}
	return nil
}

// Source identifies the layer a resolved value came from.
type Source int

const (
	SourceDefault Source = iota
	SourceFile
	SourceEnv
	SourceCLI
)

func (s Source) String() string {
	switch s {
	case SourceDefault:
		return "default"
	case SourceFile:
		return "file"
	case SourceEnv:
		return "env"
	case SourceCLI:
		return "cli"
	}
	return fmt.Sprintf("source(%d)", int(s))
}

const secretMask = "****"

// Value is the resolved value of an option together with its origin.
type Value struct {
	Group  string
	Name   string
	Kind   Kind
	Value  any
	Source Source
	Secret bool
}

// Display renders the value as text, masking secrets.
func (v Value) Display() string {
	if v.Secret {
		return secretMask
	}
	return v.Kind.Format(v.Value)
}
