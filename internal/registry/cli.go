package registry

import (
	"fmt"
	"slices"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"
)

// scannedArgs holds the command line after classification against the registered flags.
type scannedArgs struct {
	// tokens are canonical --flag, --no-flag and --flag=value forms for kingpin,
	// at most one per option.
	tokens       []string
	configFile   string
	unrecognized []string

	index map[*entry]int
}

// set records the token for e, replacing an earlier one so the last
// occurrence of a repeated flag wins.
func (s *scannedArgs) set(e *entry, token string) {
	if i, ok := s.index[e]; ok {
		s.tokens[i] = token
		return
	}
	s.index[e] = len(s.tokens)
	s.tokens = append(s.tokens, token)
}

// scanArgs classifies arguments, extracts --config-file and rewrites boolean
// --flag=value forms into --flag / --no-flag. Only the last occurrence of a
// repeated option is passed on.
func (r *Registry) scanArgs(args []string) (scannedArgs, error) {
	out := scannedArgs{index: make(map[*entry]int)}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			out.unrecognized = append(out.unrecognized, args[i+1:]...)
			break
		}
		if !strings.HasPrefix(arg, "--") {
			out.unrecognized = append(out.unrecognized, arg)
			continue
		}

		name, value, hasValue := strings.Cut(arg[2:], "=")
		switch name {
		case configFileFlag:
			if !hasValue {
				if i+1 >= len(args) {
					return out, fmt.Errorf("--%s: %w", configFileFlag, ErrMissingValue)
				}
				i++
				value = args[i]
			}
			out.configFile = value
			continue
		case helpFlag:
			if !slices.Contains(out.tokens, arg) {
				out.tokens = append(out.tokens, arg)
			}
			continue
		}

		e, negated := r.flagEntry(name)
		if e == nil {
			out.unrecognized = append(out.unrecognized, arg)
			continue
		}

		if e.opt.Kind == KindBoolean {
			switch {
			case negated && hasValue:
				return out, &ConversionError{Group: e.group, Name: e.opt.Name, Kind: e.opt.Kind, Source: SourceCLI, Raw: value,
					Err: fmt.Errorf("--%s%s takes no value", negationPrefix, e.flag)}
			case negated:
				out.set(e, "--"+negationPrefix+e.flag)
			case hasValue:
				parsed, err := parseBoolean(value)
				if err != nil {
					return out, &ConversionError{Group: e.group, Name: e.opt.Name, Kind: e.opt.Kind, Source: SourceCLI, Raw: value, Err: err}
				}
				if parsed.(bool) {
					out.set(e, "--"+e.flag)
				} else {
					out.set(e, "--"+negationPrefix+e.flag)
				}
			default:
				out.set(e, "--"+e.flag)
			}
			continue
		}

		if !hasValue {
			if i+1 >= len(args) {
				return out, fmt.Errorf("--%s: %w", e.flag, ErrMissingValue)
			}
			i++
			value = args[i]
		}
		out.set(e, "--"+e.flag+"="+value)
	}

	return out, nil
}

// flagEntry finds the option addressed by a flag name. negated is set for
// --no-<flag> spellings of boolean options.
func (r *Registry) flagEntry(name string) (*entry, bool) {
	if k, ok := r.flags[name]; ok {
		return r.entries[k], false
	}
	if base, ok := strings.CutPrefix(name, negationPrefix); ok {
		if k, ok := r.flags[base]; ok && r.entries[k].opt.Kind == KindBoolean {
			return r.entries[k], true
		}
	}
	return nil, false
}

func (r *Registry) handleUnrecognized(args []string) error {
	if len(args) == 0 {
		return nil
	}
	if r.policy == RejectUnrecognized {
		return fmt.Errorf("%w: %s", ErrUnrecognizedOption, strings.Join(args, " "))
	}
	for _, arg := range args {
		r.logger.Debug("ignoring unrecognized argument", zap.String("arg", arg))
	}
	return nil
}

// applyCLI parses the scanned tokens with kingpin and overlays every flag that was set.
func (r *Registry) applyCLI(values map[key]Value, tokens []string) error {
	app := r.newApplication()

	recorded := make(map[key]*flagValue, len(r.order))
	for _, k := range r.order {
		e := r.entries[k]
		v := &flagValue{boolean: e.opt.Kind == KindBoolean}
		app.Flag(e.flag, flagHelp(e)).SetValue(v)
		recorded[k] = v
	}

	if _, err := app.Parse(tokens); err != nil {
		return fmt.Errorf("parse command line: %w", err)
	}

	for _, k := range r.order {
		v := recorded[k]
		if !v.set {
			continue
		}
		e := r.entries[k]
		value, err := e.opt.Kind.Parse(v.raw)
		if err != nil {
			return &ConversionError{Group: e.group, Name: e.opt.Name, Kind: e.opt.Kind, Source: SourceCLI, Raw: v.raw, Err: err}
		}
		values[k] = resolvedValue(e, value, SourceCLI)
	}
	return nil
}

func (r *Registry) newApplication() *kingpin.Application {
	app := kingpin.New(r.program, r.help)
	app.UsageWriter(r.usage)
	app.ErrorWriter(r.usage)
	app.Terminate(r.terminate)
	app.Flag(configFileFlag, "Path to a YAML configuration file.").PlaceHolder("PATH").String()
	return app
}

func flagHelp(e *entry) string {
	help := e.opt.Help
	if help == "" {
		help = e.group + "." + e.opt.Name
	}
	if e.opt.Secret {
		return fmt.Sprintf("%s (env %s)", help, e.env)
	}
	return fmt.Sprintf("%s (default %q, env %s)", help, e.opt.Kind.Format(e.opt.Default), e.env)
}

// flagValue records the raw text kingpin assigns to a flag. Conversion to the
// option kind happens afterwards so failures carry group, name and source.
type flagValue struct {
	raw     string
	set     bool
	boolean bool
}

func (v *flagValue) Set(s string) error {
	v.raw = s
	v.set = true
	return nil
}

func (v *flagValue) String() string { return v.raw }

// IsBoolFlag enables kingpin's --flag / --no-flag handling.
func (v *flagValue) IsBoolFlag() bool { return v.boolean }

// BoolFlagIsNegatable allows --no-<flag> on boolean options.
func (v *flagValue) BoolFlagIsNegatable() bool { return v.boolean }
