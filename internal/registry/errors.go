package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateOption is returned when an option, or a flag/env name derived from it, is already registered.
	ErrDuplicateOption = errors.New("duplicate option")
	// ErrInvalidOption is returned when an option declaration is malformed.
	ErrInvalidOption = errors.New("invalid option")
	// ErrTypeConversion is returned when a raw value cannot be converted to the option kind.
	ErrTypeConversion = errors.New("type conversion failed")
	// ErrUnrecognizedOption is returned when a command-line argument matches no registered option.
	ErrUnrecognizedOption = errors.New("unrecognized option")
	// ErrMissingValue is returned when a value-taking flag ends the command line.
	ErrMissingValue = errors.New("flag requires a value")
	// ErrUnknownOption is returned when a value is requested for an unregistered option.
	ErrUnknownOption = errors.New("unknown option")
	// ErrNotParsed is returned when values are requested before Parse.
	ErrNotParsed = errors.New("configuration not parsed")
	// ErrAlreadyParsed is returned by Parse and Register once the registry holds resolved values.
	ErrAlreadyParsed = errors.New("configuration already parsed")
	// ErrKindMismatch is returned by typed accessors used on an option of another kind.
	ErrKindMismatch = errors.New("option kind mismatch")
	// ErrInterpolation is returned when a %(key)s reference cannot be resolved.
	ErrInterpolation = errors.New("interpolation failed")
	// ErrConfigFile is returned when the configuration file cannot be read or decoded.
	ErrConfigFile = errors.New("invalid configuration file")
)

// ConversionError reports a raw value that could not be converted to the kind of its option.
type ConversionError struct {
	Group  string
	Name   string
	Kind   Kind
	Source Source
	Raw    string
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("%s.%s: cannot convert %s value %q to %s: %v", e.Group, e.Name, e.Source, e.Raw, e.Kind, e.Err)
}

// Is reports ErrTypeConversion so callers can match with errors.Is.
func (e *ConversionError) Is(target error) bool {
	return target == ErrTypeConversion
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}
