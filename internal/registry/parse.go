package registry

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Parse resolves every registered option from, in increasing precedence,
// its default, the configuration file, the environment and args. A nil args
// uses os.Args[1:]. Nothing is published unless every layer succeeds.
// Parse runs once; call Reset before parsing again.
func (r *Registry) Parse(args []string) error {
	if args == nil {
		args = os.Args[1:]
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resolved.Load() != nil {
		return ErrAlreadyParsed
	}

	scanned, err := r.scanArgs(args)
	if err != nil {
		return err
	}
	if err := r.handleUnrecognized(scanned.unrecognized); err != nil {
		return err
	}

	values := r.defaults()

	path, data, err := r.loadConfigFile(scanned.configFile)
	if err != nil {
		return err
	}
	if path != "" {
		if err := r.applyFile(values, path, data); err != nil {
			return err
		}
	}

	if err := r.applyEnv(values); err != nil {
		return err
	}

	if err := r.applyCLI(values, scanned.tokens); err != nil {
		return err
	}

	confdir := r.configDir
	if path != "" {
		confdir = filepath.Dir(path)
	}
	if err := interpolate(values, confdir); err != nil {
		return err
	}

	r.resolved.Store(&snapshot{values: values, configFile: path})
	r.logger.Debug("configuration parsed",
		zap.Int("options", len(values)),
		zap.String("config_file", path),
	)
	return nil
}

// MustParse calls Parse and panics on error.
func (r *Registry) MustParse(args []string) {
	if err := r.Parse(args); err != nil {
		panic(fmt.Sprintf("parse configuration: %v", err))
	}
}

func (r *Registry) defaults() map[key]Value {
	values := make(map[key]Value, len(r.order))
	for _, k := range r.order {
		e := r.entries[k]
		values[k] = resolvedValue(e, codecs[e.opt.Kind].clone(e.opt.Default), SourceDefault)
	}
	return values
}
