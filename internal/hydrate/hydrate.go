// File: internal/hydrate/hydrate.go
// Brief: Placeholder hydration for config documents.

// Package hydrate replaces ${UPPER_SNAKE_CASE} placeholders in config files
// with real values. In CI the values come from process environment variables;
// locally they come from the environment's secret file. A fully-resolved fork
// of the config hydrates as a no-op, so callers run Hydrate unconditionally.
package hydrate

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\$\{([A-Z][A-Z0-9_]*)\}`)

// MissingSecretError names a placeholder that had no value in the active
// source. Hydration never writes a partially substituted file.
type MissingSecretError struct {
	Key  string
	File string
}

func (e *MissingSecretError) Error() string {
	return fmt.Sprintf("no value for placeholder ${%s} in %s (set the variable or add it to config_secrets, then re-run)", e.Key, e.File)
}

// Source resolves placeholder names to secret values.
type Source interface {
	Lookup(key string) (string, bool)
	Name() string
}

type envSource struct {
	lookup func(string) (string, bool)
}

func (s envSource) Lookup(key string) (string, bool) { return s.lookup(key) }
func (s envSource) Name() string                     { return "process environment" }

// EnvSource reads values from process environment variables named exactly as
// the placeholder. Pass nil to use os.LookupEnv.
func EnvSource(lookup func(string) (string, bool)) Source {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return envSource{lookup: lookup}
}

type fileSource struct {
	path   string
	values map[string]string
}

func (s fileSource) Lookup(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s fileSource) Name() string { return s.path }

// FileSource reads values from the config_secrets section of a per-environment
// secret file. The other sections are never consulted for hydration.
func FileSource(path string) (Source, error) {
	sf, err := LoadSecretFile(path)
	if err != nil {
		return nil, err
	}
	return fileSource{path: path, values: sf.ConfigSecrets}, nil
}

// Result describes one hydration pass.
type Result struct {
	// Replaced maps each rewritten file to the sorted placeholder keys that
	// were substituted in it.
	Replaced map[string][]string
}

// NoOp reports that no file contained a placeholder and nothing was written.
func (r *Result) NoOp() bool { return len(r.Replaced) == 0 }

// Hydrate substitutes placeholders in the target files. Every substitution is
// staged in memory first; files are rewritten only after every placeholder in
// every target resolved, so a MissingSecretError leaves all targets untouched.
func Hydrate(targets []string, src Source) (*Result, error) {
	type staged struct {
		path string
		data []byte
		keys []string
	}
	var writes []staged
	res := &Result{Replaced: map[string][]string{}}
	for _, path := range targets {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		matches := placeholderRe.FindAllStringSubmatch(string(data), -1)
		if len(matches) == 0 {
			continue
		}
		seen := map[string]string{}
		for _, m := range matches {
			key := m[1]
			if _, ok := seen[key]; ok {
				continue
			}
			value, ok := src.Lookup(key)
			if !ok {
				return nil, &MissingSecretError{Key: key, File: path}
			}
			seen[key] = value
		}
		out := string(data)
		keys := make([]string, 0, len(seen))
		for key, value := range seen {
			out = strings.ReplaceAll(out, "${"+key+"}", value)
			keys = append(keys, key)
		}
		sort.Strings(keys)
		writes = append(writes, staged{path: path, data: []byte(out), keys: keys})
	}
	for _, w := range writes {
		info, err := os.Stat(w.path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", w.path, err)
		}
		if err := os.WriteFile(w.path, w.data, info.Mode().Perm()); err != nil {
			return nil, fmt.Errorf("write %s: %w", w.path, err)
		}
		res.Replaced[w.path] = w.keys
	}
	return res, nil
}

// TemplateSuffix is the extension of the checked-in template companion of a
// hydratable file.
const TemplateSuffix = ".tmpl"

// Restore rewrites each target from its checked-in template companion
// (<file>.tmpl), undoing local hydration. Targets without a companion are
// skipped; the returned list names the files that were restored.
func Restore(targets []string) ([]string, error) {
	var restored []string
	for _, path := range targets {
		tmpl := path + TemplateSuffix
		data, err := os.ReadFile(tmpl)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return restored, fmt.Errorf("read %s: %w", tmpl, err)
		}
		// Keep the hydrated file's permissions, like Hydrate does on the way in.
		mode := os.FileMode(0o644)
		if info, err := os.Stat(path); err == nil {
			mode = info.Mode().Perm()
		}
		if err := os.WriteFile(path, data, mode); err != nil {
			return restored, fmt.Errorf("restore %s: %w", path, err)
		}
		restored = append(restored, path)
	}
	return restored, nil
}
