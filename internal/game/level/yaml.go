package level

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// loadDir decodes every *.yaml file in dir as one T, rejecting unknown
// fields, and validates each with validate.
//
// Postcondition: Returns every decoded value, or an error naming every bad file.
func loadDir[T any](dir string, validate func(*T) error) ([]*T, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading dir %q: %w", dir, err)
	}
	var (
		out  []*T
		errs []error
	)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		v := new(T)
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(v); err != nil {
			errs = append(errs, fmt.Errorf("parsing %q: %w", path, err))
			continue
		}
		if err := validate(v); err != nil {
			errs = append(errs, fmt.Errorf("validating %q: %w", path, err))
			continue
		}
		out = append(out, v)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
