// Package producer provides ready-made value producers for litecache.Cache.
//
// Each constructor returns a Func that loads a value when the cache misses.
// Failures to read a source wrap ErrLoad; malformed content wraps ErrParse.
package producer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

var (
	// ErrLoad is returned when a source cannot be read.
	ErrLoad = errors.New("producer: load failed")

	// ErrParse is returned when a source is read but its content is malformed.
	ErrParse = errors.New("producer: parse failed")

	// ErrCapture is returned when a captured routine fails or panics.
	ErrCapture = errors.New("producer: capture failed")
)

// Func computes a value. It is assignable to litecache.Producer.
type Func func() (any, error)

// orOS returns fs, or the OS filesystem when fs is nil.
func orOS(fs afero.Fs) afero.Fs {
	if fs == nil {
		return afero.NewOsFs()
	}
	return fs
}

func readSource(fs afero.Fs, path string) ([]byte, error) {
	data, err := afero.ReadFile(orOS(fs), path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoad, path, err)
	}
	return data, nil
}

// File returns the content of path as a string. A nil fs reads from the OS
// filesystem.
func File(fs afero.Fs, path string) Func {
	return func() (any, error) {
		data, err := readSource(fs, path)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	}
}

// JSON decodes path into maps, slices and scalars. Objects become
// map[string]any and numbers float64.
func JSON(fs afero.Fs, path string) Func {
	return func() (any, error) {
		data, err := readSource(fs, path)
		if err != nil {
			return nil, err
		}

		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrParse, path, err)
		}
		return v, nil
	}
}

// YAML decodes path into maps, slices and scalars.
func YAML(fs afero.Fs, path string) Func {
	return func() (any, error) {
		data, err := readSource(fs, path)
		if err != nil {
			return nil, err
		}

		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrParse, path, err)
		}
		return v, nil
	}
}

// INI parses path into a map. Keys outside any section sit at the top level;
// each section becomes a nested map[string]any of string values.
func INI(fs afero.Fs, path string) Func {
	return func() (any, error) {
		data, err := readSource(fs, path)
		if err != nil {
			return nil, err
		}

		f, err := ini.Load(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrParse, path, err)
		}

		out := map[string]any{}
		for _, sec := range f.Sections() {
			if sec.Name() == ini.DefaultSection {
				for _, key := range sec.Keys() {
					out[key.Name()] = key.String()
				}
				continue
			}

			values := make(map[string]any, len(sec.Keys()))
			for _, key := range sec.Keys() {
				values[key.Name()] = key.String()
			}
			out[sec.Name()] = values
		}
		return out, nil
	}
}

// Capture runs fn with a buffer and returns what it wrote as a string.
// If fn returns an error or panics, the buffer is discarded and the failure
// is returned wrapping ErrCapture.
func Capture(fn func(w io.Writer) error) Func {
	return func() (v any, err error) {
		var buf bytes.Buffer
		defer func() {
			if r := recover(); r != nil {
				v, err = nil, fmt.Errorf("%w: panic: %v", ErrCapture, r)
			}
		}()

		if err := fn(&buf); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCapture, err)
		}
		return buf.String(), nil
	}
}
