package plugins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrSourceUnreadable marks a loader failure that prevented reading the whole
// source, as opposed to a single bad entry.
var ErrSourceUnreadable = errors.New("plugin source unreadable")

// Loader produces manifest records from some source. Bad entries are reported
// in errs and left out of the result; they never abort the load.
type Loader interface {
	Load(ctx context.Context) (manifests []Manifest, errs []error)
}

// DirLoader reads one manifest per .yaml, .yml or .json file under Dir.
type DirLoader struct {
	Dir string
}

func (l DirLoader) Load(ctx context.Context) ([]Manifest, []error) {
	var (
		out  []Manifest
		errs []error
	)
	walkErr := filepath.WalkDir(l.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == l.Dir {
				return err
			}
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != l.Dir && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			return nil
		}
		m, err := readManifest(path, ext)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			return nil
		}
		out = append(out, m)
		return nil
	})
	if walkErr != nil {
		return out, append(errs, fmt.Errorf("%w: %s: %v", ErrSourceUnreadable, l.Dir, walkErr))
	}
	return out, errs
}

func readManifest(path, ext string) (Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if ext == ".json" {
		err = json.Unmarshal(b, &m)
	} else {
		err = yaml.Unmarshal(b, &m)
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("parse: %w", err)
	}
	m.Location = path
	if err := validate(m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// StaticLoader serves an explicit registration list compiled into the binary.
type StaticLoader []Manifest

func (l StaticLoader) Load(context.Context) ([]Manifest, []error) {
	var (
		out  []Manifest
		errs []error
	)
	for i, m := range l {
		if m.Location == "" {
			m.Location = "static"
		}
		if err := validate(m); err != nil {
			errs = append(errs, fmt.Errorf("static[%d]: %w", i, err))
			continue
		}
		out = append(out, m)
	}
	return out, errs
}

// MultiLoader concatenates loaders in order; later entries win on slug collisions.
type MultiLoader []Loader

func (l MultiLoader) Load(ctx context.Context) ([]Manifest, []error) {
	var (
		out  []Manifest
		errs []error
	)
	for _, ld := range l {
		ms, es := ld.Load(ctx)
		out = append(out, ms...)
		errs = append(errs, es...)
	}
	return out, errs
}

func validate(m Manifest) error {
	if strings.TrimSpace(m.Slug) == "" {
		return errors.New("manifest has no slug")
	}
	return nil
}
