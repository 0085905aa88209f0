// Package config finds the string catalogs of a project and loads its
// .xcloc.yaml settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultInput is the catalog used when none is named and it exists.
const DefaultInput = "Localizable.xcstrings"

// CatalogExt is the extension of a string catalog.
const CatalogExt = ".xcstrings"

// outputSuffix marks catalogs written by a previous run.
const outputSuffix = "_localized" + CatalogExt

// ErrNoCatalog is returned when no input catalog can be determined.
var ErrNoCatalog = errors.New("no .xcstrings catalog found")

// skipDirs are never searched for catalogs.
var skipDirs = map[string]bool{
	"build":        true,
	"DerivedData":  true,
	"Pods":         true,
	"Carthage":     true,
	"node_modules": true,
}

// Project holds what was detected in the project root.
type Project struct {
	// Root is the absolute project root.
	Root string
	// Catalogs lists the .xcstrings files below Root, sorted, without the
	// outputs of earlier runs.
	Catalogs []string
	// File is the parsed .xcloc.yaml, or nil if there is none.
	File *File
}

// Detect scans rootDir for catalogs and loads .xcloc.yaml.
func Detect(rootDir string) (*Project, error) {
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		absRoot = rootDir
	}

	p := &Project{Root: absRoot}

	p.File, err = LoadFile(absRoot)
	if err != nil {
		return nil, err
	}

	p.Catalogs, err = findCatalogs(absRoot)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", absRoot, err)
	}
	return p, nil
}

func findCatalogs(root string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(name, CatalogExt) && !strings.HasSuffix(name, outputSuffix) {
			found = append(found, path)
		}
		return nil
	})
	sort.Strings(found)
	return found, err
}

// Input picks the catalog to translate. An explicit path wins (relative
// paths are taken from the working directory), then the configured input,
// then Localizable.xcstrings in the root, then the only catalog found.
func (p *Project) Input(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if p.File != nil && p.File.Input != "" {
		return p.abs(p.File.Input), nil
	}

	def := filepath.Join(p.Root, DefaultInput)
	if fileExists(def) {
		return def, nil
	}

	switch len(p.Catalogs) {
	case 0:
		return "", fmt.Errorf("%w in %s", ErrNoCatalog, p.Root)
	case 1:
		return p.Catalogs[0], nil
	default:
		rel := make([]string, len(p.Catalogs))
		for i, c := range p.Catalogs {
			rel[i] = p.Rel(c)
		}
		return "", fmt.Errorf("several catalogs found, name one of: %s", strings.Join(rel, ", "))
	}
}

// Output returns where the translated catalog of input goes: the explicit
// path, the configured output, or <input>_localized.xcstrings.
func (p *Project) Output(input, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p.File != nil && p.File.Output != "" {
		return p.abs(p.File.Output)
	}
	return OutputPath(input)
}

// OutputPath derives the default output path from an input path.
func OutputPath(input string) string {
	return strings.TrimSuffix(input, CatalogExt) + outputSuffix
}

// Rel returns path relative to the project root when possible.
func (p *Project) Rel(path string) string {
	if rel, err := filepath.Rel(p.Root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}

func (p *Project) abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.Root, path)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
