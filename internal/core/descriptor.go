package core

import (
	"sort"

	"github.com/git-pkgs/spdx"
)

// Descriptor is the subset of a package descriptor the resolution
// pipeline reads before the full download is available.
type Descriptor struct {
	Name         string
	Version      string
	License      string // SPDX expression when it could be normalized
	Main         string
	Dependencies []Dependency
}

// Dependency is a declared dependency of a package.
type Dependency struct {
	Name         string
	Requirements string
}

// DescriptorOf extracts a Descriptor from a parsed package config.
// Unknown or malformed fields are left empty.
func DescriptorOf(cfg PackageConfig) Descriptor {
	d := Descriptor{
		Name:    stringField(cfg, "name"),
		Version: stringField(cfg, "version"),
		Main:    stringField(cfg, "main"),
	}

	if lic := licenseField(cfg["license"]); lic != "" {
		if normalized, err := spdx.Normalize(lic); err == nil {
			d.License = normalized
		} else {
			d.License = lic
		}
	}

	if deps, ok := cfg["dependencies"].(map[string]any); ok {
		for name, req := range deps {
			r, _ := req.(string)
			d.Dependencies = append(d.Dependencies, Dependency{Name: name, Requirements: r})
		}
		sort.Slice(d.Dependencies, func(i, j int) bool {
			return d.Dependencies[i].Name < d.Dependencies[j].Name
		})
	}

	return d
}

func stringField(cfg PackageConfig, key string) string {
	s, _ := cfg[key].(string)
	return s
}

// licenseField handles both "MIT" and the legacy {"type": "MIT"} form.
func licenseField(v any) string {
	switch l := v.(type) {
	case string:
		return l
	case map[string]any:
		s, _ := l["type"].(string)
		return s
	}
	return ""
}
