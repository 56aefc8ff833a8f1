package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// RolePolicy declares one signing slot and how it is labelled on the completed document.
type RolePolicy struct {
	Name  string `yaml:"name"`
	Label string `yaml:"label"`
}

// Policy is the sharing policy: which document types may be shared and which
// roles must sign. Role order is the display order of the signatures section.
type Policy struct {
	ShareableTypes []string     `yaml:"shareable_types"`
	Roles          []RolePolicy `yaml:"roles"`
}

// DefaultPolicy allows sharing birth certificates only, signed by both parents.
func DefaultPolicy() Policy {
	return Policy{
		ShareableTypes: []string{"certificat-naissance"},
		Roles: []RolePolicy{
			{Name: "mother", Label: "Mère"},
			{Name: "father", Label: "Père"},
		},
	}
}

// LoadPolicy reads a YAML policy file. An empty path yields DefaultPolicy.
func LoadPolicy(path string) (Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read policy file: %w", err)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("failed to parse policy file: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate checks the policy and fills missing role labels with the role name.
func (p *Policy) Validate() error {
	if len(p.ShareableTypes) == 0 {
		return errors.New("invalid policy: at least one shareable type is required")
	}
	if len(p.Roles) == 0 {
		return errors.New("invalid policy: at least one role is required")
	}
	seen := make(map[string]struct{}, len(p.Roles))
	for i := range p.Roles {
		r := &p.Roles[i]
		if r.Name == "" {
			return fmt.Errorf("invalid policy: role %d has no name", i)
		}
		if _, dup := seen[r.Name]; dup {
			return fmt.Errorf("invalid policy: duplicate role %q", r.Name)
		}
		seen[r.Name] = struct{}{}
		if r.Label == "" {
			r.Label = r.Name
		}
	}
	return nil
}
