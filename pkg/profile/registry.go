package profile

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is matched by errors.Is for every lookup miss.
var ErrNotFound = errors.New("profile not found")

// NotFoundError reports an unknown profile label.
type NotFoundError struct {
	Label string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("unknown profile %q", e.Label)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Registry is an immutable label → profile mapping.
type Registry struct {
	byLabel map[string]Profile
	ordered []Profile
}

type registryFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// Load decodes a profiles YAML document into a registry.
func Load(data []byte) (*Registry, error) {
	var doc registryFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	return New(doc.Profiles...)
}

// LoadFile reads and decodes a profiles YAML file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles file: %w", err)
	}
	r, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// New builds a registry from profiles. Labels must be unique.
func New(profiles ...Profile) (*Registry, error) {
	if len(profiles) == 0 {
		return nil, errors.New("no profiles defined")
	}
	r := &Registry{byLabel: make(map[string]Profile, len(profiles))}
	for _, p := range profiles {
		if err := p.validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byLabel[p.Label]; dup {
			return nil, fmt.Errorf("duplicate profile label %q", p.Label)
		}
		p = clone(p)
		r.byLabel[p.Label] = p
		r.ordered = append(r.ordered, p)
	}
	sort.Slice(r.ordered, func(i, j int) bool { return r.ordered[i].Label < r.ordered[j].Label })
	return r, nil
}

// Lookup returns the profile registered under label.
func (r *Registry) Lookup(label string) (Profile, error) {
	p, ok := r.byLabel[label]
	if !ok {
		return Profile{}, &NotFoundError{Label: label}
	}
	return clone(p), nil
}

// List returns all profiles sorted by label.
func (r *Registry) List() []Profile {
	out := make([]Profile, len(r.ordered))
	for i, p := range r.ordered {
		out[i] = clone(p)
	}
	return out
}

// Labels returns the sorted profile labels.
func (r *Registry) Labels() []string {
	out := make([]string, len(r.ordered))
	for i, p := range r.ordered {
		out[i] = p.Label
	}
	return out
}

// Len returns the number of profiles.
func (r *Registry) Len() int { return len(r.ordered) }

// clone deep-copies the credential pointer so callers cannot reach into
// registry state.
func clone(p Profile) Profile {
	if p.Credentials != nil {
		c := *p.Credentials
		c.SSHKeys = append([]string(nil), p.Credentials.SSHKeys...)
		p.Credentials = &c
	}
	return p
}
