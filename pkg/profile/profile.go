// Package profile holds the OS profiles a VM can be provisioned from and the
// read-only registry that maps display labels to them.
package profile

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Family selects the provisioning recipe used for a profile.
type Family int

const (
	// FamilyUnknown is the zero value; it never appears in a loaded registry.
	FamilyUnknown Family = iota
	// LinuxCloudImage boots a prebuilt cloud disk image configured by a
	// cloud-init seed.
	LinuxCloudImage
	// WindowsInstaller boots an installer ISO against an empty disk.
	WindowsInstaller
)

var familyNames = map[Family]string{
	LinuxCloudImage:  "linux-cloud-image",
	WindowsInstaller: "windows-installer",
}

func (f Family) String() string {
	if name, ok := familyNames[f]; ok {
		return name
	}
	return "unknown"
}

// ParseFamily maps a family name to its value.
func ParseFamily(s string) (Family, error) {
	for f, name := range familyNames {
		if name == s {
			return f, nil
		}
	}
	return FamilyUnknown, fmt.Errorf("unknown profile family %q (valid: %s, %s)",
		s, LinuxCloudImage, WindowsInstaller)
}

// UnmarshalYAML rejects family names outside the closed set.
func (f *Family) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseFamily(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// MarshalYAML writes the family name.
func (f Family) MarshalYAML() (any, error) {
	return f.String(), nil
}

// Credentials configure the first user of a cloud-image VM.
type Credentials struct {
	Username     string   `yaml:"username"`
	Password     string   `yaml:"password,omitempty"`
	PasswordHash string   `yaml:"password_hash,omitempty"`
	SSHKeys      []string `yaml:"ssh_keys,omitempty"`
}

// CanLogin reports whether the credentials give the user any way in.
func (c Credentials) CanLogin() bool {
	return c.Username != "" && (c.Password != "" || c.PasswordHash != "" || len(c.SSHKeys) > 0)
}

// Profile is a named OS recipe.
type Profile struct {
	Label        string       `yaml:"label"`
	Family       Family       `yaml:"family"`
	VariantTag   string       `yaml:"variant"`
	Source       string       `yaml:"source"`
	Credentials  *Credentials `yaml:"credentials,omitempty"`
	DriverSource string       `yaml:"driver_source,omitempty"`
}

// WithCredentials returns a copy of p whose credentials are c. Fields left
// empty in c keep the profile's values.
func (p Profile) WithCredentials(c Credentials) Profile {
	merged := Credentials{}
	if p.Credentials != nil {
		merged = *p.Credentials
		merged.SSHKeys = append([]string(nil), p.Credentials.SSHKeys...)
	}
	if c.Username != "" {
		merged.Username = c.Username
	}
	if c.Password != "" {
		merged.Password = c.Password
	}
	if c.PasswordHash != "" {
		merged.PasswordHash = c.PasswordHash
	}
	if len(c.SSHKeys) > 0 {
		merged.SSHKeys = append([]string(nil), c.SSHKeys...)
	}
	p.Credentials = &merged
	return p
}

func (p Profile) validate() error {
	if p.Label == "" {
		return fmt.Errorf("profile label must not be empty")
	}
	if p.Source == "" {
		return fmt.Errorf("profile %q: source must not be empty", p.Label)
	}
	if p.VariantTag == "" {
		return fmt.Errorf("profile %q: variant must not be empty", p.Label)
	}
	switch p.Family {
	case LinuxCloudImage:
		if p.DriverSource != "" {
			return fmt.Errorf("profile %q: driver_source is only valid for %s", p.Label, WindowsInstaller)
		}
	case WindowsInstaller:
		if p.Credentials != nil {
			return fmt.Errorf("profile %q: credentials are only valid for %s", p.Label, LinuxCloudImage)
		}
	default:
		return fmt.Errorf("profile %q: family is required", p.Label)
	}
	return nil
}
