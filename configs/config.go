// Package configs provides library defaults and the built-in OS profiles,
// loaded from embedded YAML files, plus runtime settings (see settings.go).
// All hardcoded values live in defaults.yaml and profiles.yaml.
package configs

import (
	_ "embed"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ProfilesYAML is the built-in profile set (profiles.yaml), decoded by
// profile.Load.
//
//go:embed profiles.yaml
var ProfilesYAML []byte

// Defaults holds all library default values (loaded from defaults.yaml at startup).
var Defaults LibDefaults

func init() {
	if err := yaml.Unmarshal(defaultsYAML, &Defaults); err != nil {
		panic("kvm-vm-bootstrap: invalid defaults.yaml: " + err.Error())
	}
}

// LibDefaults holds all configurable library defaults.
type LibDefaults struct {
	Storage   StorageDefaults   `yaml:"storage"`
	Network   NetworkDefaults   `yaml:"network"`
	Backends  BackendDefaults   `yaml:"backends"`
	VM        VMDefaults        `yaml:"vm"`
	CloudInit CloudInitDefaults `yaml:"cloudinit"`
	Timeouts  TimeoutDefaults   `yaml:"timeouts"`
}

// StorageDefaults holds where VM artifacts are written.
type StorageDefaults struct {
	VMDir string `yaml:"vm_dir"`
}

// NetworkDefaults holds the network attachment passed to the launcher.
type NetworkDefaults struct {
	Default string `yaml:"default"`
}

// BackendDefaults names the collaborator implementations used when the
// settings do not override them.
type BackendDefaults struct {
	Fetcher     string `yaml:"fetcher"`
	SeedBuilder string `yaml:"seed_builder"`
	Launcher    string `yaml:"launcher"`
	LibvirtURI  string `yaml:"libvirt_uri"`
}

// VMDefaults holds the values offered at the interactive prompts.
type VMDefaults struct {
	MemoryMB   int    `yaml:"memory_mb"`
	VCPUs      int    `yaml:"vcpus"`
	DiskSize   string `yaml:"disk_size"`
	DiskFormat string `yaml:"disk_format"`
}

// CloudInitDefaults holds cloud-init seed defaults.
type CloudInitDefaults struct {
	VolumeID        string   `yaml:"volume_id"`
	UserGroups      string   `yaml:"user_groups"`
	UserShell       string   `yaml:"user_shell"`
	Sudo            string   `yaml:"sudo"`
	SSHPasswordAuth bool     `yaml:"ssh_password_auth"`
	Timezone        string   `yaml:"timezone"`
	Packages        []string `yaml:"packages"`
}

// TimeoutDefaults holds timeout values.
type TimeoutDefaults struct {
	StepMinutes     int `yaml:"step_minutes"`
	DownloadMinutes int `yaml:"download_minutes"`
	ProgressSeconds int `yaml:"progress_seconds"`
}

// As time.Duration convenience methods.

func (t TimeoutDefaults) Step() time.Duration {
	return time.Duration(t.StepMinutes) * time.Minute
}
func (t TimeoutDefaults) Download() time.Duration {
	return time.Duration(t.DownloadMinutes) * time.Minute
}
func (t TimeoutDefaults) Progress() time.Duration {
	return time.Duration(t.ProgressSeconds) * time.Second
}
