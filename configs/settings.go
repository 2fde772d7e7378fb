package configs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend names accepted in settings.
const (
	FetcherWget  = "wget"
	FetcherHTTP  = "http"
	SeedISOTool  = "genisoimage"
	SeedNative   = "native"
	LauncherVirt = "virt-install"
	LauncherAPI  = "libvirt"
)

// EnvPrefix is prepended to every setting key when read from the environment.
const EnvPrefix = "KVMBOOT"

// Settings is the runtime configuration of a provisioning session.
type Settings struct {
	VMDir           string
	Network         string
	Fetcher         string
	SeedBuilder     string
	Launcher        string
	LibvirtURI      string
	StepTimeout     time.Duration
	Username        string
	Password        string
	SSHKeys         []string
	ProfilesFile    string
	MetricsTextfile string
	LogLevel        string
}

// LoadSettings reads settings from defaults, an optional config file and the
// environment (KVMBOOT_<KEY>, plus VM_DIR for the storage directory).
func LoadSettings(configFile string) (*Settings, error) {
	v := viper.New()

	v.SetDefault("vm_dir", Defaults.Storage.VMDir)
	v.SetDefault("network", Defaults.Network.Default)
	v.SetDefault("fetcher", Defaults.Backends.Fetcher)
	v.SetDefault("seed_builder", Defaults.Backends.SeedBuilder)
	v.SetDefault("launcher", Defaults.Backends.Launcher)
	v.SetDefault("libvirt_uri", Defaults.Backends.LibvirtURI)
	v.SetDefault("step_timeout", Defaults.Timeouts.Step())
	v.SetDefault("username", "")
	v.SetDefault("password", "")
	v.SetDefault("ssh_keys", []string{})
	v.SetDefault("profiles_file", "")
	v.SetDefault("metrics_textfile", "")
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	if err := v.BindEnv("vm_dir", EnvPrefix+"_VM_DIR", "VM_DIR"); err != nil {
		return nil, fmt.Errorf("bind VM_DIR: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	vmDir, err := ExpandHome(v.GetString("vm_dir"))
	if err != nil {
		return nil, err
	}

	s := &Settings{
		VMDir:           vmDir,
		Network:         v.GetString("network"),
		Fetcher:         strings.ToLower(v.GetString("fetcher")),
		SeedBuilder:     strings.ToLower(v.GetString("seed_builder")),
		Launcher:        strings.ToLower(v.GetString("launcher")),
		LibvirtURI:      v.GetString("libvirt_uri"),
		StepTimeout:     v.GetDuration("step_timeout"),
		Username:        v.GetString("username"),
		Password:        v.GetString("password"),
		SSHKeys:         stringList(v.Get("ssh_keys")),
		ProfilesFile:    v.GetString("profiles_file"),
		MetricsTextfile: v.GetString("metrics_textfile"),
		LogLevel:        strings.ToLower(v.GetString("log_level")),
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks that backend names and scalar values are usable.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.VMDir) == "" {
		return errors.New("vm_dir must not be empty")
	}
	switch s.Fetcher {
	case FetcherWget, FetcherHTTP:
	default:
		return fmt.Errorf("invalid fetcher: %q (valid: %s, %s)", s.Fetcher, FetcherWget, FetcherHTTP)
	}
	switch s.SeedBuilder {
	case SeedISOTool, SeedNative:
	default:
		return fmt.Errorf("invalid seed_builder: %q (valid: %s, %s)", s.SeedBuilder, SeedISOTool, SeedNative)
	}
	switch s.Launcher {
	case LauncherVirt, LauncherAPI:
	default:
		return fmt.Errorf("invalid launcher: %q (valid: %s, %s)", s.Launcher, LauncherVirt, LauncherAPI)
	}
	if s.Launcher == LauncherAPI && s.LibvirtURI == "" {
		return errors.New("libvirt_uri is required for the libvirt launcher")
	}
	if s.StepTimeout < 0 {
		return fmt.Errorf("step_timeout must not be negative: %s", s.StepTimeout)
	}
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[s.LogLevel] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", s.LogLevel)
	}
	return nil
}

// stringList reads a list setting. A scalar value, as supplied through the
// environment, holds one entry per line or comma; spaces inside an entry are
// kept so a literal public key survives.
func stringList(raw any) []string {
	var items []string
	switch val := raw.(type) {
	case nil:
	case string:
		items = strings.FieldsFunc(val, func(r rune) bool { return r == '\n' || r == ',' })
	case []string:
		items = val
	case []any:
		for _, item := range val {
			items = append(items, fmt.Sprint(item))
		}
	default:
		items = []string{fmt.Sprint(val)}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ExpandHome replaces a leading "~" with the current user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}
