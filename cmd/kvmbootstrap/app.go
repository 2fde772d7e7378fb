package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Bibi40k/kvm-vm-bootstrap/configs"
	"github.com/Bibi40k/kvm-vm-bootstrap/internal/steps"
	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/metrics"
	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/profile"
	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/provision"
)

// app is the loaded runtime environment shared by all commands.
type app struct {
	settings *configs.Settings
	registry *profile.Registry
	logger   *slog.Logger
	metrics  *metrics.Recorder
}

func loadApp() (*app, error) {
	settings, err := configs.LoadSettings(configFile)
	if err != nil {
		return nil, &userError{
			msg:  err.Error(),
			hint: "check --config and KVMBOOT_* environment variables",
			err:  &provision.ConfigurationError{Reason: "settings", Err: err},
		}
	}
	if profilesFile != "" {
		settings.ProfilesFile = profilesFile
	}

	registry, err := loadRegistry(settings.ProfilesFile)
	if err != nil {
		return nil, err
	}

	a := &app{
		settings: settings,
		registry: registry,
		logger:   getLogger(parseLevel(settings.LogLevel)),
	}
	if settings.MetricsTextfile != "" {
		a.metrics = metrics.NewRecorder()
	}
	return a, nil
}

func loadRegistry(path string) (*profile.Registry, error) {
	if path == "" {
		r, err := profile.Load(configs.ProfilesYAML)
		if err != nil {
			return nil, fmt.Errorf("built-in profiles: %w", err)
		}
		return r, nil
	}
	r, err := profile.LoadFile(path)
	if err != nil {
		return nil, &userError{
			msg:  err.Error(),
			hint: "fix the profiles file or unset --profiles to use the built-in list",
			err:  &provision.ConfigurationError{Reason: "profiles", Err: err},
		}
	}
	return r, nil
}

// orchestrator wires the backends selected in settings. Step progress goes
// to stdout as "[i/n] step" lines.
func (a *app) orchestrator() (*provision.Orchestrator, error) {
	opts := []provision.Option{
		provision.WithHooks(steps.Progress(func(format string, args ...any) {
			fmt.Printf("\n"+clrBold+format+clrReset, args...)
		})),
	}
	if a.metrics != nil {
		opts = append(opts, provision.WithObserver(a.metrics))
	}
	return provision.NewFromSettings(a.settings, os.Stdout, a.logger, opts...)
}

// flushMetrics writes the textfile when one is configured.
func (a *app) flushMetrics() {
	if a.metrics == nil {
		return
	}
	if err := a.metrics.WriteTextfile(a.settings.MetricsTextfile); err != nil {
		a.logger.Warn("Failed to write metrics textfile", "path", a.settings.MetricsTextfile, "error", err)
		return
	}
	a.logger.Debug("Metrics written", "path", a.settings.MetricsTextfile)
}

// lookupProfile resolves label, wrapping misses with the available labels.
func (a *app) lookupProfile(label string) (profile.Profile, error) {
	p, err := a.registry.Lookup(label)
	if err != nil {
		return profile.Profile{}, &userError{
			msg:  err.Error(),
			hint: "available: " + strings.Join(a.registry.Labels(), ", "),
			err:  err,
		}
	}
	return p, nil
}
