// Package provision runs one VM provisioning session: validate the request,
// resolve a plan from the chosen profile, then drive the fetch, disk, seed
// and launch steps in order.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"time"

	"github.com/Bibi40k/kvm-vm-bootstrap/internal/keylock"
	"github.com/Bibi40k/kvm-vm-bootstrap/internal/steps"
	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/disk"
	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/hypervisor"
	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/image"
	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/profile"
	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/seed"
)

// Collaborators are the backends a session delegates to.
type Collaborators struct {
	Fetcher   image.Fetcher
	Formatter disk.Formatter
	Seeder    seed.Builder
	Launcher  hypervisor.Launcher
}

// StepObserver receives step and session outcomes. *metrics.Recorder
// satisfies it.
type StepObserver interface {
	ObserveStep(family, step string, elapsed time.Duration, err error)
	ObserveSession(family, state string)
}

// toolUser is implemented by backends that shell out.
type toolUser interface {
	RequiredTools() []string
}

// Orchestrator runs provisioning sessions. It is safe for concurrent use;
// sessions for the same VM name are serialized.
type Orchestrator struct {
	c           Collaborators
	settings    Settings
	stepTimeout time.Duration
	locks       *keylock.Locker
	observer    StepObserver
	hooks       steps.Hooks
	logger      *slog.Logger
	lookPath    func(string) (string, error)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithStepTimeout bounds each step. Zero disables the bound.
func WithStepTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.stepTimeout = d }
}

// WithObserver reports step and session outcomes to obs.
func WithObserver(obs StepObserver) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// WithHooks sets progress hooks called around every step.
func WithHooks(h steps.Hooks) Option {
	return func(o *Orchestrator) { o.hooks = h }
}

// WithLocker shares a lock table between orchestrators.
func WithLocker(l *keylock.Locker) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.locks = l
		}
	}
}

// New returns an orchestrator. All collaborators are required.
func New(c Collaborators, settings Settings, opts ...Option) (*Orchestrator, error) {
	switch {
	case c.Fetcher == nil:
		return nil, errors.New("provision: fetcher is required")
	case c.Formatter == nil:
		return nil, errors.New("provision: formatter is required")
	case c.Seeder == nil:
		return nil, errors.New("provision: seed builder is required")
	case c.Launcher == nil:
		return nil, errors.New("provision: launcher is required")
	}
	o := &Orchestrator{
		c:        c,
		settings: settings,
		locks:    keylock.New(),
		logger:   slog.Default(),
		lookPath: exec.LookPath,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Plan validates req and resolves its plan without executing anything.
func (o *Orchestrator) Plan(p profile.Profile, req Request) (*Plan, error) {
	valid, err := Validate(req)
	if err != nil {
		return nil, err
	}
	return BuildPlan(p, valid, o.settings)
}

// Provision runs one session to a terminal state. The returned outcome is
// never nil; err is non-nil exactly when the session failed.
func (o *Orchestrator) Provision(ctx context.Context, p profile.Profile, req Request) (*Outcome, error) {
	out := &Outcome{State: Idle, History: []State{Idle}}
	family := p.Family.String()

	fail := func(err error) (*Outcome, error) {
		out.Err = err
		out.enter(Failed)
		o.observeSession(family, Failed)
		o.logger.Error("VM provisioning failed",
			"name", req.VMName,
			"profile", p.Label,
			"state", out.FailedIn.String(),
			"step", out.FailedStep,
			"error", err,
		)
		return out, err
	}

	out.enter(Validating)
	valid, err := Validate(req)
	if err != nil {
		return fail(err)
	}

	out.enter(Planning)
	plan, err := BuildPlan(p, valid, o.settings)
	if err != nil {
		return fail(err)
	}
	out.Plan = plan

	release, err := o.lock(ctx, plan)
	if err != nil {
		return fail(err)
	}
	defer release()

	if err := o.preflight(plan); err != nil {
		return fail(err)
	}

	o.logger.Info("Starting VM provisioning",
		"name", plan.VMName,
		"profile", plan.Profile,
		"family", family,
		"vm_dir", plan.VMDir,
	)

	out.enter(Executing)
	if err := steps.RunSteps(ctx, o.stepsFor(plan), o.stepHooks(family, out)); err != nil {
		var stepErr *steps.Error
		if errors.As(err, &stepErr) {
			out.FailedStep = stepErr.Name
			return fail(&ExternalToolFailure{Step: stepErr.Name, Cause: stepErr.Err})
		}
		var cancelled *steps.CancelledError
		if errors.As(err, &cancelled) {
			o.logger.Warn("Provisioning interrupted between steps", "completed", cancelled.Completed, "last_step", cancelled.Last)
		}
		return fail(err)
	}

	out.enter(Succeeded)
	o.observeSession(family, Succeeded)
	o.logger.Info("VM launched", "name", plan.VMName, "disk", plan.DiskPath)
	return out, nil
}

func (o *Orchestrator) stepsFor(plan *Plan) []steps.Step {
	spec := hypervisor.LaunchSpec{
		Name:       plan.VMName,
		MemoryMB:   plan.MemoryMB,
		VCPUs:      plan.VCPUs,
		VariantTag: plan.VariantTag,
		Network:    plan.Network,
		SystemDisk: plan.DiskPath,
		DiskFormat: plan.DiskFormat,
	}

	var list []steps.Step
	add := func(name string, fn func(ctx context.Context) error) {
		list = append(list, steps.Step{Name: name, Run: o.bounded(name, fn)})
	}

	switch plan.Family {
	case profile.LinuxCloudImage:
		spec.Seed = plan.SeedPath
		add(StepFetch, func(ctx context.Context) error {
			return o.c.Fetcher.FetchDisk(ctx, plan.Source, plan.DiskPath)
		})
		add(StepResize, func(ctx context.Context) error {
			return o.c.Formatter.Resize(ctx, plan.DiskPath, plan.DiskSize)
		})
		add(StepSeed, func(ctx context.Context) error {
			return o.c.Seeder.Build(ctx, plan.VMName, plan.Credentials, plan.SeedPath)
		})

	case profile.WindowsInstaller:
		spec.Installer = plan.InstallerPath
		spec.Drivers = plan.DriversPath
		add(StepFetchInstaller, func(ctx context.Context) error {
			return o.c.Fetcher.Fetch(ctx, plan.Source, plan.InstallerPath)
		})
		if plan.DriversPath != "" {
			add(StepFetchDrivers, func(ctx context.Context) error {
				return o.c.Fetcher.Fetch(ctx, plan.DriverSource, plan.DriversPath)
			})
		}
		add(StepCreateDisk, func(ctx context.Context) error {
			return o.c.Formatter.CreateEmpty(ctx, plan.DiskPath, plan.DiskSize)
		})
	}

	add(StepLaunch, func(ctx context.Context) error {
		return o.c.Launcher.Launch(ctx, spec)
	})
	return list
}

// bounded applies the per-step timeout. A step cut short by it fails with
// a TimeoutError; cancellation of the parent ctx is passed through as is.
func (o *Orchestrator) bounded(name string, fn func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if o.stepTimeout <= 0 {
			return fn(ctx)
		}
		stepCtx, cancel := context.WithTimeout(ctx, o.stepTimeout)
		defer cancel()

		err := fn(stepCtx)
		if err != nil && ctx.Err() == nil && errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
			return &TimeoutError{Step: name, After: o.stepTimeout, Err: err}
		}
		return err
	}
}

func (o *Orchestrator) stepHooks(family string, out *Outcome) steps.Hooks {
	return steps.Hooks{
		OnStart: func(index, total int, name string) {
			o.logger.Debug("Step started", "step", name, "index", index, "total", total)
			if o.hooks.OnStart != nil {
				o.hooks.OnStart(index, total, name)
			}
		},
		OnDone: func(index, total int, name string, elapsed time.Duration, err error) {
			out.Steps = append(out.Steps, StepRecord{Name: name, Elapsed: elapsed, Err: err})
			if o.observer != nil {
				o.observer.ObserveStep(family, name, elapsed, err)
			}
			if err == nil {
				o.logger.Info("Step completed", "step", name, "duration", elapsed.Round(time.Millisecond))
			}
			if o.hooks.OnDone != nil {
				o.hooks.OnDone(index, total, name, elapsed, err)
			}
		},
	}
}

func (o *Orchestrator) observeSession(family string, s State) {
	if o.observer != nil {
		o.observer.ObserveSession(family, s.String())
	}
}

// lock takes the VM name and any shared artifact paths, always in the same
// order, so two sessions never deadlock on each other.
func (o *Orchestrator) lock(ctx context.Context, plan *Plan) (func(), error) {
	shared := plan.SharedArtifacts()
	sort.Strings(shared)
	keys := append([]string{"vm:" + plan.VMName}, shared...)

	var held []func()
	releaseAll := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}
	for _, key := range keys {
		release, err := o.locks.Acquire(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		held = append(held, release)
	}
	return releaseAll, nil
}

// preflight checks the host before any step runs: the storage directory
// must be writable and every external tool must be on PATH.
func (o *Orchestrator) preflight(plan *Plan) error {
	if err := os.MkdirAll(plan.VMDir, 0o755); err != nil {
		return &ConfigurationError{Reason: "create vm_dir " + plan.VMDir, Err: err}
	}
	probe, err := os.CreateTemp(plan.VMDir, ".kvmbootstrap-probe-*")
	if err != nil {
		return &ConfigurationError{Reason: "vm_dir " + plan.VMDir + " is not writable", Err: err}
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())

	var missing []string
	for _, tool := range o.RequiredTools() {
		if _, err := o.lookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	if len(missing) > 0 {
		return &ConfigurationError{Reason: fmt.Sprintf("required tools not found on PATH: %v", missing)}
	}
	return nil
}

// RequiredTools lists the external programs the configured backends run.
func (o *Orchestrator) RequiredTools() []string {
	seen := map[string]bool{}
	var tools []string
	for _, c := range []any{o.c.Fetcher, o.c.Formatter, o.c.Seeder, o.c.Launcher} {
		tu, ok := c.(toolUser)
		if !ok {
			continue
		}
		for _, t := range tu.RequiredTools() {
			if !seen[t] {
				seen[t] = true
				tools = append(tools, t)
			}
		}
	}
	sort.Strings(tools)
	return tools
}

// CheckTools reports each required tool and whether it was found.
func (o *Orchestrator) CheckTools() map[string]error {
	res := make(map[string]error)
	for _, tool := range o.RequiredTools() {
		_, err := o.lookPath(tool)
		res[tool] = err
	}
	return res
}
