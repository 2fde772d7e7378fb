package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	survey "github.com/AlecAivazis/survey/v2"

	"github.com/Bibi40k/kvm-vm-bootstrap/configs"
	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/config"
	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/profile"
	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/provision"
)

// createOptions are the create/plan flag values.
type createOptions struct {
	profile  string
	name     string
	memory   string
	vcpus    string
	disk     string
	username string
	password string
	sshKeys  []string
	network  string
	result   string
	yes      bool
}

func defaultCreateOptions() createOptions {
	return createOptions{
		memory: strconv.Itoa(configs.Defaults.VM.MemoryMB),
		vcpus:  strconv.Itoa(configs.Defaults.VM.VCPUs),
		disk:   configs.Defaults.VM.DiskSize,
	}
}

// selectProfile shows the sorted profile menu.
func selectProfile(reg *profile.Registry, current string) (string, error) {
	var choice string
	err := surveySelect(&survey.Select{
		Message: "Select OS profile:",
		Options: reg.Labels(),
		Default: current,
	}, &choice)
	return choice, err
}

// resolveProfile picks the profile from the flag, or from the menu when
// stdin is a terminal.
func resolveProfile(a *app, opts *createOptions, interactive bool) (profile.Profile, error) {
	if opts.profile == "" {
		if !interactive {
			return profile.Profile{}, &userError{
				msg:  "--profile is required when stdin is not a terminal",
				hint: "kvmbootstrap profiles",
				err:  provision.ValidationErrors{{Field: "profile", Reason: "is required"}},
			}
		}
		label, err := selectProfile(a.registry, "")
		if err != nil {
			return profile.Profile{}, err
		}
		opts.profile = label
	}
	return a.lookupProfile(opts.profile)
}

// gatherRequest prompts for any field still empty when interactive.
// Non-interactive requests go to validation as given.
func gatherRequest(opts createOptions, interactive bool) provision.Request {
	req := provision.Request{
		VMName:   opts.name,
		MemoryMB: opts.memory,
		VCPUs:    opts.vcpus,
		DiskSize: opts.disk,
	}
	if !interactive {
		return req
	}
	if req.VMName == "" {
		req.VMName = readLine("VM name", "")
	}
	if opts.name == "" {
		req.MemoryMB = readLine("Memory (MB)", req.MemoryMB)
		req.VCPUs = readLine("vCPUs", req.VCPUs)
		req.DiskSize = readLine("Disk size (e.g. 20G)", req.DiskSize)
	}
	return req
}

// applyCredentials layers settings and flag credentials over a cloud-image
// profile and prompts for a login when none is usable yet.
func applyCredentials(p profile.Profile, s *configs.Settings, opts createOptions, interactive bool) (profile.Profile, error) {
	if p.Family != profile.LinuxCloudImage {
		return p, nil
	}

	keys, err := loadSSHKeys(append(append([]string(nil), s.SSHKeys...), opts.sshKeys...))
	if err != nil {
		return p, err
	}
	creds := profile.Credentials{
		Username: firstNonEmpty(opts.username, s.Username),
		Password: firstNonEmpty(opts.password, s.Password),
		SSHKeys:  keys,
	}
	if creds.Username != "" || creds.Password != "" || len(creds.SSHKeys) > 0 {
		p = p.WithCredentials(creds)
	}
	if p.Credentials != nil && p.Credentials.CanLogin() {
		return p, nil
	}
	if !interactive {
		return p, nil
	}

	current := profile.Credentials{}
	if p.Credentials != nil {
		current = *p.Credentials
	}
	fmt.Println()
	fmt.Println("  \033[33mNo login configured for this image.\033[0m")
	current.Username = readLine("Username", current.Username)
	if pw := readNewPassword("Password (Enter to skip)"); pw != "" {
		current.Password = pw
	}
	if path := readLine("SSH public key file (optional)", ""); path != "" {
		keys, err := loadSSHKeys([]string{path})
		if err != nil {
			return p, err
		}
		current.SSHKeys = append(current.SSHKeys, keys...)
	}
	return p.WithCredentials(current), nil
}

// loadSSHKeys accepts key literals or paths to public key files.
func loadSSHKeys(values []string) ([]string, error) {
	var keys []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if strings.HasPrefix(v, "ssh-") || strings.HasPrefix(v, "ecdsa-") || strings.HasPrefix(v, "sk-") {
			keys = append(keys, v)
			continue
		}
		path, err := configs.ExpandHome(v)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &userError{
				msg:  fmt.Sprintf("read SSH key %s: %v", v, err),
				hint: "pass a public key file (e.g. ~/.ssh/id_ed25519.pub) or the key itself",
				err:  &provision.ConfigurationError{Reason: "ssh key", Err: err},
			}
		}
		for _, line := range strings.Split(string(data), "\n") {
			if line = strings.TrimSpace(line); line != "" && !strings.HasPrefix(line, "#") {
				keys = append(keys, line)
			}
		}
	}
	return keys, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// prepare loads everything a create or plan run needs.
func prepare(opts *createOptions, interactive bool) (*app, profile.Profile, provision.Request, error) {
	a, err := loadApp()
	if err != nil {
		return nil, profile.Profile{}, provision.Request{}, err
	}
	if opts.network != "" {
		a.settings.Network = opts.network
	}
	p, err := resolveProfile(a, opts, interactive)
	if err != nil {
		return nil, profile.Profile{}, provision.Request{}, err
	}
	p, err = applyCredentials(p, a.settings, *opts, interactive)
	if err != nil {
		return nil, profile.Profile{}, provision.Request{}, err
	}
	return a, p, gatherRequest(*opts, interactive), nil
}

func runPlan(opts createOptions) error {
	a, p, req, err := prepare(&opts, stdinIsTerminal())
	if err != nil {
		return err
	}
	orch, err := a.orchestrator()
	if err != nil {
		return err
	}
	plan, err := orch.Plan(p, req)
	if err != nil {
		return err
	}
	printPlan(plan)
	return nil
}

func runCreate(opts createOptions) error {
	interactive := stdinIsTerminal()
	a, p, req, err := prepare(&opts, interactive)
	if err != nil {
		return err
	}
	orch, err := a.orchestrator()
	if err != nil {
		return err
	}

	plan, err := orch.Plan(p, req)
	if err != nil {
		return err
	}
	fmt.Printf("\033[1mCreate VM\033[0m — %s\n", plan.VMName)
	fmt.Println(strings.Repeat("─", 50))
	printPlan(plan)

	if interactive && !opts.yes && !readYesNo("Create this VM?", true) {
		fmt.Println("  Cancelled.")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Take over Ctrl+C from the global handler so the running tool is
	// cancelled and the session reports its failure.
	signal.Stop(mainSigCh)
	localSigCh := make(chan os.Signal, 1)
	signal.Notify(localSigCh, os.Interrupt)
	go func() {
		select {
		case <-localSigCh:
			fmt.Println("\n\n\033[33m⚠ Interrupted — stopping...\033[0m")
			cancel()
		case <-ctx.Done():
		}
	}()

	out, err := orch.Provision(ctx, p, req)

	signal.Stop(localSigCh)
	signal.Notify(mainSigCh, os.Interrupt)

	a.flushMetrics()
	if opts.result != "" {
		if werr := config.SaveProvisionResult(opts.result, config.NewProvisionResult(req.VMName, p.Label, out)); werr != nil {
			a.logger.Warn("Failed to write result file", "path", opts.result, "error", werr)
		} else {
			fmt.Printf("  Result saved: %s\n", opts.result)
		}
	}
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("\033[32m✓ VM launched successfully!\033[0m")
	fmt.Printf("  Name:  %s\n", plan.VMName)
	fmt.Printf("  Disk:  %s\n", plan.DiskPath)
	if plan.Family == profile.WindowsInstaller {
		fmt.Printf("\n  Finish the installer: \033[36mvirt-viewer %s\033[0m\n\n", plan.VMName)
	} else {
		fmt.Printf("\n  Console: \033[36mvirsh console %s\033[0m\n\n", plan.VMName)
	}
	return nil
}

func printPlan(plan *provision.Plan) {
	fmt.Printf("  Profile:   %s (%s)\n", plan.Profile, plan.Family)
	fmt.Printf("  VM name:   %s\n", plan.VMName)
	fmt.Printf("  Memory:    %d MB\n", plan.MemoryMB)
	fmt.Printf("  vCPUs:     %d\n", plan.VCPUs)
	fmt.Printf("  Disk:      %s (%s)\n", plan.DiskPath, plan.DiskSize)
	if plan.SeedPath != "" {
		fmt.Printf("  Seed:      %s\n", plan.SeedPath)
		fmt.Printf("  User:      %s\n", plan.Credentials.Username)
	}
	if plan.InstallerPath != "" {
		fmt.Printf("  Installer: %s\n", plan.InstallerPath)
	}
	if plan.DriversPath != "" {
		fmt.Printf("  Drivers:   %s\n", plan.DriversPath)
	}
	fmt.Printf("  Network:   %s\n", plan.Network)
	fmt.Printf("  Steps:     %s\n", strings.Join(plan.Steps(), " → "))
	fmt.Println()
}
