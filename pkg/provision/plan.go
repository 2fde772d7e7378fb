package provision

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/Bibi40k/kvm-vm-bootstrap/internal/utils"
	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/image"
	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/profile"
)

// Step names, reported in ExternalToolFailure.Step and metrics labels.
const (
	StepFetch          = "fetch"
	StepResize         = "resize"
	StepSeed           = "seed"
	StepFetchInstaller = "fetch-installer"
	StepFetchDrivers   = "fetch-drivers"
	StepCreateDisk     = "create-disk"
	StepLaunch         = "launch"
)

// Settings are the host-level inputs to planning.
type Settings struct {
	VMDir   string
	Network utils.NetworkAttachment
}

// Plan is the fully resolved set of artifacts and launch parameters for one
// session. BuildPlan never touches the filesystem.
type Plan struct {
	VMName     string
	Family     profile.Family
	Profile    string // profile label
	VariantTag string
	MemoryMB   int
	VCPUs      int
	DiskSize   string
	VMDir      string
	Network    utils.NetworkAttachment

	Source     string
	DiskPath   string
	DiskFormat string

	// Cloud images only.
	SeedPath    string
	Credentials profile.Credentials

	// Windows installers only.
	InstallerPath string
	DriverSource  string
	DriversPath   string
}

// BuildPlan derives every artifact path for req under settings.VMDir.
// Cloud images need credentials that allow a login.
func BuildPlan(p profile.Profile, req ValidRequest, settings Settings) (*Plan, error) {
	if strings.TrimSpace(settings.VMDir) == "" {
		return nil, &ConfigurationError{Reason: "vm_dir is not set"}
	}
	if settings.Network.Kind == "" || settings.Network.Name == "" {
		return nil, &ConfigurationError{Reason: "network attachment is not set"}
	}
	dir := filepath.Clean(settings.VMDir)

	plan := &Plan{
		VMName:     req.VMName,
		Family:     p.Family,
		Profile:    p.Label,
		VariantTag: p.VariantTag,
		MemoryMB:   req.MemoryMB,
		VCPUs:      req.VCPUs,
		DiskSize:   req.DiskSize,
		VMDir:      dir,
		Network:    settings.Network,
		Source:     p.Source,
	}

	switch p.Family {
	case profile.LinuxCloudImage:
		if p.Credentials == nil || !p.Credentials.CanLogin() {
			return nil, &ConfigurationError{
				Reason: fmt.Sprintf("profile %q needs a username plus a password or SSH key", p.Label),
			}
		}
		plan.DiskPath = filepath.Join(dir, req.VMName+".img")
		plan.DiskFormat = "qcow2"
		plan.SeedPath = filepath.Join(dir, req.VMName+"-seed.iso")
		plan.Credentials = *p.Credentials
		plan.Credentials.SSHKeys = append([]string(nil), p.Credentials.SSHKeys...)

	case profile.WindowsInstaller:
		plan.DiskPath = filepath.Join(dir, req.VMName+".qcow2")
		plan.DiskFormat = "qcow2"
		base, err := artifactName(p.Source)
		if err != nil {
			return nil, &ConfigurationError{Reason: "installer source", Err: err}
		}
		plan.InstallerPath = filepath.Join(dir, base)
		if p.DriverSource != "" {
			base, err := artifactName(p.DriverSource)
			if err != nil {
				return nil, &ConfigurationError{Reason: "driver source", Err: err}
			}
			plan.DriverSource = p.DriverSource
			plan.DriversPath = filepath.Join(dir, base)
		}

	default:
		return nil, &ConfigurationError{Reason: fmt.Sprintf("profile %q has unknown family %s", p.Label, p.Family)}
	}

	return plan, nil
}

// Steps lists the step names the plan will execute, in order.
func (p *Plan) Steps() []string {
	switch p.Family {
	case profile.LinuxCloudImage:
		return []string{StepFetch, StepResize, StepSeed, StepLaunch}
	case profile.WindowsInstaller:
		if p.DriversPath != "" {
			return []string{StepFetchInstaller, StepFetchDrivers, StepCreateDisk, StepLaunch}
		}
		return []string{StepFetchInstaller, StepCreateDisk, StepLaunch}
	}
	return nil
}

// SharedArtifacts returns paths other sessions may also write: installer
// and driver ISOs are named after their source, not the VM.
func (p *Plan) SharedArtifacts() []string {
	var out []string
	if p.InstallerPath != "" {
		out = append(out, p.InstallerPath)
	}
	if p.DriversPath != "" {
		out = append(out, p.DriversPath)
	}
	return out
}

// artifactName is the last path element of a URL or local path.
func artifactName(locator string) (string, error) {
	var base string
	if image.IsRemote(locator) {
		u, err := url.Parse(locator)
		if err != nil {
			return "", err
		}
		base = path.Base(u.Path)
	} else {
		base = filepath.Base(locator)
	}
	if base == "" || base == "." || base == "/" || base == ".." {
		return "", fmt.Errorf("cannot derive a file name from %q", locator)
	}
	return base, nil
}
