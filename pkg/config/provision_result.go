// Package config reads and writes the machine-readable result of a
// provisioning session.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/provision"
)

// ProvisionResult is the normalized output contract of one session.
type ProvisionResult struct {
	VMName     string    `json:"vm_name" yaml:"vm_name"`
	Profile    string    `json:"profile" yaml:"profile"`
	Family     string    `json:"family,omitempty" yaml:"family,omitempty"`
	State      string    `json:"state" yaml:"state"`
	DiskPath   string    `json:"disk_path,omitempty" yaml:"disk_path,omitempty"`
	SeedPath   string    `json:"seed_path,omitempty" yaml:"seed_path,omitempty"`
	Installer  string    `json:"installer_path,omitempty" yaml:"installer_path,omitempty"`
	Drivers    string    `json:"drivers_path,omitempty" yaml:"drivers_path,omitempty"`
	Network    string    `json:"network,omitempty" yaml:"network,omitempty"`
	FailedStep string    `json:"failed_step,omitempty" yaml:"failed_step,omitempty"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
}

// NewProvisionResult flattens a session outcome. vmName and label are used
// when the outcome carries no plan.
func NewProvisionResult(vmName, label string, out *provision.Outcome) ProvisionResult {
	r := ProvisionResult{
		VMName:     vmName,
		Profile:    label,
		State:      out.State.String(),
		FailedStep: out.FailedStep,
		FinishedAt: time.Now().UTC().Truncate(time.Second),
	}
	if out.Err != nil {
		r.Error = out.Err.Error()
	}
	if p := out.Plan; p != nil {
		r.VMName = p.VMName
		r.Profile = p.Profile
		r.Family = p.Family.String()
		r.DiskPath = p.DiskPath
		r.SeedPath = p.SeedPath
		r.Installer = p.InstallerPath
		r.Drivers = p.DriversPath
		r.Network = p.Network.String()
	}
	return r
}

// Validate checks the minimum contract consumers rely on.
func (r ProvisionResult) Validate() error {
	if strings.TrimSpace(r.VMName) == "" {
		return fmt.Errorf("result vm_name is required")
	}
	if strings.TrimSpace(r.Profile) == "" {
		return fmt.Errorf("result profile is required")
	}
	switch r.State {
	case provision.Succeeded.String():
		if r.DiskPath == "" {
			return fmt.Errorf("result disk_path is required for a succeeded session")
		}
	case provision.Failed.String():
	default:
		return fmt.Errorf("result state must be %s or %s, got %q", provision.Succeeded, provision.Failed, r.State)
	}
	return nil
}

// LoadProvisionResult reads ProvisionResult from YAML or JSON.
func LoadProvisionResult(path string) (ProvisionResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return ProvisionResult{}, fmt.Errorf("read provision result %s: %w", path, err)
	}

	var out ProvisionResult
	if isJSON(path) {
		err = json.Unmarshal(content, &out)
	} else {
		err = yaml.Unmarshal(content, &out)
	}
	if err != nil {
		return ProvisionResult{}, fmt.Errorf("parse provision result %s: %w", path, err)
	}

	if err := out.Validate(); err != nil {
		return ProvisionResult{}, err
	}
	return out, nil
}

// SaveProvisionResult writes ProvisionResult to YAML or JSON based on file extension.
func SaveProvisionResult(path string, result ProvisionResult) error {
	if err := result.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}

	var content []byte
	var err error
	if isJSON(path) {
		content, err = json.MarshalIndent(result, "", "  ")
	} else {
		content, err = yaml.Marshal(result)
	}
	if err != nil {
		return fmt.Errorf("marshal provision result %s: %w", path, err)
	}

	if err := os.WriteFile(path, content, 0o600); err != nil {
		return fmt.Errorf("write provision result %s: %w", path, err)
	}
	return nil
}

func isJSON(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".json"
}
