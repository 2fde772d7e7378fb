// Package cloudinit renders NoCloud seed files (user-data, meta-data) for
// cloud-image VMs.
package cloudinit

import (
	"bytes"
	_ "embed"
	"fmt"
	"strconv"
	"text/template"

	"github.com/Bibi40k/kvm-vm-bootstrap/configs"
	"gopkg.in/yaml.v3"
)

//go:embed templates/user-data.yaml.tmpl
var userDataTemplate string

//go:embed templates/meta-data.yaml.tmpl
var metaDataTemplate string

var funcs = template.FuncMap{
	// yamlQuote emits a double-quoted scalar; Go escapes are a subset of
	// YAML's double-quoted escapes.
	"yamlQuote": strconv.Quote,
}

// Generator generates cloud-init configuration files.
type Generator struct {
	userDataTmpl *template.Template
	metaDataTmpl *template.Template
}

// UserDataInput contains data for cloud-config user-data generation.
type UserDataInput struct {
	Hostname         string
	Username         string
	PasswordHash     string // Optional - bcrypt; empty locks the password
	SSHPublicKeys    []string
	AllowPasswordSSH bool
	Timezone         string   // e.g., "UTC"; empty keeps the image default
	Packages         []string // e.g., ["qemu-guest-agent"]
	UserGroups       string   // e.g., "sudo,adm"
	UserShell        string   // e.g., "/bin/bash"
	Sudo             string   // sudoers rule for the user
}

// MetaDataInput contains data for meta-data generation.
type MetaDataInput struct {
	InstanceID string
	Hostname   string
}

// NewGenerator creates a new cloud-init generator with embedded templates.
func NewGenerator() (*Generator, error) {
	userDataTmpl, err := template.New("user-data").Funcs(funcs).Parse(userDataTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse user-data template: %w", err)
	}

	metaDataTmpl, err := template.New("meta-data").Parse(metaDataTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse meta-data template: %w", err)
	}

	return &Generator{
		userDataTmpl: userDataTmpl,
		metaDataTmpl: metaDataTmpl,
	}, nil
}

// GenerateUserData generates cloud-config user-data YAML.
func (g *Generator) GenerateUserData(input *UserDataInput) (string, error) {
	if input.Hostname == "" || input.Username == "" {
		return "", fmt.Errorf("hostname and username are required")
	}
	if input.PasswordHash == "" && len(input.SSHPublicKeys) == 0 {
		return "", fmt.Errorf("user %q needs a password or an SSH key", input.Username)
	}

	// Fill defaults from configs/defaults.yaml
	if input.UserGroups == "" {
		input.UserGroups = configs.Defaults.CloudInit.UserGroups
	}
	if input.UserShell == "" {
		input.UserShell = configs.Defaults.CloudInit.UserShell
	}
	if input.Sudo == "" {
		input.Sudo = configs.Defaults.CloudInit.Sudo
	}

	var buf bytes.Buffer
	if err := g.userDataTmpl.Execute(&buf, input); err != nil {
		return "", fmt.Errorf("failed to execute user-data template: %w", err)
	}

	content := buf.String()

	// Validate YAML syntax
	if err := g.ValidateYAML(content); err != nil {
		return "", fmt.Errorf("generated user-data is invalid YAML: %w", err)
	}

	return content, nil
}

// GenerateMetaData generates cloud-init meta-data.
func (g *Generator) GenerateMetaData(input *MetaDataInput) (string, error) {
	var buf bytes.Buffer
	if err := g.metaDataTmpl.Execute(&buf, input); err != nil {
		return "", fmt.Errorf("failed to execute meta-data template: %w", err)
	}

	content := buf.String()

	// Validate YAML syntax
	if err := g.ValidateYAML(content); err != nil {
		return "", fmt.Errorf("generated meta-data is invalid YAML: %w", err)
	}

	return content, nil
}

// ValidateYAML validates YAML syntax.
func (g *Generator) ValidateYAML(content string) error {
	var data interface{}
	if err := yaml.Unmarshal([]byte(content), &data); err != nil {
		return fmt.Errorf("YAML validation failed: %w", err)
	}
	return nil
}
