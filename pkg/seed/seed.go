// Package seed builds NoCloud seed ISOs that configure cloud-image VMs on
// first boot.
package seed

import (
	"context"
	"fmt"

	"github.com/Bibi40k/kvm-vm-bootstrap/configs"
	"github.com/Bibi40k/kvm-vm-bootstrap/internal/utils"
	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/cloudinit"
	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/profile"
	"github.com/google/uuid"
)

// compile-time interface compliance check
var (
	_ Builder = (*Genisoimage)(nil)
	_ Builder = (*Native)(nil)
)

// Builder writes a seed image for vmName to output.
type Builder interface {
	Build(ctx context.Context, vmName string, creds profile.Credentials, output string) error
}

// Files are the rendered NoCloud documents.
type Files struct {
	UserData string
	MetaData string
}

// Render produces user-data and meta-data for vmName. A plain password is
// bcrypt-hashed; an explicit hash wins over it.
func Render(vmName string, creds profile.Credentials) (Files, error) {
	if !creds.CanLogin() {
		return Files{}, fmt.Errorf("credentials for %s allow no login (need username plus password or SSH key)", vmName)
	}

	generator, err := cloudinit.NewGenerator()
	if err != nil {
		return Files{}, fmt.Errorf("failed to create cloud-init generator: %w", err)
	}

	passwordHash := creds.PasswordHash
	if passwordHash == "" && creds.Password != "" {
		hashed, hashErr := utils.HashPasswordBcrypt(creds.Password)
		if hashErr != nil {
			return Files{}, fmt.Errorf("failed to hash password: %w", hashErr)
		}
		passwordHash = hashed
	}

	userData, err := generator.GenerateUserData(&cloudinit.UserDataInput{
		Hostname:         vmName,
		Username:         creds.Username,
		PasswordHash:     passwordHash,
		SSHPublicKeys:    creds.SSHKeys,
		AllowPasswordSSH: passwordHash != "" && configs.Defaults.CloudInit.SSHPasswordAuth,
		UserGroups:       configs.Defaults.CloudInit.UserGroups,
		UserShell:        configs.Defaults.CloudInit.UserShell,
		Sudo:             configs.Defaults.CloudInit.Sudo,
		Timezone:         configs.Defaults.CloudInit.Timezone,
		Packages:         configs.Defaults.CloudInit.Packages,
	})
	if err != nil {
		return Files{}, fmt.Errorf("failed to generate user-data: %w", err)
	}

	metaData, err := generator.GenerateMetaData(&cloudinit.MetaDataInput{
		InstanceID: uuid.New().String(),
		Hostname:   vmName,
	})
	if err != nil {
		return Files{}, fmt.Errorf("failed to generate meta-data: %w", err)
	}

	return Files{UserData: userData, MetaData: metaData}, nil
}
