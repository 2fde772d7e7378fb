package profile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Bibi40k/kvm-vm-bootstrap/configs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProfiles = `
profiles:
  - label: "Ubuntu 22.04"
    family: linux-cloud-image
    variant: ubuntu22.04
    source: https://cloud-images.ubuntu.com/jammy/current/jammy-server-cloudimg-amd64.img
    credentials:
      username: ubuntu
      password: secret
  - label: "Windows 11"
    family: windows-installer
    variant: win11
    source: /isos/Win11.iso
  - label: "Debian 12"
    family: linux-cloud-image
    variant: debian12
    source: /images/debian-12.qcow2
`

func TestLoad(t *testing.T) {
	r, err := Load([]byte(sampleProfiles))
	require.NoError(t, err)
	assert.Equal(t, 3, r.Len())

	p, err := r.Lookup("Windows 11")
	require.NoError(t, err)
	assert.Equal(t, WindowsInstaller, p.Family)
	assert.Equal(t, "win11", p.VariantTag)
	assert.Equal(t, "/isos/Win11.iso", p.Source)
	assert.Nil(t, p.Credentials)

	p, err = r.Lookup("Ubuntu 22.04")
	require.NoError(t, err)
	assert.Equal(t, LinuxCloudImage, p.Family)
	require.NotNil(t, p.Credentials)
	assert.Equal(t, "ubuntu", p.Credentials.Username)
	assert.Equal(t, "secret", p.Credentials.Password)
}

func TestListSortedAndStable(t *testing.T) {
	r, err := Load([]byte(sampleProfiles))
	require.NoError(t, err)

	want := []string{"Debian 12", "Ubuntu 22.04", "Windows 11"}
	assert.Equal(t, want, r.Labels())

	for i := 0; i < 5; i++ {
		list := r.List()
		got := make([]string, len(list))
		for j, p := range list {
			got[j] = p.Label
		}
		assert.Equal(t, want, got)
	}
}

func TestLookupUnknown(t *testing.T) {
	r, err := Load([]byte(sampleProfiles))
	require.NoError(t, err)

	_, err = r.Lookup("Plan 9")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "Plan 9", nf.Label)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "unknown family",
			yaml: `
profiles:
  - label: BSD
    family: bsd-tarball
    variant: freebsd14
    source: /x.img
`,
			wantErr: "unknown profile family",
		},
		{
			name: "missing family",
			yaml: `
profiles:
  - label: BSD
    variant: freebsd14
    source: /x.img
`,
			wantErr: "family is required",
		},
		{
			name: "duplicate label",
			yaml: `
profiles:
  - {label: A, family: linux-cloud-image, variant: v, source: /a.img}
  - {label: A, family: linux-cloud-image, variant: v, source: /b.img}
`,
			wantErr: "duplicate profile label",
		},
		{
			name: "credentials on windows",
			yaml: `
profiles:
  - label: Win
    family: windows-installer
    variant: win11
    source: /w.iso
    credentials: {username: admin}
`,
			wantErr: "credentials are only valid",
		},
		{
			name: "driver source on cloud image",
			yaml: `
profiles:
  - label: Deb
    family: linux-cloud-image
    variant: debian12
    source: /d.img
    driver_source: /virtio.iso
`,
			wantErr: "driver_source is only valid",
		},
		{
			name:    "empty",
			yaml:    "profiles: []",
			wantErr: "no profiles defined",
		},
		{
			name:    "missing source",
			yaml:    "profiles: [{label: A, family: linux-cloud-image, variant: v}]",
			wantErr: "source must not be empty",
		},
		{
			name:    "malformed yaml",
			yaml:    "profiles: [",
			wantErr: "parse profiles",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	r, err := Load([]byte(sampleProfiles))
	require.NoError(t, err)

	p, err := r.Lookup("Ubuntu 22.04")
	require.NoError(t, err)
	p.Credentials.Password = "changed"
	p.Source = "/elsewhere"

	again, err := r.Lookup("Ubuntu 22.04")
	require.NoError(t, err)
	assert.Equal(t, "secret", again.Credentials.Password)
	assert.NotEqual(t, "/elsewhere", again.Source)
}

func TestWithCredentials(t *testing.T) {
	r, err := Load([]byte(sampleProfiles))
	require.NoError(t, err)
	base, err := r.Lookup("Ubuntu 22.04")
	require.NoError(t, err)

	updated := base.WithCredentials(Credentials{SSHKeys: []string{"ssh-ed25519 AAAA"}})
	require.NotNil(t, updated.Credentials)
	assert.Equal(t, "ubuntu", updated.Credentials.Username)
	assert.Equal(t, "secret", updated.Credentials.Password)
	assert.Equal(t, []string{"ssh-ed25519 AAAA"}, updated.Credentials.SSHKeys)
	assert.Empty(t, base.Credentials.SSHKeys, "original profile untouched")

	deb, err := r.Lookup("Debian 12")
	require.NoError(t, err)
	withUser := deb.WithCredentials(Credentials{Username: "debian", Password: "pw"})
	assert.True(t, withUser.Credentials.CanLogin())
	assert.Nil(t, deb.Credentials)
}

func TestCredentialsCanLogin(t *testing.T) {
	assert.False(t, Credentials{}.CanLogin())
	assert.False(t, Credentials{Username: "u"}.CanLogin())
	assert.False(t, Credentials{Password: "p"}.CanLogin())
	assert.True(t, Credentials{Username: "u", Password: "p"}.CanLogin())
	assert.True(t, Credentials{Username: "u", PasswordHash: "$2a$"}.CanLogin())
	assert.True(t, Credentials{Username: "u", SSHKeys: []string{"k"}}.CanLogin())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleProfiles), 0o600))

	r, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Len())

	_, err = LoadFile(filepath.Join(t.TempDir(), "none.yaml"))
	require.Error(t, err)
}

func TestBuiltinProfiles(t *testing.T) {
	r, err := Load(configs.ProfilesYAML)
	require.NoError(t, err)

	for _, label := range []string{"Ubuntu 22.04 LTS (jammy)", "Windows 11", "Windows Server 2022"} {
		_, err := r.Lookup(label)
		assert.NoError(t, err, label)
	}
	for _, p := range r.List() {
		if p.Family == WindowsInstaller {
			assert.Nil(t, p.Credentials, p.Label)
			assert.NotEmpty(t, p.DriverSource, p.Label)
		}
	}
}

func TestFamilyString(t *testing.T) {
	assert.Equal(t, "linux-cloud-image", LinuxCloudImage.String())
	assert.Equal(t, "windows-installer", WindowsInstaller.String())
	assert.Equal(t, "unknown", FamilyUnknown.String())

	f, err := ParseFamily("windows-installer")
	require.NoError(t, err)
	assert.Equal(t, WindowsInstaller, f)
}
