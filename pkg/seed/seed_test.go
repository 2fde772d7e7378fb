package seed

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/executor"
	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

func TestRenderHashesPassword(t *testing.T) {
	files, err := Render("web01", profile.Credentials{Username: "ubuntu", Password: "s3cret!"})
	require.NoError(t, err)

	var doc struct {
		Users []struct {
			Name   string `yaml:"name"`
			Passwd string `yaml:"passwd"`
		} `yaml:"users"`
		SSHPwauth bool     `yaml:"ssh_pwauth"`
		Timezone  string   `yaml:"timezone"`
		Packages  []string `yaml:"packages"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(files.UserData), &doc))
	require.Len(t, doc.Users, 1)
	assert.Equal(t, "ubuntu", doc.Users[0].Name)
	assert.NotContains(t, files.UserData, "s3cret!")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(doc.Users[0].Passwd), []byte("s3cret!")))
	assert.True(t, doc.SSHPwauth)
	assert.Equal(t, "UTC", doc.Timezone)
	assert.Equal(t, []string{"qemu-guest-agent"}, doc.Packages)

	assert.Contains(t, files.MetaData, "local-hostname: web01")
	assert.Contains(t, files.MetaData, "instance-id: ")
}

func TestRenderKeepsExplicitHash(t *testing.T) {
	files, err := Render("web01", profile.Credentials{
		Username:     "ubuntu",
		Password:     "ignored",
		PasswordHash: "$2a$10$precomputed",
	})
	require.NoError(t, err)
	assert.Contains(t, files.UserData, `"$2a$10$precomputed"`)
}

func TestRenderKeysOnly(t *testing.T) {
	files, err := Render("web01", profile.Credentials{Username: "rocky", SSHKeys: []string{"ssh-ed25519 AAAA k"}})
	require.NoError(t, err)
	assert.Contains(t, files.UserData, "ssh-ed25519 AAAA k")
	assert.Contains(t, files.UserData, "ssh_pwauth: false")
}

func TestRenderRejectsNoLogin(t *testing.T) {
	_, err := Render("web01", profile.Credentials{Username: "ubuntu"})
	require.Error(t, err)
}

func TestRenderUniqueInstanceIDs(t *testing.T) {
	creds := profile.Credentials{Username: "u", Password: "p"}
	a, err := Render("vm", creds)
	require.NoError(t, err)
	b, err := Render("vm", creds)
	require.NoError(t, err)
	assert.NotEqual(t, a.MetaData, b.MetaData)
}

func TestGenisoimageBuild(t *testing.T) {
	output := filepath.Join(t.TempDir(), "web01-seed.iso")
	var sawUserData string
	rec := &executor.Recorder{Handler: func(c executor.Call, _, _ io.Writer) (int, error) {
		data, err := os.ReadFile(c.Args[len(c.Args)-2])
		if err != nil {
			return 1, err
		}
		sawUserData = string(data)
		return 0, os.WriteFile(c.Args[1], []byte("iso"), 0644)
	}}

	g := NewGenisoimage(rec, nil)
	require.NoError(t, g.Build(context.Background(), "web01", profile.Credentials{Username: "ubuntu", Password: "pw"}, output))

	calls := rec.Calls()
	require.Len(t, calls, 1)
	args := calls[0].Args
	assert.Equal(t, "genisoimage", calls[0].Command)
	assert.Equal(t, []string{"-output", output, "-volid", "cidata", "-joliet", "-rock"}, args[:6])
	assert.Equal(t, "user-data", filepath.Base(args[6]))
	assert.Equal(t, "meta-data", filepath.Base(args[7]))
	assert.True(t, strings.HasPrefix(sawUserData, "#cloud-config"))
	assert.FileExists(t, output)

	_, err := os.Stat(filepath.Dir(args[6]))
	assert.True(t, os.IsNotExist(err), "work dir removed after build")
}

func TestGenisoimageFailure(t *testing.T) {
	rec := &executor.Recorder{Handler: func(executor.Call, io.Writer, io.Writer) (int, error) {
		return 1, errors.New("command exited with code 1")
	}}
	err := NewGenisoimage(rec, nil).Build(context.Background(), "vm", profile.Credentials{Username: "u", Password: "p"},
		filepath.Join(t.TempDir(), "seed.iso"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "genisoimage failed")
}

func TestGenisoimageNoToolCallOnBadCredentials(t *testing.T) {
	rec := &executor.Recorder{}
	err := NewGenisoimage(rec, nil).Build(context.Background(), "vm", profile.Credentials{}, filepath.Join(t.TempDir(), "seed.iso"))
	require.Error(t, err)
	assert.Empty(t, rec.Calls())
}

func TestNativeBuild(t *testing.T) {
	output := filepath.Join(t.TempDir(), "web01-seed.iso")
	require.NoError(t, NewNative(nil).Build(context.Background(), "web01",
		profile.Credentials{Username: "ubuntu", Password: "pw"}, output))

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	// Primary volume descriptor lives in sector 16.
	const pvd = 16 * 2048
	require.Greater(t, len(data), pvd+72)
	assert.Equal(t, "CD001", string(data[pvd+1:pvd+6]))
	volID := strings.TrimSpace(string(data[pvd+40 : pvd+72]))
	assert.True(t, strings.EqualFold("cidata", volID), "volume id %q", volID)
}

func TestNativeBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	output := filepath.Join(t.TempDir(), "seed.iso")
	err := NewNative(nil).Build(ctx, "vm", profile.Credentials{Username: "u", Password: "p"}, output)
	require.Error(t, err)
	assert.NoFileExists(t, output)
}

func TestRequiredTools(t *testing.T) {
	assert.Equal(t, []string{"genisoimage"}, NewGenisoimage(&executor.Recorder{}, nil).RequiredTools())
}
