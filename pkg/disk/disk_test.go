package disk

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/executor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResize(t *testing.T) {
	rec := &executor.Recorder{}
	q := NewQemuImg(rec, nil)

	require.NoError(t, q.Resize(context.Background(), "/vms/web.img", "20G"))

	calls := rec.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, executor.Call{Command: "qemu-img", Args: []string{"resize", "/vms/web.img", "20G"}}, calls[0])
	assert.Equal(t, []string{"info", "/vms/web.img"}, calls[1].Args)
}

func TestCreateEmpty(t *testing.T) {
	rec := &executor.Recorder{}
	q := NewQemuImg(rec, nil)

	require.NoError(t, q.CreateEmpty(context.Background(), "/vms/win.qcow2", "60G"))

	calls := rec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"create", "-f", "qcow2", "/vms/win.qcow2", "60G"}, calls[0].Args)
}

func TestRejectsBadSize(t *testing.T) {
	rec := &executor.Recorder{}
	q := NewQemuImg(rec, nil)

	assert.Error(t, q.Resize(context.Background(), "/vms/a.img", "20GB"))
	assert.Error(t, q.CreateEmpty(context.Background(), "/vms/a.qcow2", "1T"))
	assert.Empty(t, rec.Calls())
}

func TestResizeFailure(t *testing.T) {
	rec := &executor.Recorder{Handler: func(c executor.Call, _, stderr io.Writer) (int, error) {
		_, _ = io.WriteString(stderr, "qemu-img: Could not open '/vms/a.img'")
		return 1, errors.New("command exited with code 1")
	}}
	q := NewQemuImg(rec, nil)

	err := q.Resize(context.Background(), "/vms/a.img", "10G")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Could not open")
	assert.Len(t, rec.Calls(), 1, "no info call after failed resize")
}

func TestInfo(t *testing.T) {
	rec := &executor.Recorder{Handler: func(c executor.Call, stdout, _ io.Writer) (int, error) {
		_, _ = io.WriteString(stdout, "image: a.img\nvirtual size: 10 GiB\n")
		return 0, nil
	}}
	out, err := NewQemuImg(rec, nil).Info(context.Background(), "a.img")
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "virtual size"))
}

func TestRequiredTools(t *testing.T) {
	assert.Equal(t, []string{"qemu-img"}, NewQemuImg(&executor.Recorder{}, nil).RequiredTools())
}
