package image

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/executor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRemote(t *testing.T) {
	tests := []struct {
		locator string
		want    bool
	}{
		{"https://cloud-images.ubuntu.com/jammy/current/jammy.img", true},
		{"http://mirror/x.qcow2", true},
		{"ftp://mirror/x.iso", true},
		{"/var/lib/libvirt/iso/Win11.iso", false},
		{"relative/path.img", false},
		{"file:///tmp/x.img", false},
		{"https:///nohost", false},
	}
	for _, tt := range tests {
		t.Run(tt.locator, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRemote(tt.locator))
		})
	}
}

func TestHTTPFetch(t *testing.T) {
	data := []byte("qcow2-bytes")
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	var progress bytes.Buffer
	dest := filepath.Join(t.TempDir(), "vms", "web.img")
	f := NewHTTP(&progress, nil)

	require.NoError(t, f.Fetch(context.Background(), srv.URL+"/jammy.img", dest))
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.NoFileExists(t, dest+partSuffix)
	assert.Contains(t, progress.String(), "jammy.img")

	// Second fetch reuses the file.
	require.NoError(t, f.Fetch(context.Background(), srv.URL+"/jammy.img", dest))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestHTTPFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "web.img")
	err := NewHTTP(nil, nil).Fetch(context.Background(), srv.URL+"/missing.img", dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
	assert.NoFileExists(t, dest)
	assert.NoFileExists(t, dest+partSuffix)
}

func TestHTTPFetchCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dest := filepath.Join(t.TempDir(), "web.img")
	err := NewHTTP(nil, nil).Fetch(ctx, srv.URL+"/a.img", dest)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.NoFileExists(t, dest)
}

func TestWgetFetch(t *testing.T) {
	rec := &executor.Recorder{Handler: func(c executor.Call, _, _ io.Writer) (int, error) {
		// -O <part>
		return 0, os.WriteFile(c.Args[1], []byte("image"), 0644)
	}}
	dest := filepath.Join(t.TempDir(), "web.img")
	url := "https://cloud-images.ubuntu.com/jammy/current/jammy-server-cloudimg-amd64.img"

	require.NoError(t, NewWget(rec, nil).Fetch(context.Background(), url, dest))

	calls := rec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "wget", calls[0].Command)
	assert.Equal(t, []string{"-O", dest + partSuffix, "--progress=dot:giga", url}, calls[0].Args)
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "image", string(got))
}

func TestWgetFetchFailureCleansPart(t *testing.T) {
	rec := &executor.Recorder{Handler: func(c executor.Call, _, stderr io.Writer) (int, error) {
		_ = os.WriteFile(c.Args[1], []byte("partial"), 0644)
		_, _ = io.WriteString(stderr, "ERROR 404: Not Found.")
		return 8, errors.New("command exited with code 8")
	}}
	dest := filepath.Join(t.TempDir(), "web.img")

	err := NewWget(rec, nil).Fetch(context.Background(), "https://example.com/x.img", dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.NoFileExists(t, dest)
	assert.NoFileExists(t, dest+partSuffix)
}

func TestFetchLocalSourceSymlinks(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "Win11.iso")
	require.NoError(t, os.WriteFile(src, []byte("iso"), 0644))
	dest := filepath.Join(dir, "vms", "Win11.iso")

	rec := &executor.Recorder{}
	require.NoError(t, NewWget(rec, nil).Fetch(context.Background(), src, dest))
	assert.Empty(t, rec.Calls(), "local sources never hit the network")

	target, err := os.Readlink(dest)
	require.NoError(t, err)
	assert.Equal(t, src, target)
}

func TestFetchDiskLocalSourceStaysPristine(t *testing.T) {
	fetchers := map[string]Fetcher{
		"wget": NewWget(&executor.Recorder{}, nil),
		"http": NewHTTP(nil, nil),
	}
	for name, f := range fetchers {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			base := filepath.Join(dir, "base.qcow2")
			require.NoError(t, os.WriteFile(base, []byte("BASE"), 0644))
			vm1 := filepath.Join(dir, "vms", "vm1.img")
			vm2 := filepath.Join(dir, "vms", "vm2.img")

			require.NoError(t, f.FetchDisk(context.Background(), base, vm1))
			require.NoError(t, f.FetchDisk(context.Background(), base, vm2))

			info, err := os.Lstat(vm1)
			require.NoError(t, err)
			assert.True(t, info.Mode().IsRegular(), "disk must not be a symlink")
			assert.NoFileExists(t, vm1+partSuffix)

			require.NoError(t, os.WriteFile(vm1, []byte("VM1WROTE"), 0644))

			got, err := os.ReadFile(base)
			require.NoError(t, err)
			assert.Equal(t, "BASE", string(got))
			got, err = os.ReadFile(vm2)
			require.NoError(t, err)
			assert.Equal(t, "BASE", string(got))
		})
	}
}

func TestFetchDiskReplacesLinkedDisk(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.img")
	require.NoError(t, os.WriteFile(base, []byte("BASE"), 0644))
	dest := filepath.Join(dir, "vm.img")
	require.NoError(t, os.Symlink(base, dest))

	require.NoError(t, NewHTTP(nil, nil).FetchDisk(context.Background(), base, dest))

	info, err := os.Lstat(dest)
	require.NoError(t, err)
	assert.True(t, info.Mode().IsRegular())
	got, err := os.ReadFile(base)
	require.NoError(t, err)
	assert.Equal(t, "BASE", string(got))
}

func TestFetchDiskCancelled(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.img")
	require.NoError(t, os.WriteFile(base, []byte("BASE"), 0644))
	dest := filepath.Join(dir, "vm.img")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewHTTP(nil, nil).FetchDisk(ctx, base, dest)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, dest)
	assert.NoFileExists(t, dest+partSuffix)
}

func TestFetchLocalSourceMissing(t *testing.T) {
	dir := t.TempDir()
	err := NewHTTP(nil, nil).Fetch(context.Background(), filepath.Join(dir, "nope.iso"), filepath.Join(dir, "out.iso"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "local source not found")
}

func TestFetchEmptyLocator(t *testing.T) {
	err := NewHTTP(nil, nil).Fetch(context.Background(), "", filepath.Join(t.TempDir(), "x"))
	require.Error(t, err)
}

func TestFetchReusesExisting(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "web.img")
	require.NoError(t, os.WriteFile(dest, []byte("cached"), 0644))

	rec := &executor.Recorder{}
	require.NoError(t, NewWget(rec, nil).Fetch(context.Background(), "https://example.com/x.img", dest))
	assert.Empty(t, rec.Calls())
}

func TestProgressCounter(t *testing.T) {
	var buf bytes.Buffer
	pc := &progressCounter{out: &buf, name: "a.img", total: 4}
	_, _ = pc.Write([]byte("ab"))
	_, _ = pc.Write([]byte("cd"))
	pc.finish()
	assert.Contains(t, buf.String(), "100.0%")
}
