package provision

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAccepts(t *testing.T) {
	got, err := Validate(Request{VMName: "web-01", MemoryMB: "2048", VCPUs: "2", DiskSize: "20G"})
	require.NoError(t, err)
	assert.Equal(t, ValidRequest{VMName: "web-01", MemoryMB: 2048, VCPUs: 2, DiskSize: "20G"}, got)

	got, err = Validate(Request{VMName: "a_B-9", MemoryMB: "512", VCPUs: "1", DiskSize: "512M"})
	require.NoError(t, err)
	assert.Equal(t, "512M", got.DiskSize)
}

func TestValidateRejects(t *testing.T) {
	ok := Request{VMName: "vm", MemoryMB: "1024", VCPUs: "1", DiskSize: "10G"}

	tests := []struct {
		name   string
		mutate func(*Request)
		field  string
		kind   error
	}{
		{"space in name", func(r *Request) { r.VMName = "bad name" }, "vm_name", ErrInvalidName},
		{"empty name", func(r *Request) { r.VMName = "" }, "vm_name", ErrInvalidName},
		{"slash in name", func(r *Request) { r.VMName = "../etc" }, "vm_name", ErrInvalidName},
		{"dot in name", func(r *Request) { r.VMName = "vm.local" }, "vm_name", ErrInvalidName},
		{"zero memory", func(r *Request) { r.MemoryMB = "0" }, "memory_mb", ErrInvalidNumber},
		{"negative memory", func(r *Request) { r.MemoryMB = "-1" }, "memory_mb", ErrInvalidNumber},
		{"memory with unit", func(r *Request) { r.MemoryMB = "2G" }, "memory_mb", ErrInvalidNumber},
		{"memory padded", func(r *Request) { r.MemoryMB = " 2048" }, "memory_mb", ErrInvalidNumber},
		{"memory overflow", func(r *Request) { r.MemoryMB = "99999999999999999999999" }, "memory_mb", ErrInvalidNumber},
		{"empty vcpus", func(r *Request) { r.VCPUs = "" }, "vcpus", ErrInvalidNumber},
		{"fractional vcpus", func(r *Request) { r.VCPUs = "1.5" }, "vcpus", ErrInvalidNumber},
		{"lowercase unit", func(r *Request) { r.DiskSize = "20g" }, "disk_size", ErrInvalidSize},
		{"terabytes", func(r *Request) { r.DiskSize = "1T" }, "disk_size", ErrInvalidSize},
		{"no unit", func(r *Request) { r.DiskSize = "20" }, "disk_size", ErrInvalidSize},
		{"no digits", func(r *Request) { r.DiskSize = "G" }, "disk_size", ErrInvalidSize},
		{"byte suffix", func(r *Request) { r.DiskSize = "40GB" }, "disk_size", ErrInvalidSize},
		{"unit first", func(r *Request) { r.DiskSize = "G40" }, "disk_size", ErrInvalidSize},
		{"spelled number", func(r *Request) { r.MemoryMB = "two-thousand" }, "memory_mb", ErrInvalidNumber},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := ok
			tt.mutate(&req)
			_, err := Validate(req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestValidateReportsEveryField(t *testing.T) {
	_, err := Validate(Request{VMName: "bad name", MemoryMB: "0", VCPUs: "x", DiskSize: "20"})
	require.Error(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	fields := make([]string, len(verrs))
	for i, v := range verrs {
		fields[i] = v.Field
	}
	assert.Equal(t, []string{"vm_name", "memory_mb", "vcpus", "disk_size"}, fields)

	assert.ErrorIs(t, err, ErrInvalidName)
	assert.ErrorIs(t, err, ErrInvalidNumber)
	assert.ErrorIs(t, err, ErrInvalidSize)
	assert.Contains(t, err.Error(), "invalid request")
}

func TestValidateMaxInt(t *testing.T) {
	got, err := Validate(Request{VMName: "vm", MemoryMB: strconv.Itoa(int(^uint(0) >> 1)), VCPUs: "1", DiskSize: "1G"})
	require.NoError(t, err)
	assert.Equal(t, int(^uint(0)>>1), got.MemoryMB)
}
