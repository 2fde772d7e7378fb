package provision

import (
	"regexp"
	"strconv"
)

var (
	namePattern   = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	numberPattern = regexp.MustCompile(`^[0-9]+$`)
	sizePattern   = regexp.MustCompile(`^[0-9]+[MG]$`)
)

// Request is the raw user input for one session.
type Request struct {
	VMName   string
	MemoryMB string
	VCPUs    string
	DiskSize string // e.g. "20G", "512M"
}

// ValidRequest is a request whose fields all passed validation.
type ValidRequest struct {
	VMName   string
	MemoryMB int
	VCPUs    int
	DiskSize string
}

// Validate checks every field and reports all violations at once. It has
// no side effects.
func Validate(req Request) (ValidRequest, error) {
	var errs ValidationErrors

	if !namePattern.MatchString(req.VMName) {
		reason := "must match [A-Za-z0-9_-]+"
		if req.VMName == "" {
			reason = "must not be empty"
		}
		errs = append(errs, &ValidationError{Field: "vm_name", Reason: reason, Err: ErrInvalidName})
	}

	memory, err := positiveInt("memory_mb", req.MemoryMB)
	if err != nil {
		errs = append(errs, err)
	}
	vcpus, err := positiveInt("vcpus", req.VCPUs)
	if err != nil {
		errs = append(errs, err)
	}

	if !sizePattern.MatchString(req.DiskSize) {
		errs = append(errs, &ValidationError{
			Field:  "disk_size",
			Reason: "must be digits followed by M or G (e.g. 20G)",
			Err:    ErrInvalidSize,
		})
	}

	if len(errs) > 0 {
		return ValidRequest{}, errs
	}
	return ValidRequest{
		VMName:   req.VMName,
		MemoryMB: memory,
		VCPUs:    vcpus,
		DiskSize: req.DiskSize,
	}, nil
}

func positiveInt(field, raw string) (int, *ValidationError) {
	if !numberPattern.MatchString(raw) {
		return 0, &ValidationError{Field: field, Reason: "must be a positive integer", Err: ErrInvalidNumber}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ValidationError{Field: field, Reason: "out of range", Err: ErrInvalidNumber}
	}
	if n <= 0 {
		return 0, &ValidationError{Field: field, Reason: "must be greater than zero", Err: ErrInvalidNumber}
	}
	return n, nil
}
