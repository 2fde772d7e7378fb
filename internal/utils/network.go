package utils

import (
	"fmt"
	"regexp"
	"strings"
)

// NetworkAttachment describes how a VM NIC connects to the host.
type NetworkAttachment struct {
	Kind string // "network" (libvirt virtual network) or "bridge"
	Name string
}

// String returns the virt-install form, e.g. "network=default".
func (n NetworkAttachment) String() string {
	return n.Kind + "=" + n.Name
}

var networkNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]+$`)

// ParseNetworkSpec parses "network=<name>" or "bridge=<name>". A bare name
// is taken as a libvirt network.
func ParseNetworkSpec(spec string) (NetworkAttachment, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return NetworkAttachment{}, fmt.Errorf("empty network spec")
	}

	kind, name, found := strings.Cut(spec, "=")
	if !found {
		kind, name = "network", spec
	}
	kind = strings.ToLower(strings.TrimSpace(kind))
	name = strings.TrimSpace(name)

	switch kind {
	case "network", "bridge":
	default:
		return NetworkAttachment{}, fmt.Errorf("invalid network kind %q (valid: network, bridge)", kind)
	}
	if !networkNamePattern.MatchString(name) {
		return NetworkAttachment{}, fmt.Errorf("invalid %s name %q", kind, name)
	}
	return NetworkAttachment{Kind: kind, Name: name}, nil
}
