// Package libvirtd launches VMs through the libvirt API instead of the
// virt-install tool.
package libvirtd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Bibi40k/kvm-vm-bootstrap/pkg/hypervisor"
	"libvirt.org/go/libvirt"
)

// compile-time interface compliance check
var _ hypervisor.Launcher = (*Launcher)(nil)

// domain is the part of *libvirt.Domain the launcher uses.
type domain interface {
	Create() error
	Undefine() error
	Free() error
}

// conn is the part of *libvirt.Connect the launcher uses.
type conn interface {
	DefineXML(xml string) (domain, error)
	Close() error
}

// Launcher defines and starts a domain per launch.
type Launcher struct {
	uri    string
	dial   func(uri string) (conn, error)
	logger *slog.Logger
}

// New returns a launcher talking to the libvirt daemon at uri
// (e.g. "qemu:///system").
func New(uri string, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{uri: uri, dial: dialLibvirt, logger: logger}
}

func (l *Launcher) Launch(ctx context.Context, spec hypervisor.LaunchSpec) error {
	xmlStr, err := hypervisor.DomainXML(spec)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c, err := l.dial(l.uri)
	if err != nil {
		return fmt.Errorf("connect to libvirt %s: %w", l.uri, err)
	}
	defer func() {
		_ = c.Close()
	}()

	dom, err := c.DefineXML(xmlStr)
	if err != nil {
		return fmt.Errorf("define domain %s: %w", spec.Name, err)
	}
	defer func() {
		_ = dom.Free()
	}()

	if err := dom.Create(); err != nil {
		if undefErr := dom.Undefine(); undefErr != nil {
			l.logger.Warn("Failed to undefine domain after start failure", "name", spec.Name, "error", undefErr)
		}
		return fmt.Errorf("start domain %s: %w", spec.Name, err)
	}

	l.logger.Info("Domain started", "name", spec.Name, "uri", l.uri)
	return nil
}

type libvirtConn struct {
	c *libvirt.Connect
}

func dialLibvirt(uri string) (conn, error) {
	c, err := libvirt.NewConnect(uri)
	if err != nil {
		return nil, err
	}
	return &libvirtConn{c: c}, nil
}

func (l *libvirtConn) DefineXML(xml string) (domain, error) {
	dom, err := l.c.DomainDefineXML(xml)
	if err != nil {
		return nil, err
	}
	return dom, nil
}

func (l *libvirtConn) Close() error {
	_, err := l.c.Close()
	return err
}
