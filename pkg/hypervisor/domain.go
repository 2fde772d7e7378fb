package hypervisor

import (
	"fmt"

	"libvirt.org/go/libvirtxml"
)

// DomainXML renders spec as libvirt domain XML, equivalent to what
// virt-install defines for the same spec.
func DomainXML(spec LaunchSpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}

	bus := spec.DiskBus()
	disks := []libvirtxml.DomainDisk{
		{
			Device: "disk",
			Driver: &libvirtxml.DomainDiskDriver{
				Name: "qemu",
				Type: spec.diskFormat(),
			},
			Source: &libvirtxml.DomainDiskSource{
				File: &libvirtxml.DomainDiskSourceFile{File: spec.SystemDisk},
			},
			Target: &libvirtxml.DomainDiskTarget{
				Dev: systemDev(bus),
				Bus: bus,
			},
		},
	}

	cdroms := []string{spec.Seed}
	bootDevices := []libvirtxml.DomainBootDevice{{Dev: "hd"}}
	if spec.Installing() {
		cdroms = []string{spec.Installer, spec.Drivers}
		bootDevices = []libvirtxml.DomainBootDevice{{Dev: "cdrom"}, {Dev: "hd"}}
	}
	for i, path := range nonEmpty(cdroms) {
		disks = append(disks, cdrom(path, i))
	}

	graphics := []libvirtxml.DomainGraphic(nil)
	if spec.Installing() {
		graphics = []libvirtxml.DomainGraphic{
			{VNC: &libvirtxml.DomainGraphicVNC{Port: -1, AutoPort: "yes"}},
		}
	}

	domain := &libvirtxml.Domain{
		Type:        "kvm",
		Name:        spec.Name,
		Description: "os-variant: " + spec.VariantTag,
		Memory: &libvirtxml.DomainMemory{
			Value: uint(spec.MemoryMB),
			Unit:  "MiB",
		},
		VCPU: &libvirtxml.DomainVCPU{
			Value: uint(spec.VCPUs),
		},
		OS: &libvirtxml.DomainOS{
			Type: &libvirtxml.DomainOSType{
				Arch: "x86_64",
				Type: "hvm",
			},
			BootDevices: bootDevices,
		},
		Features: &libvirtxml.DomainFeatureList{
			ACPI: &libvirtxml.DomainFeature{},
			APIC: &libvirtxml.DomainFeatureAPIC{},
		},
		CPU: &libvirtxml.DomainCPU{
			Mode: "host-passthrough",
		},
		Devices: &libvirtxml.DomainDeviceList{
			Disks:      disks,
			Interfaces: []libvirtxml.DomainInterface{buildInterface(spec)},
			Serials: []libvirtxml.DomainSerial{
				{
					Source: &libvirtxml.DomainChardevSource{
						Pty: &libvirtxml.DomainChardevSourcePty{},
					},
					Target: &libvirtxml.DomainSerialTarget{
						Port: uintPtr(0),
					},
				},
			},
			Consoles: []libvirtxml.DomainConsole{
				{
					Source: &libvirtxml.DomainChardevSource{
						Pty: &libvirtxml.DomainChardevSourcePty{},
					},
					Target: &libvirtxml.DomainConsoleTarget{
						Type: "serial",
						Port: uintPtr(0),
					},
				},
			},
			Graphics: graphics,
		},
	}

	xmlStr, err := domain.Marshal()
	if err != nil {
		return "", fmt.Errorf("marshal domain XML: %w", err)
	}
	return xmlStr, nil
}

func buildInterface(spec LaunchSpec) libvirtxml.DomainInterface {
	iface := libvirtxml.DomainInterface{
		Model: &libvirtxml.DomainInterfaceModel{Type: spec.NICModel()},
	}
	if spec.Network.Kind == "bridge" {
		iface.Source = &libvirtxml.DomainInterfaceSource{
			Bridge: &libvirtxml.DomainInterfaceSourceBridge{Bridge: spec.Network.Name},
		}
	} else {
		iface.Source = &libvirtxml.DomainInterfaceSource{
			Network: &libvirtxml.DomainInterfaceSourceNetwork{Network: spec.Network.Name},
		}
	}
	return iface
}

func cdrom(path string, index int) libvirtxml.DomainDisk {
	return libvirtxml.DomainDisk{
		Device: "cdrom",
		Driver: &libvirtxml.DomainDiskDriver{
			Name: "qemu",
			Type: "raw",
		},
		Source: &libvirtxml.DomainDiskSource{
			File: &libvirtxml.DomainDiskSourceFile{File: path},
		},
		Target: &libvirtxml.DomainDiskTarget{
			Dev: fmt.Sprintf("sd%c", 'b'+index),
			Bus: BusSATA,
		},
		ReadOnly: &libvirtxml.DomainDiskReadOnly{},
	}
}

func systemDev(bus string) string {
	if bus == BusVirtio {
		return "vda"
	}
	return "sda"
}

func nonEmpty(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func uintPtr(v uint) *uint {
	return &v
}
