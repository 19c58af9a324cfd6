// Package hostinfo reports facts about the running host: boot time, the
// running kernel release, and whether the process runs inside a container.
package hostinfo

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/host"
)

// systemdContainerFile is written by systemd when pid 1 runs in a container.
const systemdContainerFile = "/run/systemd/container"

// containerSystems are gopsutil virtualization systems that imply a
// container rather than a virtual machine.
var containerSystems = map[string]bool{
	"docker":         true,
	"lxc":            true,
	"lxc-libvirt":    true,
	"openvz":         true,
	"podman":         true,
	"rkt":            true,
	"systemd-nspawn": true,
}

// BootTime returns the start of the current boot session.
func BootTime() (time.Time, error) {
	epoch, err := host.BootTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("read boot time: %w", err)
	}
	return time.Unix(int64(epoch), 0).UTC(), nil
}

// RunningKernel returns the release string of the running kernel,
// e.g. "5.15.0-91-generic".
func RunningKernel() (string, error) {
	release, err := host.KernelVersion()
	if err != nil {
		return "", fmt.Errorf("read kernel version: %w", err)
	}
	return strings.TrimSpace(release), nil
}

// IsContainer reports whether the process is running inside a container.
// Boot parameters and kernel installs are meaningless there, so the
// reconciler refuses to manage containerized hosts by default.
func IsContainer() bool {
	if _, err := os.Stat(systemdContainerFile); err == nil {
		return true
	}

	system, role, err := host.Virtualization()
	if err != nil {
		return false
	}
	return role == "guest" && containerSystems[system]
}
