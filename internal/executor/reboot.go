package executor

import (
	"fmt"
	"os/exec"
)

// Rebooter triggers the machine reboot after a checkpoint is persisted.
type Rebooter interface {
	// Reboot requests an immediate system reboot.
	Reboot() error
}

// SystemRebooter reboots through systemd, falling back to reboot(8).
type SystemRebooter struct{}

// Reboot requests an immediate system reboot.
func (r *SystemRebooter) Reboot() error {
	if err := exec.Command("systemctl", "reboot").Run(); err == nil {
		return nil
	}
	if err := exec.Command("reboot").Run(); err != nil {
		return fmt.Errorf("failed to trigger reboot: %w", err)
	}
	return nil
}

// NoopRebooter records the request without rebooting, for dry runs and tests.
type NoopRebooter struct {
	// Requested counts Reboot calls.
	Requested int
}

// Reboot records the request.
func (r *NoopRebooter) Reboot() error {
	r.Requested++
	return nil
}
