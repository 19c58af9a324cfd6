package sysconfig

import (
	"context"
	"strings"
)

// Workload states surfaced to the operator.
const (
	StateActive  = "active"
	StateBlocked = "blocked"
)

// Status is the operator-visible reconciliation state.
type Status struct {
	State   string
	Message string
	Pending []string
}

// Status reports which pending changes still require a reboot or
// acknowledgment. The boot-tracked resources are the kernel and the systemd
// limits file; a pending grub update is folded in via CheckGrubReboot.
func (r *Reconciler) Status(ctx context.Context) (Status, error) {
	pending, err := r.boot.ResourcesChangedSinceBoot(ctx, []string{KernelResource, r.paths.SystemdSystem})
	if err != nil {
		return Status{}, err
	}

	grubUpdate, err := r.CheckGrubReboot(ctx)
	if err != nil {
		return Status{}, err
	}
	if grubUpdate {
		pending = append(pending, r.paths.GrubConf)
	}
	if r.cfg.UpdateGrub {
		// Grub updates are applied automatically; no extra warning needed.
		grubUpdate = false
	}

	if len(pending) == 0 {
		return Status{State: StateActive, Message: "ready"}, nil
	}

	message := "reboot required. Changes in: " + strings.Join(pending, ", ")
	if grubUpdate {
		message = "update-grub and " + message
	}
	return Status{State: StateBlocked, Message: message, Pending: pending}, nil
}
