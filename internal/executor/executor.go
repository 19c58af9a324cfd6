// Package executor abstracts the external commands the reconciler invokes:
// update-grub, grub-mkconfig, systemctl, apt-get, sysctl and blkid.
package executor

import "context"

// Runner is the interface for executing host commands.
type Runner interface {
	// Run executes the command and waits for it to finish.
	Run(ctx context.Context, name string, args ...string) error

	// Output executes the command and returns its combined output.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}
