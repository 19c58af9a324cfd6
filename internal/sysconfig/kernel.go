package sysconfig

import "context"

// InstallConfiguredKernel installs the kernel named by the kernel-version
// option along with its modules-extra package. The modules-extra package is
// installed even when the configured kernel is already running (it may be
// missing after an image-only install); the image install and the change
// record are skipped in that case.
func (r *Reconciler) InstallConfiguredKernel(ctx context.Context) (bool, error) {
	configured := r.cfg.KernelVersion
	if configured == "" {
		return false, nil
	}

	if err := r.run.Run(ctx, "apt-get", "update"); err != nil {
		return false, err
	}
	if err := r.aptInstall(ctx, "linux-modules-extra-"+configured); err != nil {
		return false, err
	}

	running, err := r.kernelAlreadyRunning()
	if err != nil {
		return false, err
	}
	if running {
		return false, nil
	}

	if err := r.aptInstall(ctx, "linux-image-"+configured); err != nil {
		return false, err
	}

	r.logger.Info().Str("version", configured).Msg("kernel installed, reboot required to activate")
	return true, r.boot.SetResource(ctx, KernelResource)
}

func (r *Reconciler) aptInstall(ctx context.Context, pkg string) error {
	return r.run.Run(ctx, "apt-get", "install", "--yes", pkg)
}
