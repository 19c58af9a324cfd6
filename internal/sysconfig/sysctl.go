package sysconfig

import "context"

// SysctlContext is the rendering context for the sysctl drop-in file.
type SysctlContext struct {
	Entries map[string]any
}

// UpdateSysctl reconciles the sysctl drop-in and applies it with sysctl -p
// when the file changed. A malformed sysctl YAML block aborts this resource
// and propagates to the caller.
func (r *Reconciler) UpdateSysctl(ctx context.Context) (bool, error) {
	entries, err := r.cfg.SysctlEntries()
	if err != nil {
		r.logger.Error().Err(err).Msg("sysctl configuration rejected")
		return false, err
	}

	content, err := r.renderer.Render(sysctlTemplate, SysctlContext{Entries: entries})
	if err != nil {
		return false, err
	}

	changed, err := writeFileIfChanged(r.paths.SysctlConf, content, 0o644)
	if err != nil || !changed {
		return changed, err
	}

	r.logger.Info().Str("target", r.paths.SysctlConf).Msg("sysctl configuration updated")
	return true, r.run.Run(ctx, "sysctl", "-p", r.paths.SysctlConf)
}
