package sysconfig

import "context"

// IRQBalanceContext is the rendering context for the irqbalance default file.
type IRQBalanceContext struct {
	BannedCPUs string
}

// UpdateIRQBalance reconciles the irqbalance configuration. Unlike the other
// resources it carries no diff check: the file is rendered, recorded and the
// service restarted on every call.
func (r *Reconciler) UpdateIRQBalance(ctx context.Context) (bool, error) {
	return r.reconcileIRQBalance(ctx, IRQBalanceContext{BannedCPUs: r.cfg.IRQBalanceBannedCPUs})
}

// RemoveIRQBalanceConfiguration renders the irqbalance defaults.
func (r *Reconciler) RemoveIRQBalanceConfiguration(ctx context.Context) (bool, error) {
	return r.reconcileIRQBalance(ctx, IRQBalanceContext{})
}

func (r *Reconciler) reconcileIRQBalance(ctx context.Context, ictx IRQBalanceContext) (bool, error) {
	content, err := r.renderer.Render(irqbalanceTemplate, ictx)
	if err != nil {
		return false, err
	}

	if err := writeFile(r.paths.IRQBalance, content, 0o644); err != nil {
		return false, err
	}
	if err := r.boot.SetResource(ctx, r.paths.IRQBalance); err != nil {
		return true, err
	}

	r.logger.Info().Str("target", r.paths.IRQBalance).Msg("irqbalance configuration updated")
	return true, r.restartService(ctx, "irqbalance")
}
