package sysconfig

import (
	"context"
	"fmt"
)

// ondemandService competes with an explicitly configured governor and is
// masked while one is set.
const ondemandService = "ondemand"

// CPUFreqContext is the rendering context for the cpufrequtils default file.
type CPUFreqContext struct {
	Governor string
}

// UpdateCPUFreq reconciles the CPU governor configuration. On a real change
// the competing ondemand service is masked (or unmasked when the governor is
// unset) and the governor service restarted. Skipped on containers: the host
// kernel owns frequency scaling there.
func (r *Reconciler) UpdateCPUFreq(ctx context.Context) (bool, error) {
	switch r.cfg.Governor {
	case "", "performance", "powersave":
	default:
		return false, fmt.Errorf("%w: governor=%q", ErrInvalidConfig, r.cfg.Governor)
	}

	changed, err := r.renderBootResource(ctx, cpufrequtilsTemplate, r.paths.CPUFrequtils,
		CPUFreqContext{Governor: r.cfg.Governor})
	if err != nil || !changed {
		return changed, err
	}

	if !r.isContainer() {
		if r.cfg.Governor != "" {
			if err := r.maskService(ctx, ondemandService); err != nil {
				return true, err
			}
		} else {
			if err := r.unmaskService(ctx, ondemandService); err != nil {
				return true, err
			}
		}
	}

	return true, r.restartService(ctx, "cpufrequtils")
}

// RemoveCPUFreqConfiguration renders the cpufrequtils defaults and
// re-enables the ondemand service.
func (r *Reconciler) RemoveCPUFreqConfiguration(ctx context.Context) (bool, error) {
	if !r.isContainer() {
		if err := r.unmaskService(ctx, ondemandService); err != nil {
			return false, err
		}
	}

	changed, err := r.renderBootResource(ctx, cpufrequtilsTemplate, r.paths.CPUFrequtils, CPUFreqContext{})
	if err != nil {
		return changed, err
	}

	return changed, r.restartService(ctx, "cpufrequtils")
}
