package sysconfig

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"reflect"
	"strings"
)

// SystemdContext is the rendering context for the system manager limits file.
type SystemdContext struct {
	CPUAffinity string
	ConfigFlags map[string]string
}

// ResolvedContext is the rendering context for the resolver cache file.
type ResolvedContext struct {
	Cache string
}

func (r *Reconciler) assembleSystemdContext() SystemdContext {
	return SystemdContext{
		CPUAffinity: r.cfg.EffectiveCPUAffinityRange(),
		ConfigFlags: r.cfg.SystemdFlags(),
	}
}

// UpdateSystemdSystemFile reconciles the systemd manager limits file. The
// comparison is structural: a key reordering or formatting difference in the
// existing file is not a change.
func (r *Reconciler) UpdateSystemdSystemFile(ctx context.Context) (bool, error) {
	return r.reconcileSystemd(ctx, r.assembleSystemdContext())
}

// RemoveSystemdConfiguration renders the limits file with an empty context,
// tracked identically to an update.
func (r *Reconciler) RemoveSystemdConfiguration(ctx context.Context) (bool, error) {
	return r.reconcileSystemd(ctx, SystemdContext{})
}

func (r *Reconciler) reconcileSystemd(ctx context.Context, sctx SystemdContext) (bool, error) {
	content, err := r.renderer.Render(systemdSystemTemplate, sctx)
	if err != nil {
		return false, err
	}

	differs, err := r.systemdUpdateAvailable(content)
	if err != nil {
		return false, err
	}
	if !differs {
		r.logger.Debug().Str("target", r.paths.SystemdSystem).
			Msg("no systemd configuration changes, not rendering file")
		return false, nil
	}

	if err := writeFile(r.paths.SystemdSystem, content, 0o644); err != nil {
		return false, err
	}
	if err := r.boot.SetResource(ctx, r.paths.SystemdSystem); err != nil {
		return true, err
	}

	r.logger.Info().Str("target", r.paths.SystemdSystem).Msg("systemd configuration updated")
	return true, nil
}

// systemdUpdateAvailable compares the rendered limits file against the
// existing one section by section, ignoring ordering and formatting.
func (r *Reconciler) systemdUpdateAvailable(rendered string) (bool, error) {
	existing, err := os.ReadFile(r.paths.SystemdSystem)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, fmt.Errorf("read %s: %w", r.paths.SystemdSystem, err)
	}

	return !reflect.DeepEqual(parseSections(string(existing)), parseSections(rendered)), nil
}

// parseSections parses unit-file style text into section -> key -> value.
// Later duplicate keys win, comments and blank lines are ignored.
func parseSections(text string) map[string]map[string]string {
	sections := make(map[string]map[string]string)
	current := ""

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";"):
			continue
		case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
			current = strings.TrimSuffix(strings.TrimPrefix(line, "["), "]")
		default:
			key, value, ok := strings.Cut(line, "=")
			if !ok {
				continue
			}
			if sections[current] == nil {
				sections[current] = make(map[string]string)
			}
			sections[current][strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}

	return sections
}

// UpdateSystemdResolved reconciles the resolver cache configuration and
// restarts the resolver only when the file content actually changed. The
// resolver file is not a boot resource: its changes take effect without a
// reboot.
func (r *Reconciler) UpdateSystemdResolved(ctx context.Context) (bool, error) {
	return r.reconcileResolved(ctx, ResolvedContext{Cache: r.cfg.ResolvedCacheMode})
}

// RemoveResolvedConfiguration renders the resolver defaults.
func (r *Reconciler) RemoveResolvedConfiguration(ctx context.Context) (bool, error) {
	return r.reconcileResolved(ctx, ResolvedContext{})
}

func (r *Reconciler) reconcileResolved(ctx context.Context, rctx ResolvedContext) (bool, error) {
	content, err := r.renderer.Render(resolvedTemplate, rctx)
	if err != nil {
		return false, err
	}

	changed, err := writeFileIfChanged(r.paths.SystemdResolved, content, 0o644)
	if err != nil || !changed {
		return changed, err
	}

	r.logger.Info().Str("target", r.paths.SystemdResolved).Msg("resolver configuration updated")
	return true, r.restartService(ctx, "systemd-resolved")
}

func (r *Reconciler) restartService(ctx context.Context, unit string) error {
	return r.run.Run(ctx, "systemctl", "restart", unit)
}

func (r *Reconciler) maskService(ctx context.Context, unit string) error {
	return r.run.Run(ctx, "systemctl", "mask", unit)
}

func (r *Reconciler) unmaskService(ctx context.Context, unit string) error {
	return r.run.Run(ctx, "systemctl", "unmask", unit)
}
