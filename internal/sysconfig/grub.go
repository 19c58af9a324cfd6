package sysconfig

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// grubDefaultFormat pins the boot menu entry when a specific kernel version
// is configured but not yet running.
const grubDefaultFormat = "Advanced options for Ubuntu>Ubuntu, with Linux %s"

// GrubContext is the rendering context for the grub fragment.
type GrubContext struct {
	IsolCPUs          string
	Hugepages         string
	Hugepagesz        string
	DefaultHugepagesz string
	Raid              string
	EnablePTI         string
	IOMMU             bool
	TSX               bool
	ConfigFlags       map[string]string
	GrubDefault       string
}

func (r *Reconciler) assembleGrubContext() (GrubContext, error) {
	gctx := GrubContext{
		IsolCPUs:          r.cfg.EffectiveIsolCPUs(),
		Hugepages:         r.cfg.Hugepages,
		Hugepagesz:        r.cfg.Hugepagesz,
		DefaultHugepagesz: r.cfg.DefaultHugepagesz,
		Raid:              r.cfg.RaidAutodetection,
		EnablePTI:         r.cfg.EnablePTI,
		IOMMU:             r.cfg.EnableIOMMU,
		TSX:               r.cfg.EnableTSX,
		ConfigFlags:       r.cfg.GrubFlags(),
	}

	if r.cfg.KernelVersion != "" {
		running, err := r.kernelAlreadyRunning()
		if err != nil {
			return GrubContext{}, err
		}
		if !running {
			gctx.GrubDefault = fmt.Sprintf(grubDefaultFormat, r.cfg.KernelVersion)
		}
	}

	return gctx, nil
}

// UpdateGrubFile reconciles the grub fragment and, on a real change, runs
// update-grub when the update-grub option is set and the host is not a
// container.
func (r *Reconciler) UpdateGrubFile(ctx context.Context) (bool, error) {
	gctx, err := r.assembleGrubContext()
	if err != nil {
		return false, err
	}

	changed, err := r.renderBootResource(ctx, grubTemplate, r.paths.GrubConf, gctx)
	if err != nil || !changed {
		return changed, err
	}

	return true, r.applyGrub(ctx)
}

// RemoveGrubConfiguration deletes the grub fragment if it exists, tracking
// the removal like any other change.
func (r *Reconciler) RemoveGrubConfiguration(ctx context.Context) (bool, error) {
	if _, err := os.Stat(r.paths.GrubConf); os.IsNotExist(err) {
		return false, nil
	}

	if err := os.Remove(r.paths.GrubConf); err != nil {
		return false, fmt.Errorf("remove grub configuration: %w", err)
	}
	r.logger.Info().Str("target", r.paths.GrubConf).Msg("grub configuration deleted")

	if err := r.applyGrub(ctx); err != nil {
		return true, err
	}
	return true, r.boot.SetResource(ctx, r.paths.GrubConf)
}

// applyGrub runs update-grub when configured to apply immediately.
func (r *Reconciler) applyGrub(ctx context.Context) error {
	if !r.cfg.UpdateGrub || r.isContainer() {
		return nil
	}

	r.logger.Debug().Msg("running update-grub to apply grub configuration")
	return r.run.Run(ctx, "update-grub")
}

// CheckGrubUpdate reports whether the generated grub config would change if
// update-grub ran now, with an operator-readable message. Boot parameters
// referencing filesystems by UUID are rewritten to LABEL references before
// the comparison, so UUID churn alone never signals an update.
func (r *Reconciler) CheckGrubUpdate(ctx context.Context) (bool, string) {
	const noUpdates = "No available grub updates found."

	r.logger.Debug().Str("path", r.paths.GrubCfg).Msg("checking for grub config updates")

	if _, err := r.run.Output(ctx, "grub-mkconfig", "-o", r.paths.GrubCandidate); err != nil {
		return false, fmt.Sprintf("Unable to check update-grub: %v", err)
	}

	equal, err := filesEqual(r.paths.GrubCfg, r.paths.GrubCandidate)
	if err != nil {
		return false, fmt.Sprintf("Unable to check update-grub: %v", err)
	}
	if equal {
		return false, noUpdates
	}

	candidate, err := os.ReadFile(r.paths.GrubCandidate)
	if err != nil {
		return false, fmt.Sprintf("Unable to check update-grub: %v", err)
	}

	mapping, err := r.blkidMapping(ctx)
	if err != nil {
		return false, fmt.Sprintf("Unable to check update-grub: %v", err)
	}

	rewritten := replaceUUIDsWithLabels(string(candidate), mapping)
	if err := writeFile(r.paths.GrubCandidate, rewritten, 0o644); err != nil {
		return false, fmt.Sprintf("Unable to check update-grub: %v", err)
	}

	equal, err = filesEqual(r.paths.GrubCfg, r.paths.GrubCandidate)
	if err != nil {
		return false, fmt.Sprintf("Unable to check update-grub: %v", err)
	}
	if equal {
		return false, noUpdates
	}
	return true, "Found available grub updates. Run `sysconfigd apply` with update-grub enabled, or update-grub manually, to apply them."
}

// CheckGrubReboot reports whether a pending grub update should be surfaced
// as requiring a reboot. The signal is suppressed when the operator cleared
// notifications after the grub fragment last changed.
func (r *Reconciler) CheckGrubReboot(ctx context.Context) (bool, error) {
	ack, acked, err := r.boot.ClearNotificationTime(ctx)
	if err != nil {
		return false, err
	}

	changedAt, _, err := r.boot.ResourceChangedTimestamp(ctx, r.paths.GrubConf)
	if err != nil {
		return false, err
	}
	if acked && ack.After(changedAt) {
		return false, nil
	}

	update, _ := r.CheckGrubUpdate(ctx)
	return update, nil
}

// blkidMapping queries block device metadata for a UUID to LABEL mapping.
func (r *Reconciler) blkidMapping(ctx context.Context) (map[string]string, error) {
	out, err := r.run.Output(ctx, "blkid")
	if err != nil {
		return nil, err
	}

	mapping := make(map[string]string)
	for _, line := range strings.Split(string(out), "\n") {
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}

		var uuid, label string
		for _, part := range parts[1:] {
			switch {
			case strings.HasPrefix(part, "UUID="):
				uuid = strings.Trim(strings.TrimPrefix(part, "UUID="), `"`)
			case strings.HasPrefix(part, "LABEL="):
				label = strings.Trim(strings.TrimPrefix(part, "LABEL="), `"`)
			}
		}
		if uuid != "" && label != "" {
			mapping[uuid] = label
		}
	}

	r.logger.Debug().Interface("mapping", mapping).Msg("blkid UUID to LABEL mapping")
	return mapping, nil
}

// replaceUUIDsWithLabels rewrites root=UUID=<uuid> boot parameters to
// root=LABEL=<label> using the blkid mapping.
func replaceUUIDsWithLabels(content string, mapping map[string]string) string {
	for uuid, label := range mapping {
		content = strings.ReplaceAll(content, "root=UUID="+uuid, "root=LABEL="+label)
	}
	return content
}

func (r *Reconciler) kernelAlreadyRunning() (bool, error) {
	running, err := r.runningKernel()
	if err != nil {
		return false, err
	}
	if r.cfg.KernelVersion == running {
		r.logger.Debug().Str("version", running).Msg("already running configured kernel")
		return true, nil
	}
	return false, nil
}
