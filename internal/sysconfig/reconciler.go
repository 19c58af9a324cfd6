package sysconfig

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"sysconfigd/internal/audit"
	"sysconfigd/internal/executor"
	"sysconfigd/internal/hostinfo"
	"sysconfigd/internal/render"
)

// KernelResource is the pseudo-resource tracking kernel installs. It has no
// backing file, so it never acquires a checksum record.
const KernelResource = "kernel"

// Template identifiers, one per managed resource.
const (
	grubTemplate          = "grub.tmpl"
	systemdSystemTemplate = "systemd-system.tmpl"
	resolvedTemplate      = "resolved.tmpl"
	cpufrequtilsTemplate  = "cpufrequtils.tmpl"
	irqbalanceTemplate    = "irqbalance.tmpl"
	sysctlTemplate        = "sysctl.tmpl"
)

// ErrUnsupportedHost is returned when reconciliation is attempted inside a
// container without the enable-container escape hatch.
var ErrUnsupportedHost = errors.New("containers are not supported")

// Paths holds the target file locations for every managed resource.
type Paths struct {
	GrubConf        string
	SystemdSystem   string
	SystemdResolved string
	SysctlConf      string
	CPUFrequtils    string
	IRQBalance      string

	// GrubCfg is the generated grub config compared against during
	// check-grub-update. Read-only input.
	GrubCfg string
	// GrubCandidate is where grub-mkconfig writes the candidate config.
	GrubCandidate string
}

// DefaultPaths returns the standard locations on an Ubuntu host.
func DefaultPaths() Paths {
	return Paths{
		GrubConf:        "/etc/default/grub.d/90-sysconfigd.cfg",
		SystemdSystem:   "/etc/systemd/system.conf",
		SystemdResolved: "/etc/systemd/resolved.conf",
		SysctlConf:      "/etc/sysctl.d/90-sysconfigd.conf",
		CPUFrequtils:    "/etc/default/cpufrequtils",
		IRQBalance:      "/etc/default/irqbalance",
		GrubCfg:         "/boot/grub/grub.cfg",
		GrubCandidate:   "/tmp/sysconfigd-grub-candidate.cfg",
	}
}

// ReconcilerConfig holds the collaborators for a Reconciler.
type ReconcilerConfig struct {
	Config   *Config
	Boot     *BootResourceState
	Renderer *render.Renderer
	Runner   executor.Runner
	Paths    Paths
	Journal  *audit.Journal
	Logger   zerolog.Logger
}

// Reconciler applies the desired host state one resource at a time. Each
// update method is independent and idempotent: re-running with an unchanged
// configuration writes no files and restarts no services.
type Reconciler struct {
	cfg      *Config
	boot     *BootResourceState
	renderer *render.Renderer
	run      executor.Runner
	paths    Paths
	journal  *audit.Journal
	logger   zerolog.Logger

	// Overridable for tests.
	isContainer   func() bool
	runningKernel func() (string, error)
}

// NewReconciler creates a reconciler from its collaborators.
func NewReconciler(rc ReconcilerConfig) *Reconciler {
	return &Reconciler{
		cfg:           rc.Config,
		boot:          rc.Boot,
		renderer:      rc.Renderer,
		run:           rc.Runner,
		paths:         rc.Paths,
		journal:       rc.Journal,
		logger:        rc.Logger,
		isContainer:   hostinfo.IsContainer,
		runningKernel: hostinfo.RunningKernel,
	}
}

// Apply reconciles every managed resource. A failing resource does not
// prevent reconciliation of the others; failures are aggregated.
func (r *Reconciler) Apply(ctx context.Context) error {
	if err := r.checkSupported(); err != nil {
		return err
	}
	if err := r.cfg.Validate(); err != nil {
		return err
	}

	var errs []error
	for _, step := range []struct {
		resource string
		fn       func(context.Context) (bool, error)
	}{
		{KernelResource, r.InstallConfiguredKernel},
		{r.paths.CPUFrequtils, r.UpdateCPUFreq},
		{r.paths.GrubConf, r.UpdateGrubFile},
		{r.paths.SystemdSystem, r.UpdateSystemdSystemFile},
		{r.paths.SystemdResolved, r.UpdateSystemdResolved},
		{r.paths.IRQBalance, r.UpdateIRQBalance},
		{r.paths.SysctlConf, r.UpdateSysctl},
	} {
		changed, err := step.fn(ctx)
		r.journalRecord(step.resource, "update", changed, err)
		if err != nil {
			r.logger.Error().Str("resource", step.resource).Err(err).Msg("reconciliation failed")
			errs = append(errs, fmt.Errorf("%s: %w", step.resource, err))
		}
	}

	return errors.Join(errs...)
}

// Remove reverts every managed resource to its unconfigured rendering.
// Kernels installed by previous reconciliations are kept.
func (r *Reconciler) Remove(ctx context.Context) error {
	var errs []error
	for _, step := range []struct {
		resource string
		fn       func(context.Context) (bool, error)
	}{
		{r.paths.CPUFrequtils, r.RemoveCPUFreqConfiguration},
		{r.paths.GrubConf, r.RemoveGrubConfiguration},
		{r.paths.SystemdSystem, r.RemoveSystemdConfiguration},
		{r.paths.SystemdResolved, r.RemoveResolvedConfiguration},
		{r.paths.IRQBalance, r.RemoveIRQBalanceConfiguration},
	} {
		changed, err := step.fn(ctx)
		r.journalRecord(step.resource, "remove", changed, err)
		if err != nil {
			r.logger.Error().Str("resource", step.resource).Err(err).Msg("removal failed")
			errs = append(errs, fmt.Errorf("%s: %w", step.resource, err))
		}
	}

	return errors.Join(errs...)
}

// checkSupported refuses to manage containerized hosts unless the
// enable-container testing escape hatch is set.
func (r *Reconciler) checkSupported() error {
	if r.isContainer() && !r.cfg.EnableContainer {
		return ErrUnsupportedHost
	}
	return nil
}

// renderBootResource renders the template and writes the target only on a
// real difference, recording the change in boot resource state.
func (r *Reconciler) renderBootResource(ctx context.Context, template, target string, data any) (bool, error) {
	content, err := r.renderer.Render(template, data)
	if err != nil {
		return false, err
	}

	changed, err := writeFileIfChanged(target, content, 0o644)
	if err != nil {
		return false, err
	}
	if !changed {
		r.logger.Debug().Str("target", target).Msg("no configuration changes, not rendering file")
		return false, nil
	}

	if err := r.boot.SetResource(ctx, target); err != nil {
		return true, err
	}
	r.logger.Info().Str("target", target).Msg("configuration updated")
	return true, nil
}

func (r *Reconciler) journalRecord(resource, action string, changed bool, err error) {
	if r.journal == nil {
		return
	}

	entry := audit.Entry{Resource: resource, Action: action, Changed: changed}
	if err != nil {
		entry.Error = err.Error()
	}
	if jerr := r.journal.Record(entry); jerr != nil {
		r.logger.Warn().Err(jerr).Msg("journal write failed")
	}
}
