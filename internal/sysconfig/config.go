// Package sysconfig reconciles host configuration (grub boot parameters,
// systemd limits, DNS resolver caching, sysctl keys, kernel version, CPU
// governor and IRQ affinity) against a desired-state description, and tracks
// which resources changed since the last boot.
package sysconfig

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"sysconfigd/pkg/configflags"
)

// ErrInvalidConfig marks desired-state values outside their allowed set.
var ErrInvalidConfig = errors.New("invalid configuration")

// Reservation modes for the deprecated reservation option.
const (
	ReservationOff      = "off"
	ReservationIsolCPUs = "isolcpus"
	ReservationAffinity = "affinity"
)

// Config is the desired host state, populated once per reconciliation pass.
type Config struct {
	EnableContainer bool `yaml:"enable-container"`

	// Deprecated: use isolcpus / cpu-affinity-range instead.
	Reservation string `yaml:"reservation"`
	// Deprecated: use isolcpus / cpu-affinity-range instead.
	CPURange string `yaml:"cpu-range"`

	CPUAffinityRange  string `yaml:"cpu-affinity-range"`
	IsolCPUs          string `yaml:"isolcpus"`
	Hugepages         string `yaml:"hugepages"`
	Hugepagesz        string `yaml:"hugepagesz"`
	DefaultHugepagesz string `yaml:"default-hugepagesz"`
	RaidAutodetection string `yaml:"raid-autodetection"`
	EnablePTI         string `yaml:"enable-pti"`
	EnableIOMMU       bool   `yaml:"enable-iommu"`
	EnableTSX         bool   `yaml:"enable-tsx"`

	GrubConfigFlags    string `yaml:"grub-config-flags"`
	SystemdConfigFlags string `yaml:"systemd-config-flags"`
	// Deprecated: use grub-config-flags / systemd-config-flags instead.
	ConfigFlags string `yaml:"config-flags"`

	KernelVersion string `yaml:"kernel-version"`
	UpdateGrub    bool   `yaml:"update-grub"`
	Governor      string `yaml:"governor"`

	ResolvedCacheMode    string `yaml:"resolved-cache-mode"`
	Sysctl               string `yaml:"sysctl"`
	IRQBalanceBannedCPUs string `yaml:"irqbalance-banned-cpus"`
}

// LoadConfig reads the desired-state file and applies defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if cfg.Reservation == "" {
		cfg.Reservation = ReservationOff
	}

	return &cfg, nil
}

// Validate checks the enumerated options against their allowed values.
func (c *Config) Validate() error {
	var invalid []string

	for _, check := range []struct {
		key     string
		value   string
		allowed []string
	}{
		{"reservation", c.Reservation, []string{ReservationOff, ReservationIsolCPUs, ReservationAffinity}},
		{"raid-autodetection", c.RaidAutodetection, []string{"", "noautodetect", "partitionable"}},
		{"governor", c.Governor, []string{"", "powersave", "performance"}},
		{"resolved-cache-mode", c.ResolvedCacheMode, []string{"", "yes", "no", "no-negative"}},
		{"enable-pti", c.EnablePTI, []string{"", "on", "off"}},
	} {
		allowed := false
		for _, v := range check.allowed {
			if check.value == v {
				allowed = true
				break
			}
		}
		if !allowed {
			invalid = append(invalid, fmt.Sprintf("%s=%q (allowed: %s)",
				check.key, check.value, strings.Join(check.allowed, ", ")))
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(invalid, "; "))
	}
	return nil
}

// EffectiveIsolCPUs returns the isolcpus range, falling back to the
// deprecated cpu-range option when reservation=isolcpus is configured.
func (c *Config) EffectiveIsolCPUs() string {
	if c.IsolCPUs == "" && c.Reservation == ReservationIsolCPUs && c.CPURange != "" {
		return c.CPURange
	}
	return c.IsolCPUs
}

// EffectiveCPUAffinityRange returns the CPU affinity range, falling back to
// the deprecated cpu-range option when reservation=affinity is configured.
func (c *Config) EffectiveCPUAffinityRange() string {
	if c.CPUAffinityRange == "" && c.Reservation == ReservationAffinity && c.CPURange != "" {
		return c.CPURange
	}
	return c.CPUAffinityRange
}

// GrubFlags returns the parsed grub config flags, consulting the deprecated
// config-flags option's "grub" entry only when grub-config-flags is empty.
func (c *Config) GrubFlags() map[string]string {
	flags := configflags.Parse(c.GrubConfigFlags)
	if len(flags) > 0 {
		return flags
	}
	return configflags.Parse(strings.Trim(c.legacyConfigFlags()["grub"], `"`))
}

// SystemdFlags returns the parsed systemd config flags, consulting the
// deprecated config-flags option's "systemd" entry only when
// systemd-config-flags is empty.
func (c *Config) SystemdFlags() map[string]string {
	flags := configflags.Parse(c.SystemdConfigFlags)
	if len(flags) > 0 {
		return flags
	}
	return configflags.Parse(strings.Trim(c.legacyConfigFlags()["systemd"], `"`))
}

// legacyConfigFlags parses the deprecated config-flags option. Its entries
// hold nested flag strings, usually quoted to protect embedded commas.
func (c *Config) legacyConfigFlags() map[string]string {
	if c.ConfigFlags == "" {
		return nil
	}
	return configflags.Parse(c.ConfigFlags)
}

// SysctlEntries parses the sysctl YAML block into a key/value map.
func (c *Config) SysctlEntries() (map[string]any, error) {
	if strings.TrimSpace(c.Sysctl) == "" {
		return nil, nil
	}

	var entries map[string]any
	if err := yaml.Unmarshal([]byte(c.Sysctl), &entries); err != nil {
		return nil, fmt.Errorf("parse sysctl YAML: %w", err)
	}
	return entries, nil
}
