package sysconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfigFile(t, "governor: performance\n"))
	require.NoError(t, err)

	assert.Equal(t, ReservationOff, cfg.Reservation)
	assert.Equal(t, "performance", cfg.Governor)
	assert.False(t, cfg.UpdateGrub)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	_, err := LoadConfig(writeConfigFile(t, "governor: [unclosed\n"))
	assert.ErrorContains(t, err, "parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"empty", Config{Reservation: ReservationOff}, true},
		{"all set", Config{
			Reservation:       ReservationIsolCPUs,
			RaidAutodetection: "noautodetect",
			Governor:          "powersave",
			ResolvedCacheMode: "no-negative",
			EnablePTI:         "off",
		}, true},
		{"bad reservation", Config{Reservation: "cores"}, false},
		{"bad raid", Config{Reservation: ReservationOff, RaidAutodetection: "none"}, false},
		{"bad governor", Config{Reservation: ReservationOff, Governor: "ondemand"}, false},
		{"bad cache mode", Config{Reservation: ReservationOff, ResolvedCacheMode: "maybe"}, false},
		{"bad pti", Config{Reservation: ReservationOff, EnablePTI: "auto"}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestValidateReportsEveryInvalidOption(t *testing.T) {
	cfg := Config{Reservation: "cores", Governor: "ondemand"}

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorContains(t, err, "reservation")
	assert.ErrorContains(t, err, "governor")
}

func TestEffectiveIsolCPUs(t *testing.T) {
	// The explicit option always wins.
	cfg := Config{IsolCPUs: "1-3", Reservation: ReservationIsolCPUs, CPURange: "0-7"}
	assert.Equal(t, "1-3", cfg.EffectiveIsolCPUs())

	// Deprecated fallback applies only under reservation=isolcpus.
	cfg = Config{Reservation: ReservationIsolCPUs, CPURange: "0-7"}
	assert.Equal(t, "0-7", cfg.EffectiveIsolCPUs())

	cfg = Config{Reservation: ReservationAffinity, CPURange: "0-7"}
	assert.Empty(t, cfg.EffectiveIsolCPUs())

	cfg = Config{Reservation: ReservationOff, CPURange: "0-7"}
	assert.Empty(t, cfg.EffectiveIsolCPUs())
}

func TestEffectiveCPUAffinityRange(t *testing.T) {
	cfg := Config{CPUAffinityRange: "4-7", Reservation: ReservationAffinity, CPURange: "0-7"}
	assert.Equal(t, "4-7", cfg.EffectiveCPUAffinityRange())

	cfg = Config{Reservation: ReservationAffinity, CPURange: "0-7"}
	assert.Equal(t, "0-7", cfg.EffectiveCPUAffinityRange())

	cfg = Config{Reservation: ReservationIsolCPUs, CPURange: "0-7"}
	assert.Empty(t, cfg.EffectiveCPUAffinityRange())
}

func TestGrubFlagsPrecedence(t *testing.T) {
	// grub-config-flags wins over the deprecated config-flags entry.
	cfg := Config{
		GrubConfigFlags: "GRUB_TIMEOUT=0",
		ConfigFlags:     `grub="GRUB_TIMEOUT=5"`,
	}
	assert.Equal(t, map[string]string{"GRUB_TIMEOUT": "0"}, cfg.GrubFlags())

	// The legacy entry is consulted only when the new option is empty.
	cfg = Config{ConfigFlags: `grub="GRUB_TIMEOUT=5,GRUB_RECORDFAIL_TIMEOUT=0"`}
	assert.Equal(t, map[string]string{
		"GRUB_TIMEOUT":            "5",
		"GRUB_RECORDFAIL_TIMEOUT": "0",
	}, cfg.GrubFlags())

	cfg = Config{}
	assert.Empty(t, cfg.GrubFlags())
}

func TestSystemdFlagsPrecedence(t *testing.T) {
	cfg := Config{
		SystemdConfigFlags: "DefaultLimitNOFILE=4096",
		ConfigFlags:        `systemd="DefaultLimitNOFILE=1024"`,
	}
	assert.Equal(t, map[string]string{"DefaultLimitNOFILE": "4096"}, cfg.SystemdFlags())

	cfg = Config{ConfigFlags: `systemd="DefaultLimitNOFILE=1024"`}
	assert.Equal(t, map[string]string{"DefaultLimitNOFILE": "1024"}, cfg.SystemdFlags())
}

func TestSysctlEntries(t *testing.T) {
	cfg := Config{Sysctl: "vm.swappiness: 10\nnet.ipv4.ip_forward: 1\n"}

	entries, err := cfg.SysctlEntries()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"vm.swappiness": 10, "net.ipv4.ip_forward": 1}, entries)
}

func TestSysctlEntriesEmpty(t *testing.T) {
	entries, err := (&Config{}).SysctlEntries()
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestSysctlEntriesMalformed(t *testing.T) {
	_, err := (&Config{Sysctl: "vm.swappiness: [10"}).SysctlEntries()
	assert.ErrorContains(t, err, "parse sysctl YAML")
}
