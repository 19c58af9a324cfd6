package sysconfig

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusReady(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &Config{})
	writeGrubFiles(t, env, "menuentry 'Ubuntu'\n", "menuentry 'Ubuntu'\n")

	status, err := env.rec.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateActive, status.State)
	assert.Equal(t, "ready", status.Message)
	assert.Empty(t, status.Pending)
}

func TestStatusRebootRequired(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &Config{})
	writeGrubFiles(t, env, "menuentry 'Ubuntu'\n", "menuentry 'Ubuntu'\n")

	// A limits file rewritten after boot is pending until the next reboot.
	require.NoError(t, env.boot.SetResource(ctx, env.paths.SystemdSystem))

	status, err := env.rec.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateBlocked, status.State)
	assert.Equal(t, "reboot required. Changes in: "+env.paths.SystemdSystem, status.Message)
	assert.Equal(t, []string{env.paths.SystemdSystem}, status.Pending)
}

func TestStatusPendingGrubUpdate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &Config{})
	writeGrubFiles(t, env, "old\n", "new\n")

	status, err := env.rec.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateBlocked, status.State)
	assert.Equal(t, "update-grub and reboot required. Changes in: "+env.paths.GrubConf, status.Message)
}

func TestStatusGrubUpdateAutoApplied(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, &Config{UpdateGrub: true})
	writeGrubFiles(t, env, "old\n", "new\n")

	// With update-grub enabled the operator never runs it by hand, so the
	// message carries no update-grub prefix.
	status, err := env.rec.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateBlocked, status.State)
	assert.Equal(t, "reboot required. Changes in: "+env.paths.GrubConf, status.Message)
}
