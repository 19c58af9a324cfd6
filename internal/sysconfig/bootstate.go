package sysconfig

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"sysconfigd/internal/hostinfo"
	"sysconfigd/internal/store"
)

const (
	// bootResourcePrefix namespaces per-resource records in the store.
	// Values are epoch-float change timestamps; the ".sha256sum" suffix
	// holds the hex digest of the resource content at last recording.
	bootResourcePrefix = "sysconfig.boot_resource."

	// clearNotificationKey holds the epoch-float timestamp of the last
	// clear-notifications run.
	clearNotificationKey = "clear-notification-timestamp"
)

// BootResourceState tracks, per named resource, the timestamp of the last
// recorded content change and a checksum of the content at last recording.
// The two signals are reconciled against boot time and the last operator
// acknowledgment to answer "which pending changes still need a reboot?".
type BootResourceState struct {
	db     store.Store
	logger zerolog.Logger

	// Overridable for tests.
	now      func() time.Time
	bootTime func() (time.Time, error)
}

// NewBootResourceState creates the tracker on top of the given store.
func NewBootResourceState(db store.Store, logger zerolog.Logger) *BootResourceState {
	return &BootResourceState{
		db:       db,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		bootTime: hostinfo.BootTime,
	}
}

func (b *BootResourceState) keyFor(name string) string {
	return bootResourcePrefix + name
}

func (b *BootResourceState) checksumKeyFor(name string) string {
	return b.keyFor(name) + ".sha256sum"
}

// SetResource records that the resource's content was just written.
// The checksum record is deliberately left untouched: it is only advanced by
// UpdateResourceChecksums, so a timestamp/checksum mismatch remains visible
// until the change is surfaced or re-baselined.
func (b *BootResourceState) SetResource(ctx context.Context, name string) error {
	if err := b.db.Set(ctx, b.keyFor(name), encodeTimestamp(b.now())); err != nil {
		return fmt.Errorf("record change for %s: %w", name, err)
	}
	return nil
}

// UpdateResourceChecksums stores the current content checksum for each named
// resource whose backing file exists. Missing files are skipped, never
// recorded as "present but unchanged". Change timestamps are not touched.
func (b *BootResourceState) UpdateResourceChecksums(ctx context.Context, names []string) error {
	for _, name := range names {
		sum, err := fileChecksum(name)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("checksum %s: %w", name, err)
		}

		if err := b.db.Set(ctx, b.checksumKeyFor(name), []byte(sum)); err != nil {
			return fmt.Errorf("record checksum for %s: %w", name, err)
		}
	}
	return nil
}

// ChecksumChanged reports whether the resource's live content checksum
// differs from the recorded one. Resources without a recorded checksum are
// always reported as changed (records predating checksum tracking). A
// recorded checksum whose backing file can no longer be read also counts as
// changed: previously recorded content is gone.
func (b *BootResourceState) ChecksumChanged(ctx context.Context, name string) (bool, error) {
	recorded, found, err := b.db.Get(ctx, b.checksumKeyFor(name))
	if err != nil {
		return false, fmt.Errorf("read checksum for %s: %w", name, err)
	}
	if !found || len(recorded) == 0 {
		return true, nil
	}

	live, err := fileChecksum(name)
	if err != nil {
		b.logger.Debug().Str("resource", name).Err(err).
			Msg("cannot read resource content, treating recorded checksum as stale")
		return true, nil
	}

	return string(recorded) != live, nil
}

// ResourceChangedTimestamp returns the last recorded change time for the
// resource. The boolean reports whether a record exists; without one the
// zero time (dawn of time) is returned.
func (b *BootResourceState) ResourceChangedTimestamp(ctx context.Context, name string) (time.Time, bool, error) {
	value, found, err := b.db.Get(ctx, b.keyFor(name))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read change time for %s: %w", name, err)
	}
	if !found {
		return time.Time{}, false, nil
	}

	ts, err := decodeTimestamp(value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("decode change time for %s: %w", name, err)
	}
	return ts, true, nil
}

// ResourceChangedSinceBoot reports whether the resource's recorded change
// post-dates the effective cutoff (boot or later acknowledgment). A resource
// that was never recorded reports true: it has never been acknowledged.
func (b *BootResourceState) ResourceChangedSinceBoot(ctx context.Context, name string) (bool, error) {
	cutoff, err := b.effectiveCutoff(ctx)
	if err != nil {
		return false, err
	}

	changedAt, found, err := b.ResourceChangedTimestamp(ctx, name)
	if err != nil {
		return false, err
	}
	if !found {
		return true, nil
	}
	return changedAt.After(cutoff), nil
}

// ResourcesChangedSinceBoot returns, in input order, the resources whose
// pending changes still require a reboot or acknowledgment: those recorded
// as changed after the effective cutoff whose content checksum also differs.
// Checksum drift without a matching timestamp is not attributable to this
// reconciler (an external edit, or tracking catching up on a record created
// before checksums existed) and is silently re-baselined instead of surfaced.
func (b *BootResourceState) ResourcesChangedSinceBoot(ctx context.Context, names []string) ([]string, error) {
	cutoff, err := b.effectiveCutoff(ctx)
	if err != nil {
		return nil, err
	}

	timeChanged := make(map[string]bool, len(names))
	csumChanged := make(map[string]bool, len(names))

	for _, name := range names {
		// Never-recorded resources carry the dawn-of-time default here:
		// they cannot have pending writes by this reconciler.
		changedAt, _, err := b.ResourceChangedTimestamp(ctx, name)
		if err != nil {
			return nil, err
		}
		timeChanged[name] = changedAt.After(cutoff)

		drifted, err := b.ChecksumChanged(ctx, name)
		if err != nil {
			return nil, err
		}
		csumChanged[name] = drifted
	}

	var unattributed []string
	for _, name := range names {
		if csumChanged[name] && !timeChanged[name] {
			unattributed = append(unattributed, name)
		}
	}
	if err := b.UpdateResourceChecksums(ctx, unattributed); err != nil {
		return nil, err
	}

	var changed []string
	for _, name := range names {
		if timeChanged[name] && csumChanged[name] {
			changed = append(changed, name)
		}
	}
	return changed, nil
}

// ClearNotifications stamps the acknowledgment time, marking all prior
// pending changes as seen by the operator.
func (b *BootResourceState) ClearNotifications(ctx context.Context) (time.Time, error) {
	now := b.now()
	if err := b.db.Set(ctx, clearNotificationKey, encodeTimestamp(now)); err != nil {
		return time.Time{}, fmt.Errorf("record clear-notification time: %w", err)
	}
	if err := b.db.Flush(ctx); err != nil {
		return time.Time{}, fmt.Errorf("flush store: %w", err)
	}

	b.logger.Debug().Time("at", now).Msg("notifications cleared")
	return now, nil
}

// ClearNotificationTime returns the last acknowledgment time, if any.
func (b *BootResourceState) ClearNotificationTime(ctx context.Context) (time.Time, bool, error) {
	value, found, err := b.db.Get(ctx, clearNotificationKey)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read clear-notification time: %w", err)
	}
	if !found {
		return time.Time{}, false, nil
	}

	ts, err := decodeTimestamp(value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("decode clear-notification time: %w", err)
	}
	return ts, true, nil
}

// effectiveCutoff is the boot time, or the acknowledgment time when that is
// later. Recorded changes at or before the cutoff count as acknowledged.
func (b *BootResourceState) effectiveCutoff(ctx context.Context) (time.Time, error) {
	boot, err := b.bootTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("determine boot time: %w", err)
	}

	ack, found, err := b.ClearNotificationTime(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if found && ack.After(boot) {
		return ack, nil
	}
	return boot, nil
}

// fileChecksum returns the hex sha256 digest of the file content.
func fileChecksum(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// encodeTimestamp stores a time as an epoch float, fractional seconds kept.
func encodeTimestamp(t time.Time) []byte {
	epoch := float64(t.UnixNano()) / float64(time.Second)
	return []byte(strconv.FormatFloat(epoch, 'f', -1, 64))
}

func decodeTimestamp(value []byte) (time.Time, error) {
	epoch, err := strconv.ParseFloat(string(value), 64)
	if err != nil {
		return time.Time{}, err
	}

	sec := int64(epoch)
	nsec := int64((epoch - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC(), nil
}
