package audit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")

	journal, err := NewJournal(path)
	require.NoError(t, err)

	require.NoError(t, journal.Record(Entry{Resource: "/etc/systemd/system.conf", Action: "update", Changed: true}))
	require.NoError(t, journal.Record(Entry{Resource: "kernel", Action: "update", Changed: false, Error: "apt-get failed"}))
	require.NoError(t, journal.Close())

	entries, err := Read(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "/etc/systemd/system.conf", entries[0].Resource)
	assert.True(t, entries[0].Changed)
	assert.NotEmpty(t, entries[0].Timestamp, "timestamp is filled in on record")
	assert.Equal(t, "apt-get failed", entries[1].Error)
}

func TestJournalAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")

	for i := 0; i < 2; i++ {
		journal, err := NewJournal(path)
		require.NoError(t, err)
		require.NoError(t, journal.Record(Entry{Resource: "kernel", Action: "update"}))
		require.NoError(t, journal.Close())
	}

	entries, err := Read(path)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestJournalDisabled(t *testing.T) {
	journal, err := NewJournal("")
	require.NoError(t, err)

	assert.NoError(t, journal.Record(Entry{Resource: "kernel", Action: "update"}))
	assert.NoError(t, journal.Close())

	entries, err := Read("")
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestReadSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	content := `{"resource":"kernel","action":"update","changed":true}
this line is not JSON
{"resource":"/etc/default/irqbalance","action":"remove","changed":false}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	entries, err := Read(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "kernel", entries[0].Resource)
	assert.Equal(t, "remove", entries[1].Action)
}

func TestReadMissingFile(t *testing.T) {
	entries, err := Read(filepath.Join(t.TempDir(), "missing.jsonl"))
	require.NoError(t, err)
	assert.Nil(t, entries)
}
