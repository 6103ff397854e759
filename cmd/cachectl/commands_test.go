package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/sahilchouksey/college-explorer-api/services/datastore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Goa_Colleges.json"),
		[]byte(`[{"id":"goa-uni","name":"Goa University","state":"Goa"}]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "exams.json"),
		[]byte(`[{"id":"cuet","name":"Common University Entrance Test","acceptedColleges":["goa-uni"]}]`), 0o644))

	t.Setenv("GO_ENV", "test")
	t.Setenv("REDIS_URL", "redis://"+mr.Addr())
	t.Setenv("DATA_DIR", dir)
	return mr
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHydrateAndStatus(t *testing.T) {
	mr := setup(t)

	out, err := run(t, "hydrate")
	require.NoError(t, err)
	var status datastore.Status
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.EqualValues(t, 1, status.Colleges)
	assert.EqualValues(t, 1, status.Exams)
	assert.True(t, mr.Exists(datastore.KeyInitialized))

	out, err = run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, `"lastUpdate"`)
}

func TestFlushNeedsConfirmation(t *testing.T) {
	mr := setup(t)
	require.NoError(t, mr.Set("user:choices:u1", "[]"))

	_, err := run(t, "flush")
	require.Error(t, err)
	assert.True(t, mr.Exists("user:choices:u1"))

	_, err = run(t, "flush", "--yes")
	require.NoError(t, err)
	assert.False(t, mr.Exists("user:choices:u1"))
	assert.True(t, mr.Exists(datastore.KeyCollegesMap))
}

func TestKeygenAndKeys(t *testing.T) {
	setup(t)

	_, err := run(t, "keygen", "platinum")
	require.Error(t, err)

	out, err := run(t, "keygen", "pro")
	require.NoError(t, err)
	fields := strings.Fields(out)
	require.Len(t, fields, 2)
	assert.Equal(t, "pro", fields[1])

	out, err = run(t, "keys")
	require.NoError(t, err)
	assert.Contains(t, out, fields[0])
	assert.Contains(t, out, "active")
}

func TestInvalidatePurgesResponses(t *testing.T) {
	mr := setup(t)
	require.NoError(t, mr.Set("resp:colleges:state=Goa", `{"success":true}`))

	out, err := run(t, "invalidate")
	require.NoError(t, err)
	assert.Contains(t, out, "purged 1 memoized responses")
	assert.False(t, mr.Exists("resp:colleges:state=Goa"))
}

func TestBackupRequiresConfiguration(t *testing.T) {
	setup(t)
	_, err := run(t, "backup")
	require.Error(t, err)
}
