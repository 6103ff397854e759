package backup

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sahilchouksey/college-explorer-api/model"
	"github.com/sahilchouksey/college-explorer-api/services/datastore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (m *memoryStore) Put(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such key %s", key)
	}
	return data, nil
}

func (m *memoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func TestBackupAndRestore(t *testing.T) {
	ledger := datastore.NewLedgerFile(filepath.Join(t.TempDir(), "admin_updates.json"))
	_, err := ledger.Update(func(l *model.Ledger) {
		l.Upsert(model.College{ID: "x", Name: "X"})
		l.Tombstone("y")
	})
	require.NoError(t, err)

	store := newMemoryStore()
	b := NewLedgerBackup(store, ledger)
	b.now = func() time.Time { return time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC) }

	key, err := b.Backup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ledger/admin_updates-20260506T070809Z.json", key)

	_, err = ledger.Update(func(l *model.Ledger) { l.Tombstone("x") })
	require.NoError(t, err)

	restored, err := b.Restore(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, restored.Deleted)

	current, err := ledger.Load()
	require.NoError(t, err)
	require.Len(t, current.Added, 1)
	assert.Equal(t, "x", current.Added[0].ID)

	keys, err := b.Snapshots(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{key}, keys)
}

func TestRestoreRejectsBadSnapshots(t *testing.T) {
	ledger := datastore.NewLedgerFile(filepath.Join(t.TempDir(), "admin_updates.json"))
	store := newMemoryStore()
	require.NoError(t, store.Put(context.Background(), "ledger/bad.json", []byte("not json"), jsonMediaType))
	b := NewLedgerBackup(store, ledger)

	_, err := b.Restore(context.Background(), "ledger/bad.json")
	assert.ErrorIs(t, err, ErrInvalidSnapshot)

	_, err = b.Restore(context.Background(), "elsewhere/admin_updates.json")
	assert.ErrorIs(t, err, ErrInvalidSnapshot)
}

func TestSpacesClientAgainstS3API(t *testing.T) {
	var mu sync.Mutex
	objects := map[string][]byte{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		key := strings.TrimPrefix(r.URL.Path, "/backups/")
		switch {
		case r.Method == http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			objects[key] = body
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2":
			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"><Name>backups</Name><IsTruncated>false</IsTruncated>`)
			for k := range objects {
				fmt.Fprintf(w, "<Contents><Key>%s</Key><Size>%d</Size></Contents>", k, len(objects[k]))
			}
			fmt.Fprint(w, `</ListBucketResult>`)
		case r.Method == http.MethodGet:
			data, ok := objects[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write(data)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer srv.Close()

	client, err := NewSpacesClient(SpacesConfig{
		AccessKey: "key",
		SecretKey: "secret",
		Bucket:    "backups",
		Region:    "us-east-1",
		Endpoint:  srv.URL,
		PathStyle: true,
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, client.Put(ctx, "ledger/a.json", []byte(`{"added":[],"deleted":[]}`), jsonMediaType))

	data, err := client.Get(ctx, "ledger/a.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"added":[],"deleted":[]}`, string(data))

	keys, err := client.List(ctx, Prefix)
	require.NoError(t, err)
	assert.Equal(t, []string{"ledger/a.json"}, keys)

	_, err = client.Get(ctx, "ledger/missing.json")
	assert.Error(t, err)
}

func TestNewSpacesClientRequiresBucket(t *testing.T) {
	_, err := NewSpacesClient(SpacesConfig{Region: "nyc3"})
	assert.Error(t, err)
}
