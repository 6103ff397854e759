// Package backup snapshots the admin override ledger to object storage and
// restores it from a snapshot.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sahilchouksey/college-explorer-api/model"
	"github.com/sahilchouksey/college-explorer-api/services/datastore"
	"github.com/sahilchouksey/college-explorer-api/utils/logger"
)

const (
	Prefix        = "ledger/"
	timeLayout    = "20060102T150405Z"
	jsonMediaType = "application/json"
)

var ErrInvalidSnapshot = errors.New("snapshot is not a valid ledger")

// ObjectStore is the bucket the snapshots live in.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

type LedgerBackup struct {
	store  ObjectStore
	ledger *datastore.LedgerFile
	now    func() time.Time
}

func NewLedgerBackup(store ObjectStore, ledger *datastore.LedgerFile) *LedgerBackup {
	return &LedgerBackup{store: store, ledger: ledger, now: time.Now}
}

// SnapshotKey names the object for a snapshot taken at t.
func SnapshotKey(t time.Time) string {
	return Prefix + "admin_updates-" + t.UTC().Format(timeLayout) + ".json"
}

// Backup uploads the current ledger file and returns the object key.
func (b *LedgerBackup) Backup(ctx context.Context) (string, error) {
	data, err := b.ledger.Raw()
	if err != nil {
		return "", fmt.Errorf("failed to read ledger: %w", err)
	}
	key := SnapshotKey(b.now())
	if err := b.store.Put(ctx, key, data, jsonMediaType); err != nil {
		return "", err
	}
	logger.Info().Str("key", key).Int("bytes", len(data)).Msg("ledger backed up")
	return key, nil
}

// Snapshots lists stored snapshot keys, newest last.
func (b *LedgerBackup) Snapshots(ctx context.Context) ([]string, error) {
	return b.store.List(ctx, Prefix)
}

// Restore replaces the local ledger with the snapshot at key. Callers must
// invalidate the cache afterwards for the restored overrides to be served.
func (b *LedgerBackup) Restore(ctx context.Context, key string) (*model.Ledger, error) {
	if !strings.HasPrefix(key, Prefix) {
		return nil, fmt.Errorf("%w: key must start with %s", ErrInvalidSnapshot, Prefix)
	}
	data, err := b.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var l model.Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if l.Added == nil {
		l.Added = []model.College{}
	}
	if l.Deleted == nil {
		l.Deleted = []string{}
	}
	if err := b.ledger.Save(&l); err != nil {
		return nil, err
	}
	logger.Info().Str("key", key).Int("added", len(l.Added)).Int("deleted", len(l.Deleted)).Msg("ledger restored")
	return &l, nil
}
