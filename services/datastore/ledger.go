package datastore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/sahilchouksey/college-explorer-api/model"
)

// LedgerFile persists the admin override ledger as JSON on disk.
type LedgerFile struct {
	path string
	mu   sync.Mutex
}

func NewLedgerFile(path string) *LedgerFile {
	return &LedgerFile{path: path}
}

func (f *LedgerFile) Path() string {
	return f.path
}

// Load reads the ledger. A missing file yields an empty ledger.
func (f *LedgerFile) Load() (*model.Ledger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

// Save replaces the ledger on disk.
func (f *LedgerFile) Save(l *model.Ledger) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.save(l)
}

// Update runs fn against the current ledger and persists the result. Calls are
// serialized within the process; writers in other processes still race.
func (f *LedgerFile) Update(fn func(l *model.Ledger)) (*model.Ledger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	l, err := f.load()
	if err != nil {
		return nil, err
	}
	fn(l)
	if err := f.save(l); err != nil {
		return nil, err
	}
	return l, nil
}

// Raw returns the file contents, or an empty ledger document when missing.
func (f *LedgerFile) Raw() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return json.Marshal(emptyLedger())
	}
	return data, err
}

func (f *LedgerFile) load() (*model.Ledger, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return emptyLedger(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	l := emptyLedger()
	if len(trimBOM(data)) == 0 {
		return l, nil
	}
	if err := json.Unmarshal(trimBOM(data), l); err != nil {
		return nil, fmt.Errorf("failed to parse ledger: %w", err)
	}
	if l.Added == nil {
		l.Added = []model.College{}
	}
	if l.Deleted == nil {
		l.Deleted = []string{}
	}
	return l, nil
}

func (f *LedgerFile) save(l *model.Ledger) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".admin_updates-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp ledger: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace ledger: %w", err)
	}
	return nil
}

func emptyLedger() *model.Ledger {
	return &model.Ledger{Added: []model.College{}, Deleted: []string{}}
}

func trimBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}
