// Package userdata stores per-user choice lists and shared lists in Redis,
// falling back to JSON files in the data directory when Redis is unavailable.
package userdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sahilchouksey/college-explorer-api/model"
	"github.com/sahilchouksey/college-explorer-api/utils/cache"
	"github.com/sahilchouksey/college-explorer-api/utils/logger"
)

const (
	choicesPrefix = "user:choices:"
	sharePrefix   = "user:share:"

	choicesFile = "user_choices.json"
	sharedFile  = "shared_lists.json"

	DefaultUserName = "Anonymous Student"
)

var (
	ErrNotFound  = errors.New("shared list not found")
	ErrEmptyList = errors.New("cannot share an empty list")
)

type Service struct {
	provider *cache.ClientProvider
	dataDir  string
	now      func() time.Time
	mu       sync.Mutex
}

func NewService(provider *cache.ClientProvider, dataDir string) *Service {
	return &Service{provider: provider, dataDir: dataDir, now: time.Now}
}

// Choices returns the saved list for uid, or an empty list.
func (s *Service) Choices(ctx context.Context, uid string) (model.ChoiceList, error) {
	var choices model.ChoiceList
	found, err := s.redisGet(ctx, choicesPrefix+uid, &choices)
	if err == nil && found {
		return choices, nil
	}
	if err != nil {
		logger.Warn().Err(err).Str("uid", uid).Msg("redis unavailable for user choices, using file fallback")
	}

	all, err := readFileMap[model.ChoiceList](s.path(choicesFile))
	if err != nil {
		return nil, err
	}
	if list, ok := all[uid]; ok {
		return list, nil
	}
	return model.ChoiceList{}, nil
}

// SaveChoices replaces the list for uid.
func (s *Service) SaveChoices(ctx context.Context, uid string, choices model.ChoiceList) error {
	if choices == nil {
		choices = model.ChoiceList{}
	}
	err := s.redisSet(ctx, choicesPrefix+uid, choices)
	if err == nil {
		return nil
	}
	logger.Warn().Err(err).Str("uid", uid).Msg("redis unavailable for user choices, writing file fallback")

	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := readFileMap[model.ChoiceList](s.path(choicesFile))
	if err != nil {
		return err
	}
	all[uid] = choices
	return writeFileMap(s.path(choicesFile), all)
}

// Share publishes a snapshot of choices and returns its share ID.
func (s *Service) Share(ctx context.Context, choices model.ChoiceList, userName string) (string, error) {
	if len(choices) == 0 {
		return "", ErrEmptyList
	}
	if strings.TrimSpace(userName) == "" {
		userName = DefaultUserName
	}
	list := model.SharedList{
		Choices:   choices,
		UserName:  userName,
		CreatedAt: s.now().UTC().Format(time.RFC3339),
	}
	id := NewShareID()

	err := s.redisSet(ctx, sharePrefix+id, list)
	if err == nil {
		return id, nil
	}
	logger.Warn().Err(err).Msg("redis unavailable for shared lists, writing file fallback")

	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := readFileMap[model.SharedList](s.path(sharedFile))
	if err != nil {
		return "", err
	}
	all[id] = list
	if err := writeFileMap(s.path(sharedFile), all); err != nil {
		return "", err
	}
	return id, nil
}

// Shared returns the list published under id.
func (s *Service) Shared(ctx context.Context, id string) (model.SharedList, error) {
	var list model.SharedList
	found, err := s.redisGet(ctx, sharePrefix+id, &list)
	if err == nil && found {
		return list, nil
	}
	if err != nil {
		logger.Warn().Err(err).Str("share_id", id).Msg("redis unavailable for shared lists, using file fallback")
	}

	all, err := readFileMap[model.SharedList](s.path(sharedFile))
	if err != nil {
		return model.SharedList{}, err
	}
	if list, ok := all[id]; ok {
		return list, nil
	}
	return model.SharedList{}, ErrNotFound
}

// NewShareID returns 12 lowercase hex characters.
func NewShareID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func (s *Service) path(name string) string {
	return filepath.Join(s.dataDir, name)
}

func (s *Service) redisGet(ctx context.Context, key string, dest interface{}) (bool, error) {
	client, err := s.provider.Client()
	if err != nil {
		return false, err
	}
	raw, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Service) redisSet(ctx context.Context, key string, value interface{}) error {
	client, err := s.provider.Client()
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, data, 0).Err()
}

func readFileMap[T any](path string) (map[string]T, error) {
	out := map[string]T{}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		logger.Warn().Err(err).Str("file", filepath.Base(path)).Msg("ignoring corrupt fallback file")
		return map[string]T{}, nil
	}
	return out, nil
}

func writeFileMap[T any](path string, data map[string]T) error {
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return os.Rename(tmp, path)
}
