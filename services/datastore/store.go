package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sahilchouksey/college-explorer-api/model"
	"github.com/sahilchouksey/college-explorer-api/utils/cache"
	"github.com/sahilchouksey/college-explorer-api/utils/logger"
	"golang.org/x/sync/singleflight"
)

// Redis keys owned by the data store.
const (
	KeyCollegesMap = "colleges:map"
	KeyExamsMap    = "exams:map"
	KeyLastUpdate  = "data:last_update"
	KeyInitialized = "data:initialized"
)

const DefaultTTL = time.Hour

var (
	ErrNotFound       = errors.New("record not found")
	ErrInvalidCollege = errors.New("college name is required")

	errMirrorDropped = errors.New("mirror was replaced during hydration")
)

// CacheState tracks this process's view of the shared cache.
type CacheState int32

const (
	StateCold CacheState = iota
	StateHydrating
	StateHot
)

func (s CacheState) String() string {
	switch s {
	case StateHydrating:
		return "hydrating"
	case StateHot:
		return "hot"
	default:
		return "cold"
	}
}

type Options struct {
	DataDir string
	// LedgerPath defaults to DataDir/admin_updates.json.
	LedgerPath string
	TTL        time.Duration
	Now        func() time.Time
}

// Store serves college and exam data from an in-process mirror backed by the
// shared Redis hashes, hydrating both from disk when the cache is cold.
// Slices returned by its read methods are shared and must not be modified.
type Store struct {
	provider *cache.ClientProvider
	dataDir  string
	ledger   *LedgerFile
	ttl      time.Duration
	now      func() time.Time

	group singleflight.Group
	state atomic.Int32
	// set when the last local hydration found no exams on disk, so an empty
	// exams:map is expected rather than a sign of a lost hash
	noExamsOnDisk atomic.Bool

	mu       sync.RWMutex
	colleges []model.College
	index    map[string]int
	exams    []model.Exam
	lastSeen int64
	filters  Filters
	stats    StateStats
	// the mirror was loaded from disk while Redis was unreachable
	fromDisk bool
}

func NewStore(provider *cache.ClientProvider, opts Options) *Store {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.LedgerPath == "" {
		opts.LedgerPath = filepath.Join(opts.DataDir, ledgerFile)
	}
	return &Store{
		provider: provider,
		dataDir:  opts.DataDir,
		ledger:   NewLedgerFile(opts.LedgerPath),
		ttl:      opts.TTL,
		now:      opts.Now,
	}
}

func (s *Store) State() CacheState {
	return CacheState(s.state.Load())
}

func (s *Store) DataDir() string {
	return s.dataDir
}

func (s *Store) Ledger() *LedgerFile {
	return s.ledger
}

// Colleges returns every college. A mirror that is older than the shared
// timestamp is discarded and reloaded from Redis, or from disk when the
// cache is cold. When Redis cannot serve the read the data directory is.
func (s *Store) Colleges(ctx context.Context) ([]model.College, error) {
	if colleges, ok := s.freshColleges(ctx); ok {
		return colleges, nil
	}
	colleges, err := s.sharedColleges(ctx)
	if err == nil {
		return colleges, nil
	}
	if ferr := s.fallbackToDisk(err); ferr != nil {
		return nil, ferr
	}
	return s.mirrorColleges(), nil
}

func (s *Store) sharedColleges(ctx context.Context) ([]model.College, error) {
	client, err := s.provider.Client()
	if err != nil {
		return nil, err
	}
	hot, err := s.isHot(ctx, client)
	if err != nil {
		return nil, err
	}
	if !hot {
		if err := s.Hydrate(ctx, false); err != nil {
			return nil, err
		}
		if colleges, ok := s.hydratedColleges(); ok {
			return colleges, nil
		}
		// hydrated elsewhere; read the hash below
	}

	ts, err := readTimestamp(ctx, client)
	if err != nil {
		return nil, err
	}
	raw, err := client.HGetAll(ctx, KeyCollegesMap).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", KeyCollegesMap, err)
	}
	if len(raw) == 0 {
		// sentinel outlived the hash
		if err := s.Hydrate(ctx, true); err != nil {
			return nil, err
		}
		if colleges, ok := s.hydratedColleges(); ok {
			return colleges, nil
		}
		return nil, errMirrorDropped
	}

	colleges := decodeColleges(raw)
	s.publishColleges(colleges, ts)
	s.state.Store(int32(StateHot))
	return s.mirrorColleges(), nil
}

// CollegeByID resolves one college from the mirror, then Redis.
func (s *Store) CollegeByID(ctx context.Context, id string) (model.College, error) {
	if _, ok := s.freshColleges(ctx); ok {
		if c, found := s.mirrorLookup(id); found {
			return c, nil
		}
	}

	c, err := s.sharedCollege(ctx, id)
	if err == nil || errors.Is(err, ErrNotFound) {
		return c, err
	}
	if ferr := s.fallbackToDisk(err); ferr != nil {
		return model.College{}, ferr
	}
	if c, found := s.mirrorLookup(id); found {
		return c, nil
	}
	return model.College{}, ErrNotFound
}

func (s *Store) sharedCollege(ctx context.Context, id string) (model.College, error) {
	client, err := s.provider.Client()
	if err != nil {
		return model.College{}, err
	}
	hot, err := s.isHot(ctx, client)
	if err != nil {
		return model.College{}, err
	}
	if !hot {
		if err := s.Hydrate(ctx, false); err != nil {
			return model.College{}, err
		}
		if _, ok := s.hydratedColleges(); ok {
			if c, found := s.mirrorLookup(id); found {
				return c, nil
			}
		}
	}

	raw, err := client.HGet(ctx, KeyCollegesMap, id).Result()
	if errors.Is(err, redis.Nil) {
		return model.College{}, ErrNotFound
	}
	if err != nil {
		return model.College{}, fmt.Errorf("failed to read college %q: %w", id, err)
	}
	var c model.College
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return model.College{}, fmt.Errorf("failed to decode college %q: %w", id, err)
	}
	return c, nil
}

// CollegesByIDs resolves ids in order, skipping the ones that do not exist.
func (s *Store) CollegesByIDs(ctx context.Context, ids []string) ([]model.College, error) {
	out := make([]model.College, 0, len(ids))
	for _, id := range ids {
		c, err := s.CollegeByID(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Exams returns every exam. An empty exam hash while the cache is hot forces
// a re-hydration instead of serving an empty list.
func (s *Store) Exams(ctx context.Context) ([]model.Exam, error) {
	if exams, ok := s.freshExams(ctx); ok {
		return exams, nil
	}
	exams, err := s.sharedExams(ctx)
	if err == nil {
		return exams, nil
	}
	if ferr := s.fallbackToDisk(err); ferr != nil {
		return nil, ferr
	}
	return s.mirrorExams(), nil
}

func (s *Store) sharedExams(ctx context.Context) ([]model.Exam, error) {
	client, err := s.provider.Client()
	if err != nil {
		return nil, err
	}
	hot, err := s.isHot(ctx, client)
	if err != nil {
		return nil, err
	}
	if !hot {
		if err := s.Hydrate(ctx, false); err != nil {
			return nil, err
		}
		if exams, ok := s.hydratedExams(); ok {
			return exams, nil
		}
	}

	ts, err := readTimestamp(ctx, client)
	if err != nil {
		return nil, err
	}
	raw, err := client.HGetAll(ctx, KeyExamsMap).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", KeyExamsMap, err)
	}
	if len(raw) == 0 && !s.noExamsOnDisk.Load() {
		logger.Warn().Msg("exam hash empty while cache is hot, re-hydrating")
		if err := s.Hydrate(ctx, true); err != nil {
			return nil, err
		}
		if exams, ok := s.hydratedExams(); ok {
			return exams, nil
		}
		return nil, errMirrorDropped
	}

	exams := decodeExams(raw)
	s.publishExams(exams, ts)
	return s.mirrorExams(), nil
}

// ExamByID looks an exam up by ID.
func (s *Store) ExamByID(ctx context.Context, id string) (model.Exam, error) {
	exams, err := s.Exams(ctx)
	if err != nil {
		return model.Exam{}, err
	}
	for _, e := range exams {
		if e.ID == id {
			return e, nil
		}
	}
	return model.Exam{}, ErrNotFound
}

// Filters returns the dropdown values computed at the last mirror refresh.
func (s *Store) Filters(ctx context.Context) (Filters, error) {
	if _, err := s.Colleges(ctx); err != nil {
		return Filters{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters, nil
}

// StateStats returns the per-state counts computed at the last mirror refresh.
func (s *Store) StateStats(ctx context.Context) (StateStats, error) {
	if _, err := s.Colleges(ctx); err != nil {
		return StateStats{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats, nil
}

// Aggregate computes the dashboard numbers over colleges and exams.
func (s *Store) Aggregate(ctx context.Context) (Aggregate, error) {
	colleges, err := s.Colleges(ctx)
	if err != nil {
		return Aggregate{}, err
	}
	exams, err := s.Exams(ctx)
	if err != nil {
		return Aggregate{}, err
	}
	return ComputeAggregate(colleges, exams), nil
}

// Status is a snapshot of the shared cache used by health checks and cachectl.
type Status struct {
	State       string        `json:"state"`
	Colleges    int64         `json:"colleges"`
	Exams       int64         `json:"exams"`
	LastUpdate  int64         `json:"lastUpdate"`
	SentinelTTL time.Duration `json:"sentinelTtl"`
	Mirrored    int           `json:"mirrored"`
}

func (s *Store) Status(ctx context.Context) (Status, error) {
	client, err := s.provider.Client()
	if err != nil {
		return Status{}, err
	}
	pipe := client.Pipeline()
	colleges := pipe.HLen(ctx, KeyCollegesMap)
	exams := pipe.HLen(ctx, KeyExamsMap)
	ttl := pipe.TTL(ctx, KeyInitialized)
	if _, err := pipe.Exec(ctx); err != nil {
		return Status{}, fmt.Errorf("failed to read cache status: %w", err)
	}
	ts, err := readTimestamp(ctx, client)
	if err != nil {
		return Status{}, err
	}

	s.mu.RLock()
	mirrored := len(s.colleges)
	s.mu.RUnlock()

	return Status{
		State:       s.State().String(),
		Colleges:    colleges.Val(),
		Exams:       exams.Val(),
		LastUpdate:  ts,
		SentinelTTL: ttl.Val(),
		Mirrored:    mirrored,
	}, nil
}

// freshColleges returns the mirror when it is loaded and not older than the
// shared timestamp. A failed timestamp read keeps serving the mirror.
func (s *Store) freshColleges(ctx context.Context) ([]model.College, bool) {
	s.mu.RLock()
	colleges := s.colleges
	s.mu.RUnlock()
	if colleges == nil {
		return nil, false
	}
	if !s.checkFresh(ctx) {
		return nil, false
	}
	return colleges, true
}

func (s *Store) freshExams(ctx context.Context) ([]model.Exam, bool) {
	s.mu.RLock()
	exams := s.exams
	s.mu.RUnlock()
	if exams == nil {
		return nil, false
	}
	if !s.checkFresh(ctx) {
		return nil, false
	}
	return exams, true
}

// checkFresh compares the mirror against data:last_update and drops the
// mirror when another writer has moved the timestamp past it.
func (s *Store) checkFresh(ctx context.Context) bool {
	client, err := s.provider.Client()
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, serving in-process mirror")
		return true
	}
	shared, err := readTimestamp(ctx, client)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to read shared timestamp, serving in-process mirror")
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fromDisk {
		// Redis answers again; rebuild from the shared cache but keep the
		// disk copy in case that fails
		return false
	}
	if shared > s.lastSeen {
		logger.Debug().Int64("shared", shared).Int64("seen", s.lastSeen).Msg("mirror is stale, dropping")
		s.dropLocked()
		return false
	}
	return true
}

func (s *Store) isHot(ctx context.Context, client *redis.Client) (bool, error) {
	n, err := client.Exists(ctx, KeyInitialized).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check cache sentinel: %w", err)
	}
	if n == 0 {
		s.state.CompareAndSwap(int32(StateHot), int32(StateCold))
		return false, nil
	}
	return true, nil
}

func (s *Store) mirrorColleges() []model.College {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.colleges == nil {
		return []model.College{}
	}
	return s.colleges
}

func (s *Store) mirrorExams() []model.Exam {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.exams == nil {
		return []model.Exam{}
	}
	return s.exams
}

func (s *Store) mirrorLookup(id string) (model.College, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.index[id]
	if !ok {
		return model.College{}, false
	}
	return s.colleges[pos], true
}

// hydratedColleges returns the mirror when it was built from the shared cache.
func (s *Store) hydratedColleges() ([]model.College, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.colleges == nil || s.fromDisk {
		return nil, false
	}
	return s.colleges, true
}

func (s *Store) hydratedExams() ([]model.Exam, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.exams == nil || s.fromDisk {
		return nil, false
	}
	return s.exams, true
}

// fallbackToDisk fills the empty parts of the mirror from the data directory
// after cause kept Redis from serving a read. The sentinel stays unset, so the
// first read after Redis recovers hydrates it.
func (s *Store) fallbackToDisk(cause error) error {
	s.mu.RLock()
	loaded := s.colleges != nil && s.exams != nil
	s.mu.RUnlock()
	if loaded {
		return nil
	}

	snap, err := s.readDisk()
	if err != nil {
		return errors.Join(cause, err)
	}
	s.adoptDisk(snap)
	logger.Warn().Err(cause).Int("colleges", len(snap.colleges)).Msg("redis unavailable, serving data directory")
	return nil
}

// adoptDisk installs snap wherever the mirror is empty and marks the mirror
// as disk-sourced.
func (s *Store) adoptDisk(snap diskSnapshot) {
	sortColleges(snap.colleges)
	view := buildCollegeView(snap.colleges)
	sortExams(snap.exams)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.colleges == nil {
		s.setCollegesLocked(view)
	}
	if s.exams == nil {
		s.exams = snap.exams
	}
	s.fromDisk = true
}

type collegeView struct {
	colleges []model.College
	index    map[string]int
	filters  Filters
	stats    StateStats
}

func buildCollegeView(colleges []model.College) collegeView {
	return collegeView{
		colleges: colleges,
		index:    indexColleges(colleges),
		filters:  ComputeFilters(colleges),
		stats:    ComputeStateStats(colleges),
	}
}

func (s *Store) setCollegesLocked(v collegeView) {
	s.colleges = v.colleges
	s.index = v.index
	s.filters = v.filters
	s.stats = v.stats
}

// publishColleges replaces the college mirror and its aggregates.
func (s *Store) publishColleges(colleges []model.College, seen int64) {
	sortColleges(colleges)
	view := buildCollegeView(colleges)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCollegesLocked(view)
	s.fromDisk = false
	if seen > s.lastSeen {
		s.lastSeen = seen
	}
}

func (s *Store) publishExams(exams []model.Exam, seen int64) {
	sortExams(exams)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.exams = exams
	s.fromDisk = false
	if seen > s.lastSeen {
		s.lastSeen = seen
	}
}

func (s *Store) drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked()
}

func (s *Store) dropLocked() {
	s.colleges = nil
	s.index = nil
	s.exams = nil
	s.filters = Filters{}
	s.stats = StateStats{}
	s.fromDisk = false
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readTimestamp(ctx context.Context, client stringGetter) (int64, error) {
	v, err := client.Get(ctx, KeyLastUpdate).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", KeyLastUpdate, err)
	}
	ts, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", KeyLastUpdate, v, err)
	}
	return ts, nil
}

func decodeColleges(raw map[string]string) []model.College {
	out := make([]model.College, 0, len(raw))
	for id, v := range raw {
		var c model.College
		if err := json.Unmarshal([]byte(v), &c); err != nil {
			logger.Warn().Err(err).Str("id", id).Msg("skipping undecodable cached college")
			continue
		}
		out = append(out, c)
	}
	return out
}

func decodeExams(raw map[string]string) []model.Exam {
	out := make([]model.Exam, 0, len(raw))
	for id, v := range raw {
		var e model.Exam
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			logger.Warn().Err(err).Str("id", id).Msg("skipping undecodable cached exam")
			continue
		}
		out = append(out, e)
	}
	return out
}

func sortColleges(colleges []model.College) {
	sort.SliceStable(colleges, func(i, j int) bool { return colleges[i].ID < colleges[j].ID })
}

func sortExams(exams []model.Exam) {
	sort.SliceStable(exams, func(i, j int) bool { return exams[i].ID < exams[j].ID })
}

func indexColleges(colleges []model.College) map[string]int {
	index := make(map[string]int, len(colleges))
	for i, c := range colleges {
		index[c.ID] = i
	}
	return index
}
