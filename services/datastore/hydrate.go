package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sahilchouksey/college-explorer-api/model"
	"github.com/sahilchouksey/college-explorer-api/utils/logger"
)

// hsetChunkSize bounds the number of fields sent in one HSET.
const hsetChunkSize = 1000

// bumpRetries bounds optimistic retries when writers race on data:last_update.
const bumpRetries = 5

const hydrateTimeout = 2 * time.Minute

// Hashes are assembled under these keys before being renamed into place.
const (
	stagingColleges = KeyCollegesMap + ":staging"
	stagingExams    = KeyExamsMap + ":staging"
)

// Hydrate loads the data directory into Redis and the mirror. Without force it
// is a no-op while the sentinel is present. Concurrent callers in this process
// share a single run. When Redis cannot be reached the disk data is still
// loaded into the mirror and the error is returned.
func (s *Store) Hydrate(ctx context.Context, force bool) error {
	if !force {
		hot, err := s.sentinelSet(ctx)
		if err != nil {
			if ferr := s.fallbackToDisk(err); ferr != nil {
				logger.Error().Err(ferr).Msg("disk fallback failed")
			}
			return err
		}
		if hot {
			s.state.Store(int32(StateHot))
			return nil
		}
	}

	ch := s.group.DoChan("hydrate", func() (interface{}, error) {
		// runs to completion even if the first caller stops waiting
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hydrateTimeout)
		defer cancel()
		if !force {
			// a flight that finished since the check above may have hydrated
			if hot, err := s.sentinelSet(flightCtx); err == nil && hot {
				s.state.Store(int32(StateHot))
				return nil, nil
			}
		}
		return nil, s.hydrate(flightCtx)
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Shared {
			logger.Debug().Msg("joined in-flight hydration")
		}
		return res.Err
	}
}

// Invalidate clears the shared hashes and the mirror, then hydrates again.
func (s *Store) Invalidate(ctx context.Context) error {
	client, err := s.provider.Client()
	if err != nil {
		return err
	}
	if err := client.Del(ctx, KeyCollegesMap, KeyExamsMap, KeyInitialized).Err(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	s.drop()
	s.state.Store(int32(StateCold))
	logger.Info().Msg("cache invalidated")
	return s.Hydrate(ctx, true)
}

func (s *Store) sentinelSet(ctx context.Context) (bool, error) {
	client, err := s.provider.Client()
	if err != nil {
		return false, err
	}
	return s.isHot(ctx, client)
}

// diskSnapshot is the data directory with the ledger read alongside it.
type diskSnapshot struct {
	base     []model.College
	ledger   *model.Ledger
	colleges []model.College
	exams    []model.Exam
}

func (s *Store) readDisk() (diskSnapshot, error) {
	base, err := LoadAllRegionShards(s.dataDir)
	if err != nil {
		return diskSnapshot{}, err
	}
	ledger, err := s.ledger.Load()
	if err != nil {
		return diskSnapshot{}, err
	}
	exams, err := LoadExams(s.dataDir)
	if err != nil {
		return diskSnapshot{}, err
	}
	return diskSnapshot{
		base:     base,
		ledger:   ledger,
		colleges: ledger.Apply(base),
		exams:    exams,
	}, nil
}

func (s *Store) hydrate(ctx context.Context) (err error) {
	start := time.Now()
	s.state.Store(int32(StateHydrating))
	defer func() {
		if err != nil {
			s.state.Store(int32(StateCold))
			logger.Error().Err(err).Msg("cache hydration failed")
		}
	}()

	snap, err := s.readDisk()
	if err != nil {
		return err
	}
	s.noExamsOnDisk.Store(len(snap.exams) == 0)

	ts, err := s.writeSnapshot(ctx, snap)
	if err != nil {
		s.adoptDisk(snap)
		return err
	}

	// the mirror only becomes visible together with the timestamp it was
	// written under, so a concurrent staleness check cannot discard it
	s.publishColleges(snap.colleges, ts)
	s.publishExams(snap.exams, ts)
	s.state.Store(int32(StateHot))

	logger.Info().
		Int("colleges", len(snap.colleges)).
		Int("exams", len(snap.exams)).
		Int("added", len(snap.ledger.Added)).
		Int("deleted", len(snap.ledger.Deleted)).
		Dur("took", time.Since(start)).
		Msg("cache hydrated")
	return nil
}

// writeSnapshot replaces the shared hashes with snap, bumps data:last_update
// and sets the sentinel. It returns the new timestamp. Each hash is built under
// a staging key and renamed into place, so readers never see a partial hash.
func (s *Store) writeSnapshot(ctx context.Context, snap diskSnapshot) (int64, error) {
	client, err := s.provider.Client()
	if err != nil {
		return 0, err
	}

	visible := make([]model.College, 0, len(snap.base))
	for _, c := range snap.base {
		if !snap.ledger.IsDeleted(c.ID) {
			visible = append(visible, c)
		}
	}
	if err := client.Del(ctx, stagingColleges).Err(); err != nil {
		return 0, fmt.Errorf("failed to reset %s: %w", stagingColleges, err)
	}
	if err := writeCollegesChunked(ctx, client, stagingColleges, visible); err != nil {
		return 0, err
	}
	if err := applyLedger(ctx, client, stagingColleges, snap.ledger); err != nil {
		return 0, err
	}
	if err := s.swapHash(ctx, client, stagingColleges, KeyCollegesMap, len(snap.colleges) > 0); err != nil {
		return 0, err
	}

	if err := s.writeExams(ctx, client, snap.exams); err != nil {
		return 0, err
	}

	ts, err := s.bumpTimestamp(ctx, client)
	if err != nil {
		return 0, err
	}
	if err := client.Set(ctx, KeyInitialized, "1", s.ttl).Err(); err != nil {
		return 0, fmt.Errorf("failed to set cache sentinel: %w", err)
	}
	return ts, nil
}

// swapHash renames staging over key and sets its TTL. With filled false the
// staging key was never created and key is removed instead.
func (s *Store) swapHash(ctx context.Context, client *redis.Client, staging, key string, filled bool) error {
	if !filled {
		if err := client.Del(ctx, staging, key).Err(); err != nil {
			return fmt.Errorf("failed to reset %s: %w", key, err)
		}
		return nil
	}
	_, err := client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Rename(ctx, staging, key)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", key, err)
	}
	return nil
}

// writeCollegesChunked writes records into the hash at key in fixed-size HSETs.
// Tombstoned records are filtered out by the caller before this runs.
func writeCollegesChunked(ctx context.Context, client *redis.Client, key string, colleges []model.College) error {
	for startIdx := 0; startIdx < len(colleges); startIdx += hsetChunkSize {
		end := startIdx + hsetChunkSize
		if end > len(colleges) {
			end = len(colleges)
		}
		fields, err := collegeFields(colleges[startIdx:end])
		if err != nil {
			return err
		}
		if err := client.HSet(ctx, key, fields).Err(); err != nil {
			return fmt.Errorf("failed to write colleges %d-%d: %w", startIdx, end, err)
		}
	}
	return nil
}

// applyLedger removes tombstoned IDs from the hash at key and writes the overrides.
func applyLedger(ctx context.Context, client *redis.Client, key string, ledger *model.Ledger) error {
	if len(ledger.Deleted) > 0 {
		if err := client.HDel(ctx, key, ledger.Deleted...).Err(); err != nil {
			return fmt.Errorf("failed to remove deleted colleges: %w", err)
		}
	}
	added := make([]model.College, 0, len(ledger.Added))
	for _, c := range ledger.Added {
		if !ledger.IsDeleted(c.ID) {
			added = append(added, c)
		}
	}
	if len(added) == 0 {
		return nil
	}
	return writeCollegesChunked(ctx, client, key, added)
}

func (s *Store) writeExams(ctx context.Context, client *redis.Client, exams []model.Exam) error {
	if err := client.Del(ctx, stagingExams).Err(); err != nil {
		return fmt.Errorf("failed to reset %s: %w", stagingExams, err)
	}
	if len(exams) > 0 {
		fields := make(map[string]interface{}, len(exams))
		for _, e := range exams {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("failed to encode exam %q: %w", e.ID, err)
			}
			fields[e.ID] = string(data)
		}
		if err := client.HSet(ctx, stagingExams, fields).Err(); err != nil {
			return fmt.Errorf("failed to write exams: %w", err)
		}
	}
	return s.swapHash(ctx, client, stagingExams, KeyExamsMap, len(exams) > 0)
}

// bumpTimestamp stores max(now, current+1) in data:last_update so successive
// bumps strictly increase even when two writers share a millisecond.
func (s *Store) bumpTimestamp(ctx context.Context, client *redis.Client) (int64, error) {
	var next int64
	txf := func(tx *redis.Tx) error {
		cur, err := readTimestamp(ctx, tx)
		if err != nil {
			return err
		}
		next = s.now().UnixMilli()
		if next <= cur {
			next = cur + 1
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, KeyLastUpdate, next, 0)
			return nil
		})
		return err
	}

	for i := 0; i < bumpRetries; i++ {
		err := client.Watch(ctx, txf, KeyLastUpdate)
		if err == nil {
			return next, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return 0, fmt.Errorf("failed to bump %s: %w", KeyLastUpdate, err)
	}
	return 0, fmt.Errorf("failed to bump %s: too much contention", KeyLastUpdate)
}

func collegeFields(colleges []model.College) (map[string]interface{}, error) {
	fields := make(map[string]interface{}, len(colleges))
	for _, c := range colleges {
		data, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("failed to encode college %q: %w", c.ID, err)
		}
		fields[c.ID] = string(data)
	}
	return fields, nil
}
