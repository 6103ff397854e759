package datastore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sahilchouksey/college-explorer-api/model"
	"github.com/sahilchouksey/college-explorer-api/utils/logger"
)

const DefaultSource = "Admin Verified"

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// GenerateCollegeID builds "<slug of name>-<8 hex chars>".
func GenerateCollegeID(name string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if len(slug) > 48 {
		slug = strings.TrimRight(slug[:48], "-")
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	if slug == "" {
		return "college-" + suffix
	}
	return slug + "-" + suffix
}

// SaveCollege records an addition or edit in the ledger, writes it to the
// shared hash and bumps the shared timestamp. A previously deleted ID is
// restored.
func (s *Store) SaveCollege(ctx context.Context, c model.College) (model.College, error) {
	if strings.TrimSpace(c.Name) == "" {
		return model.College{}, ErrInvalidCollege
	}
	// observe cold or stale state before writing over it
	if _, err := s.Colleges(ctx); err != nil {
		return model.College{}, err
	}

	c.ID = strings.TrimSpace(c.ID)
	if c.ID == "" {
		c.ID = GenerateCollegeID(c.Name)
	}
	c.LastUpdated = s.now().UTC().Format(time.RFC3339)
	if strings.TrimSpace(c.Source) == "" {
		c.Source = DefaultSource
	}

	if _, err := s.ledger.Update(func(l *model.Ledger) { l.Upsert(c) }); err != nil {
		return model.College{}, err
	}

	client, err := s.provider.Client()
	if err != nil {
		return model.College{}, err
	}
	data, err := json.Marshal(c)
	if err != nil {
		return model.College{}, fmt.Errorf("failed to encode college %q: %w", c.ID, err)
	}
	if err := client.HSet(ctx, KeyCollegesMap, c.ID, string(data)).Err(); err != nil {
		return model.College{}, fmt.Errorf("failed to write college %q: %w", c.ID, err)
	}
	ts, err := s.bumpTimestamp(ctx, client)
	if err != nil {
		return model.College{}, err
	}

	s.upsertMirror(c, ts)
	logger.Info().Str("id", c.ID).Msg("college saved")
	return c, nil
}

// DeleteCollege tombstones id in the ledger and removes it from the shared
// hash. Deleting an ID twice is harmless.
func (s *Store) DeleteCollege(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrNotFound
	}
	if _, err := s.Colleges(ctx); err != nil {
		return err
	}

	if _, err := s.ledger.Update(func(l *model.Ledger) { l.Tombstone(id) }); err != nil {
		return err
	}

	client, err := s.provider.Client()
	if err != nil {
		return err
	}
	if err := client.HDel(ctx, KeyCollegesMap, id).Err(); err != nil {
		return fmt.Errorf("failed to delete college %q: %w", id, err)
	}
	ts, err := s.bumpTimestamp(ctx, client)
	if err != nil {
		return err
	}

	s.removeFromMirror(id, ts)
	logger.Info().Str("id", id).Msg("college deleted")
	return nil
}

// upsertMirror copies the mirror with c inserted or replaced.
func (s *Store) upsertMirror(c model.College, seen int64) {
	s.mu.RLock()
	current := s.colleges
	s.mu.RUnlock()
	if current == nil {
		// dropped concurrently; the next read reloads from the hash
		return
	}

	next := make([]model.College, 0, len(current)+1)
	replaced := false
	for _, existing := range current {
		if existing.ID == c.ID {
			next = append(next, c)
			replaced = true
			continue
		}
		next = append(next, existing)
	}
	if !replaced {
		next = append(next, c)
	}
	s.publishColleges(next, seen)
}

func (s *Store) removeFromMirror(id string, seen int64) {
	s.mu.RLock()
	current := s.colleges
	s.mu.RUnlock()
	if current == nil {
		// dropped concurrently; the next read reloads from the hash
		return
	}

	next := make([]model.College, 0, len(current))
	for _, existing := range current {
		if existing.ID != id {
			next = append(next, existing)
		}
	}
	s.publishColleges(next, seen)
}
