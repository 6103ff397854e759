package datastore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/sahilchouksey/college-explorer-api/model"
	"github.com/sahilchouksey/college-explorer-api/utils/logger"
	"golang.org/x/sync/errgroup"
)

const (
	legacyCollegesFile = "colleges.json"
	examsFile          = "exams.json"
	ledgerFile         = "admin_updates.json"
)

var shardPattern = regexp.MustCompile(`(?i)_colleges\.json$`)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Shard files come in several top-level shapes. They are tried in this order:
// a bare array, {"institutions": [...]}, {"colleges": [...]}, and finally the
// first array-valued key of the object in document order.
var shardArrayKeys = []string{"institutions", "colleges"}

var errNoRecordArray = errors.New("no record array found")

// IsShardFile reports whether name follows the <Region>_Colleges.json convention.
func IsShardFile(name string) bool {
	return shardPattern.MatchString(name)
}

// ShardFiles lists the shard files in dir, sorted by name.
func ShardFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !IsShardFile(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// LoadAllRegionShards reads every shard file in dir and returns the
// deduplicated college list. A malformed shard is logged and skipped; only a
// failure to list the directory is returned as an error. When no shard files
// exist the legacy colleges.json is used instead.
func LoadAllRegionShards(dir string) ([]model.College, error) {
	files, err := ShardFiles(dir)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn().Str("dir", dir).Msg("data directory does not exist")
		return []model.College{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list shard files: %w", err)
	}

	if len(files) == 0 {
		legacy, err := loadShard(filepath.Join(dir, legacyCollegesFile))
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				logger.Warn().Err(err).Str("file", legacyCollegesFile).Msg("failed to read legacy college file")
			}
			return []model.College{}, nil
		}
		return DedupeByID(legacy), nil
	}

	results := make([][]model.College, len(files))
	var g errgroup.Group
	g.SetLimit(8)
	for i, file := range files {
		g.Go(func() error {
			records, err := loadShard(file)
			if err != nil {
				logger.Warn().Err(err).Str("file", filepath.Base(file)).Msg("skipping unreadable shard file")
				return nil
			}
			results[i] = records
			return nil
		})
	}
	_ = g.Wait()

	var combined []model.College
	for _, r := range results {
		combined = append(combined, r...)
	}
	return DedupeByID(combined), nil
}

func loadShard(path string) ([]model.College, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	records, err := DecodeShard(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return records, nil
}

// DecodeShard parses one shard file payload into valid college records.
// Individual records that cannot be decoded, or lack an id or name, are dropped.
func DecodeShard(data []byte) ([]model.College, error) {
	items, err := recordArray(data, shardArrayKeys...)
	if err != nil {
		return nil, err
	}
	out := make([]model.College, 0, len(items))
	dropped := 0
	for _, item := range items {
		var c model.College
		if err := json.Unmarshal(item, &c); err != nil || !c.Valid() {
			dropped++
			continue
		}
		out = append(out, c)
	}
	if dropped > 0 {
		logger.Debug().Int("dropped", dropped).Msg("dropped invalid shard records")
	}
	return out, nil
}

// DedupeByID keeps one record per ID. When an ID repeats, the record with more
// courses wins; on a tie the first one seen is kept. Output order follows the
// first occurrence of each ID.
func DedupeByID(colleges []model.College) []model.College {
	index := make(map[string]int, len(colleges))
	out := make([]model.College, 0, len(colleges))
	for _, c := range colleges {
		pos, seen := index[c.ID]
		if !seen {
			index[c.ID] = len(out)
			out = append(out, c)
			continue
		}
		if len(c.Courses) > len(out[pos].Courses) {
			out[pos] = c
		}
	}
	return out
}

// LoadExams reads exams.json from dir. A missing file yields an empty list.
func LoadExams(dir string) ([]model.Exam, error) {
	data, err := os.ReadFile(filepath.Join(dir, examsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return []model.Exam{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", examsFile, err)
	}
	items, err := recordArray(data, "exams")
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", examsFile, err)
	}
	exams := make([]model.Exam, 0, len(items))
	for _, item := range items {
		var e model.Exam
		if err := json.Unmarshal(item, &e); err != nil || e.ID == "" {
			continue
		}
		exams = append(exams, e)
	}
	return exams, nil
}

// recordArray extracts the list of records from a JSON payload that is either
// an array or an object holding the array under one of keys, falling back to
// the first array-valued key.
func recordArray(data []byte, keys ...string) ([]json.RawMessage, error) {
	data = bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))
	if len(data) == 0 {
		return nil, errNoRecordArray
	}

	switch data[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
		return items, nil
	case '{':
		fields, err := orderedFields(data)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			for _, f := range fields {
				if f.key == key && isArray(f.value) {
					return decodeArray(f.value)
				}
			}
		}
		for _, f := range fields {
			if isArray(f.value) {
				return decodeArray(f.value)
			}
		}
		return nil, errNoRecordArray
	default:
		return nil, errNoRecordArray
	}
}

type field struct {
	key   string
	value json.RawMessage
}

// orderedFields returns the top-level members of a JSON object in document order.
func orderedFields(data []byte) ([]field, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errNoRecordArray
	}
	var fields []field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		fields = append(fields, field{key: key, value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return fields, nil
}

func isArray(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) > 0 && v[0] == '['
}

func decodeArray(v json.RawMessage) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(v, &items); err != nil {
		return nil, err
	}
	return items, nil
}
