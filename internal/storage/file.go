package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "guildmirror/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.runs.jsonl (append-only JSON Lines, one run per line)
//
// Once the file holds twice Keep runs it is compacted down to the newest Keep.
type fileStore struct {
	log  logx.Logger
	keep int

	mu sync.Mutex

	path   string
	f      *os.File
	nextID int64
	lines  int
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	runsPath := filepath.Join(dir, base) + ".runs.jsonl"

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var (
		lastID int64
		lines  int
	)
	if err := scanRuns(runsPath, func(r RunRecord) {
		lines++
		lastID = max(lastID, r.ID)
	}); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	f, err := os.OpenFile(runsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &fileStore{
		log:    log,
		keep:   cfg.Keep,
		path:   runsPath,
		f:      f,
		nextID: lastID + 1,
		lines:  lines,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func (s *fileStore) RecordRun(ctx context.Context, rec RunRecord) (int64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return 0, errors.New("runs file closed")
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}
	rec.ID = s.nextID
	if err := json.NewEncoder(s.f).Encode(rec); err != nil {
		return 0, err
	}
	s.nextID++
	s.lines++
	if s.keep > 0 && s.lines >= 2*s.keep {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("runs compact failed", logx.Err(err))
		}
	}
	return rec.ID, nil
}

func (s *fileStore) RecentRuns(ctx context.Context, n int) ([]RunRecord, error) {
	_ = ctx
	if n <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tailLocked(n)
}

// tailLocked returns the last n records, newest first.
func (s *fileStore) tailLocked(n int) ([]RunRecord, error) {
	ring := make([]RunRecord, 0, n)
	err := scanRuns(s.path, func(r RunRecord) {
		if len(ring) == n {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, r)
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	out := make([]RunRecord, len(ring))
	for i, r := range ring {
		out[len(ring)-1-i] = r
	}
	return out, nil
}

func (s *fileStore) compactLocked() error {
	recent, err := s.tailLocked(s.keep)
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	for i := len(recent) - 1; i >= 0; i-- {
		if err := enc.Encode(recent[i]); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = s.f.Close()
	renameErr := os.Rename(tmp, s.path)
	// Reopen even when the rename failed.
	af, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		s.f = nil
		return err
	}
	s.f = af
	if renameErr != nil {
		return renameErr
	}
	s.lines = len(recent)
	return nil
}

// scanRuns calls fn for every well-formed line of path. Corrupt lines
// (a torn write) are skipped.
func scanRuns(path string, fn func(RunRecord)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return decodeRuns(f, fn)
}

func decodeRuns(r io.Reader, fn func(RunRecord)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var rec RunRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		fn(rec)
	}
	return sc.Err()
}
