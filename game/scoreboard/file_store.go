package scoreboard

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// FileStore keeps one JSON file per finished match, named by match id and start time
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFileStore creates a file-backed store, creating dir when it does not exist
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Record writes the result, replacing an earlier one with the same match id and start time
func (fs *FileStore) Record(_ context.Context, result Result) error {
	if err := validate(result); err != nil {
		return err
	}
	if strings.ContainsAny(result.MatchID, `/\.`) {
		return fmt.Errorf("%w: match id %q", ErrInvalidResult, result.MatchID)
	}
	result.Rank = 0

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	// Write through a temp file so readers never see a partial result
	path := fs.path(result.MatchID, result.StartedAt)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write result file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write result file: %w", err)
	}
	return nil
}

// Load returns the result recorded for the match started at startedAt
func (fs *FileStore) Load(matchID string, startedAt time.Time) (*Result, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.load(fs.path(matchID, startedAt))
}

// Top returns the best results in leaderboard order
func (fs *FileStore) Top(_ context.Context, limit int) ([]Result, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read results directory: %w", err)
	}

	var results []Result
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		result, err := fs.load(filepath.Join(fs.dir, entry.Name()))
		if err != nil {
			log.WithError(err).WithField("file", entry.Name()).Warn("skipping result file")
			continue
		}
		results = append(results, *result)
	}

	return Rank(results, limit), nil
}

// Close implements Store
func (fs *FileStore) Close() error {
	return nil
}

func (fs *FileStore) load(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read result file: %w", err)
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, nil
}

func (fs *FileStore) path(matchID string, startedAt time.Time) string {
	name := fmt.Sprintf("%s-%d.json", strings.ToLower(matchID), startedAt.UnixMilli())
	return filepath.Join(fs.dir, name)
}
