package scoreboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	ErrResultNotFound = errors.New("result not found")
	ErrInvalidResult  = errors.New("invalid result")
)

// DefaultLimit caps leaderboard queries that do not name a limit
const DefaultLimit = 10

// Result is the outcome of a finished match
type Result struct {
	Rank      int       `json:"rank,omitempty"`
	MatchID   string    `json:"match_id"`
	Player    string    `json:"player"`
	Rules     string    `json:"rules"`
	Level     int       `json:"level"`
	Kills     int       `json:"kills"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Store records results and answers leaderboard queries
type Store interface {
	Record(ctx context.Context, result Result) error
	Top(ctx context.Context, limit int) ([]Result, error)
	Close() error
}

func validate(result Result) error {
	if result.MatchID == "" {
		return fmt.Errorf("%w: missing match id", ErrInvalidResult)
	}
	if result.Player == "" {
		return fmt.Errorf("%w: missing player", ErrInvalidResult)
	}
	return nil
}

// less orders results by level, then kills, then the earlier finish
func less(a, b Result) bool {
	if a.Level != b.Level {
		return a.Level > b.Level
	}
	if a.Kills != b.Kills {
		return a.Kills > b.Kills
	}
	return a.EndedAt.Before(b.EndedAt)
}

// Rank sorts results into leaderboard order, keeps the first limit and numbers them from 1
func Rank(results []Result, limit int) []Result {
	if limit <= 0 {
		limit = DefaultLimit
	}
	sort.SliceStable(results, func(i, j int) bool { return less(results[i], results[j]) })
	if len(results) > limit {
		results = results[:limit]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}
