package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/robotcrusher/game/engine"
	"github.com/wricardo/mcp-training/robotcrusher/game/scoreboard"
)

var (
	ErrMatchNotFound    = errors.New("match not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidDirection = errors.New("invalid direction")
	ErrRulesNotFound    = errors.New("rules not found")
)

// Option configures the game service
type Option func(*gameServiceImpl)

// WithResults records finished matches in store
func WithResults(store ResultStore) Option {
	return func(s *gameServiceImpl) { s.results = store }
}

// WithAuthenticator sets how players sign in and how tokens are resolved
func WithAuthenticator(a Authenticator) Option {
	return func(s *gameServiceImpl) { s.auth = a }
}

// WithMatchOptions adds engine options to every new match, such as an animator or audio output
func WithMatchOptions(fn func() []engine.Option) Option {
	return func(s *gameServiceImpl) { s.matchOptions = fn }
}

// WithClock replaces the clock used for result timestamps
func WithClock(now func() time.Time) Option {
	return func(s *gameServiceImpl) { s.now = now }
}

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions     SessionManager
	configs      ConfigManager
	results      ResultStore
	auth         Authenticator
	matchOptions func() []engine.Option
	now          func() time.Time
	mu           sync.RWMutex
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, configs ConfigManager, opts ...Option) GameService {
	s := &gameServiceImpl{
		sessions: sessions,
		configs:  configs,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignIn registers or verifies a player and returns a token for match creation
func (s *gameServiceImpl) SignIn(ctx context.Context, username, password string) (*SignInResult, error) {
	if s.auth == nil {
		return nil, fmt.Errorf("%w: sign-in is not configured", ErrUnauthorized)
	}

	identity, token, err := s.auth.SignIn(ctx, username, password)
	if err != nil {
		return nil, err
	}

	return &SignInResult{Username: identity.Name, Token: token}, nil
}

// CreateMatch starts a new match for the player identified by token
func (s *gameServiceImpl) CreateMatch(ctx context.Context, token, rulesName string) (*MatchInfo, error) {
	if s.auth == nil {
		return nil, fmt.Errorf("%w: sign-in is not configured", ErrUnauthorized)
	}
	identity, err := s.auth.Identify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	rules, rulesID, err := s.resolveRules(rulesName)
	if err != nil {
		return nil, err
	}

	opts := []engine.Option{engine.WithSession(identity)}
	if s.matchOptions != nil {
		opts = append(opts, s.matchOptions()...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Let session manager generate a proper 4-character ID
	sess, err := s.sessions.Create("", MatchSpec{
		RulesID: rulesID,
		Rules:   rules,
		Player:  identity.Name,
		Options: opts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}

	if _, err := sess.Match.Start(ctx); err != nil {
		s.sessions.Delete(sess.ID)
		return nil, fmt.Errorf("failed to start match: %w", err)
	}

	go s.watch(sess)

	log.WithFields(log.Fields{
		"match":  sess.ID,
		"player": sess.Player,
		"rules":  rulesID,
	}).Info("match created")

	return infoOf(sess), nil
}

// GetMatch retrieves match information
func (s *gameServiceImpl) GetMatch(ctx context.Context, matchID string) (*MatchInfo, error) {
	sess, err := s.get(matchID)
	if err != nil {
		return nil, err
	}
	return infoOf(sess), nil
}

// ListMatches returns all matches held by the server
func (s *gameServiceImpl) ListMatches(ctx context.Context) ([]*MatchInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*MatchInfo, 0, len(sessions))
	for _, sess := range sessions {
		info := infoOf(sess)
		// Keep listings light
		info.Snapshot = nil
		result = append(result, info)
	}
	return result, nil
}

// DeleteMatch stops and removes a match
func (s *gameServiceImpl) DeleteMatch(ctx context.Context, matchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sessions.Delete(matchID); err != nil {
		return fmt.Errorf("%w: %s", ErrMatchNotFound, matchID)
	}
	return nil
}

// Move moves the player robot of a match one step
func (s *gameServiceImpl) Move(ctx context.Context, matchID, direction string) (*MoveResult, error) {
	dir, err := engine.ParseCardinal(direction)
	if err != nil {
		return nil, fmt.Errorf("%w: %q (use up, down, left, right or N, E, S, W)", ErrInvalidDirection, direction)
	}

	sess, err := s.get(matchID)
	if err != nil {
		return nil, err
	}

	outcome := engine.OutcomeIgnored
	if player := sess.Match.Player(); player != nil {
		outcome, err = sess.Match.Move(ctx, player, dir)
		if err != nil {
			return nil, fmt.Errorf("move failed: %w", err)
		}
	}

	return &MoveResult{
		Direction: dir,
		Outcome:   outcome,
		Message:   OutcomeMessage(outcome),
		Snapshot:  sess.Match.Snapshot(),
	}, nil
}

// GetState returns the latest snapshot of a match
func (s *gameServiceImpl) GetState(ctx context.Context, matchID string) (*engine.Snapshot, error) {
	sess, err := s.get(matchID)
	if err != nil {
		return nil, err
	}
	snapshot := sess.Match.Snapshot()
	return &snapshot, nil
}

// Subscribe streams snapshots of a match until cancel is called or the match is removed
func (s *gameServiceImpl) Subscribe(ctx context.Context, matchID string) (<-chan engine.Snapshot, func(), error) {
	sess, err := s.get(matchID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := sess.Match.Subscribe()
	return ch, cancel, nil
}

// ListRules returns the available rule sets
func (s *gameServiceImpl) ListRules(ctx context.Context) ([]*RulesInfo, error) {
	return s.configs.ListRules()
}

// LoadRules loads a rule set by name
func (s *gameServiceImpl) LoadRules(ctx context.Context, rulesName string) (*engine.Rules, error) {
	rules, _, err := s.resolveRules(rulesName)
	return rules, err
}

// SaveRules stores a rule set under rulesName
func (s *gameServiceImpl) SaveRules(ctx context.Context, rulesName string, rules *engine.Rules) error {
	return s.configs.SaveRules(rulesName, rules)
}

// Leaderboard returns the best finished matches
func (s *gameServiceImpl) Leaderboard(ctx context.Context, limit int) ([]scoreboard.Result, error) {
	if s.results == nil {
		return []scoreboard.Result{}, nil
	}
	results, err := s.results.Top(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	if results == nil {
		results = []scoreboard.Result{}
	}
	return results, nil
}

// get looks a session up and marks it as accessed
func (s *gameServiceImpl) get(matchID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(matchID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMatchNotFound, matchID)
	}
	s.sessions.UpdateLastAccessed(sess.ID)
	return sess, nil
}

// resolveRules loads rulesName, or the default rules when it is empty
func (s *gameServiceImpl) resolveRules(rulesName string) (*engine.Rules, string, error) {
	if rulesName == "" {
		rules := s.configs.GetDefault()
		return rules, rules.Name, nil
	}

	rules, err := s.configs.LoadRules(rulesName)
	if err == nil {
		return rules, rulesName, nil
	}

	// Provide helpful error message with available options
	if available, listErr := s.configs.ListRules(); listErr == nil && len(available) > 0 {
		ids := make([]string, 0, len(available))
		for _, info := range available {
			ids = append(ids, info.RulesID)
		}
		return nil, "", fmt.Errorf("%w: '%s'. Available rules: %v", ErrRulesNotFound, rulesName, ids)
	}
	return nil, "", fmt.Errorf("%w: '%s': %v", ErrRulesNotFound, rulesName, err)
}

// watch records the result once the match ends. It returns when the match feed closes.
func (s *gameServiceImpl) watch(sess *Session) {
	snapshots, cancel := sess.Match.Subscribe()
	defer cancel()

	for snapshot := range snapshots {
		if snapshot.State != engine.StateEnded {
			continue
		}

		logger := log.WithFields(log.Fields{
			"match":  sess.ID,
			"player": sess.Player,
			"level":  snapshot.Level,
			"kills":  snapshot.Kills,
		})
		logger.Info("match ended")

		if s.results != nil {
			result := scoreboard.Result{
				MatchID:   sess.ID,
				Player:    sess.Player,
				Rules:     sess.RulesID,
				Level:     snapshot.Level,
				Kills:     snapshot.Kills,
				StartedAt: sess.CreatedAt,
				EndedAt:   s.now(),
			}
			if err := s.results.Record(context.Background(), result); err != nil {
				logger.WithError(err).Warn("failed to record result")
			}
		}
		return
	}
}

func infoOf(sess *Session) *MatchInfo {
	snapshot := sess.Match.Snapshot()
	info := &MatchInfo{
		ID:             sess.ID,
		RulesID:        sess.RulesID,
		Player:         sess.Player,
		State:          snapshot.State,
		Level:          snapshot.Level,
		Kills:          snapshot.Kills,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		Snapshot:       &snapshot,
	}
	if err := sess.Match.Err(); err != nil {
		info.Error = err.Error()
	}
	return info
}
