package service

import (
	"context"
	"time"

	"github.com/wricardo/mcp-training/robotcrusher/game/auth"
	"github.com/wricardo/mcp-training/robotcrusher/game/engine"
	"github.com/wricardo/mcp-training/robotcrusher/game/scoreboard"
)

// GameService defines all game-related operations
type GameService interface {
	// Players
	SignIn(ctx context.Context, username, password string) (*SignInResult, error)

	// Match Management
	CreateMatch(ctx context.Context, token, rulesName string) (*MatchInfo, error)
	GetMatch(ctx context.Context, matchID string) (*MatchInfo, error)
	ListMatches(ctx context.Context) ([]*MatchInfo, error)
	DeleteMatch(ctx context.Context, matchID string) error

	// Game Operations
	Move(ctx context.Context, matchID, direction string) (*MoveResult, error)
	GetState(ctx context.Context, matchID string) (*engine.Snapshot, error)
	Subscribe(ctx context.Context, matchID string) (<-chan engine.Snapshot, func(), error)

	// Rules
	ListRules(ctx context.Context) ([]*RulesInfo, error)
	LoadRules(ctx context.Context, rulesName string) (*engine.Rules, error)
	SaveRules(ctx context.Context, rulesName string, rules *engine.Rules) error

	// Results
	Leaderboard(ctx context.Context, limit int) ([]scoreboard.Result, error)
}

// SessionManager defines match storage operations
type SessionManager interface {
	Create(id string, spec MatchSpec) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
}

// ConfigManager handles rule set loading
type ConfigManager interface {
	LoadRules(name string) (*engine.Rules, error)
	ListRules() ([]*RulesInfo, error)
	GetDefault() *engine.Rules
	SaveRules(name string, rules *engine.Rules) error
}

// ResultStore records finished matches
type ResultStore interface {
	Record(ctx context.Context, result scoreboard.Result) error
	Top(ctx context.Context, limit int) ([]scoreboard.Result, error)
}

// Authenticator signs players in and resolves their tokens
type Authenticator interface {
	SignIn(ctx context.Context, username, password string) (*auth.Identity, string, error)
	Identify(token string) (*auth.Identity, error)
}

// MatchSpec is everything a session manager needs to build a match
type MatchSpec struct {
	RulesID string
	Rules   *engine.Rules
	Player  string
	Options []engine.Option
}

// Session is a match held by the server
type Session struct {
	ID             string
	Match          *engine.Match
	RulesID        string
	Player         string
	CreatedAt      time.Time
	LastAccessedAt time.Time
}
