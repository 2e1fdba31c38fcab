package service

import (
	"time"

	"github.com/wricardo/mcp-training/robotcrusher/game/engine"
)

// MatchInfo provides information about a match
type MatchInfo struct {
	ID             string            `json:"id"`
	RulesID        string            `json:"rules_id"`
	Player         string            `json:"player"`
	State          engine.MatchState `json:"state"`
	Level          int               `json:"level"`
	Kills          int               `json:"kills"`
	CreatedAt      time.Time         `json:"created_at"`
	LastAccessedAt time.Time         `json:"last_accessed_at"`
	Snapshot       *engine.Snapshot  `json:"snapshot,omitempty"`
	Error          string            `json:"error,omitempty"`
}

// MoveResult contains the result of a move request
type MoveResult struct {
	Direction engine.Cardinal `json:"direction"`
	Outcome   engine.Outcome  `json:"outcome"`
	Message   string          `json:"message"`
	Snapshot  engine.Snapshot `json:"snapshot"`
}

// RulesInfo provides information about a rule set
type RulesInfo struct {
	Filename       string `json:"filename,omitempty"`
	RulesID        string `json:"rules_id"` // The identifier to use for match creation
	Name           string `json:"name"`
	Description    string `json:"description"`
	MaxWidth       int    `json:"max_width"`
	MaxHeight      int    `json:"max_height"`
	RobotPower     int    `json:"robot_power"`
	EnemyLifeBonus int    `json:"enemy_life_bonus"`
}

// SignInResult is returned to a player who signed in
type SignInResult struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

var outcomeMessages = map[engine.Outcome]string{
	engine.OutcomeIgnored:       "Move ignored: input is locked or the match is not running",
	engine.OutcomeEdgeJump:      "Jumped across the edge of the map",
	engine.OutcomeMoved:         "Moved",
	engine.OutcomePushed:        "Pushed the enemy",
	engine.OutcomeCrushedEnemy:  "Pushed the enemy into the crusher",
	engine.OutcomeFellInCrusher: "Fell into the crusher",
	engine.OutcomeRejected:      "Blocked",
}

// OutcomeMessage describes an outcome for people
func OutcomeMessage(outcome engine.Outcome) string {
	if msg, ok := outcomeMessages[outcome]; ok {
		return msg
	}
	return string(outcome)
}
