package engine

import (
	"fmt"
	"strings"
)

// Category groups game objects by how they interact with robots
type Category string

const (
	Blocker      Category = "blocker"
	RobotObject  Category = "robot"
	PowerUp      Category = "power-up"
	Interactable Category = "interactable"
)

// ObjectType identifies a concrete kind of game object
type ObjectType string

const (
	Wall        ObjectType = "wall"
	Crusher     ObjectType = "crusher"
	PlayerRobot ObjectType = "player-robot"
	EnemyRobot  ObjectType = "enemy-robot"
	Juice       ObjectType = "juice"
	MegaJuice   ObjectType = "mega-juice"
)

// Allegiance tells which side a robot fights for
type Allegiance string

const (
	AllegiancePlayer Allegiance = "player"
	AllegianceEnemy  Allegiance = "enemy"
)

// RobotTag is a temporary modifier carried by a robot
type RobotTag string

const (
	// Energized robots do not suffer power losses.
	Energized RobotTag = "energized"
)

const (
	DefaultRobotPower     = 9
	DefaultEnemyLifeBonus = -6
	DefaultRetryLimit     = 100
	MinGridSide           = 4
	MaxGridSide           = 64

	DefaultEnemyOwner = "El Computer"
	FirstEnemyName    = "Dudu Prime"
)

// Coords is a 0-indexed (x, y) grid position
type Coords struct {
	X int `json:"x" msgpack:"x"`
	Y int `json:"y" msgpack:"y"`
}

// Cardinal is one of the four move directions
type Cardinal string

const (
	North Cardinal = "N"
	East  Cardinal = "E"
	South Cardinal = "S"
	West  Cardinal = "W"
)

// Directions lists all cardinals in clockwise order starting north
var Directions = []Cardinal{North, East, South, West}

var offsetsByCardinal = map[Cardinal]Coords{
	North: {X: 0, Y: -1},
	East:  {X: 1, Y: 0},
	South: {X: 0, Y: 1},
	West:  {X: -1, Y: 0},
}

// Offset returns the unit offset for the direction
func (c Cardinal) Offset() Coords {
	return offsetsByCardinal[c]
}

// Valid reports whether c is one of the four cardinals
func (c Cardinal) Valid() bool {
	_, ok := offsetsByCardinal[c]
	return ok
}

// ParseCardinal accepts N/E/S/W, the full compass names and up/right/down/left
func ParseCardinal(s string) (Cardinal, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "n", "north", "up":
		return North, nil
	case "e", "east", "right":
		return East, nil
	case "s", "south", "down":
		return South, nil
	case "w", "west", "left":
		return West, nil
	}
	return "", fmt.Errorf("invalid direction %q", s)
}

// MatchState is the lifecycle state of a match
type MatchState string

const (
	StateNotStarted   MatchState = "not-started"
	StateRunning      MatchState = "running"
	StateCountingDown MatchState = "counting-down"
	StateEnded        MatchState = "ended"
)

// Outcome describes how a move request was resolved
type Outcome string

const (
	OutcomeIgnored       Outcome = "ignored"
	OutcomeEdgeJump      Outcome = "edge-jump"
	OutcomeMoved         Outcome = "moved"
	OutcomePushed        Outcome = "pushed"
	OutcomeCrushedEnemy  Outcome = "crushed-enemy"
	OutcomeFellInCrusher Outcome = "fell-in-crusher"
	OutcomeRejected      Outcome = "rejected"
)
