package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Object is anything that can occupy a grid cell
type Object struct {
	ID          string
	Category    Category
	Type        ObjectType
	Description string
	Destroyed   bool

	// Robot is set for objects of the robot category
	Robot *Robot

	// cell is the back-reference maintained by Grid.Place and Grid.Detach, -1 when unplaced
	cell int
}

// Robot carries the robot-specific payload of an Object
type Robot struct {
	Owner      string
	Allegiance Allegiance
	Power      int
	Tags       map[RobotTag]bool
	AccessKey  string
}

func newObject(category Category, objectType ObjectType, description string) *Object {
	return &Object{
		ID:          uuid.NewString(),
		Category:    category,
		Type:        objectType,
		Description: description,
		cell:        -1,
	}
}

// NewWall creates an impassable wall
func NewWall() *Object {
	return newObject(Blocker, Wall, "Wall")
}

// NewCrusher creates the hazard that crushes anything falling or pushed into it
func NewCrusher() *Object {
	return newObject(Interactable, Crusher, "Crusher")
}

// NewJuice creates a small power-up
func NewJuice() *Object {
	return newObject(PowerUp, Juice, "Juice")
}

// NewMegaJuice creates a large power-up
func NewMegaJuice() *Object {
	return newObject(PowerUp, MegaJuice, "Mega Juice")
}

// NewRobot creates a robot of the given allegiance with the given starting power
func NewRobot(name, owner string, allegiance Allegiance, power int) *Object {
	objectType := EnemyRobot
	if allegiance == AllegiancePlayer {
		objectType = PlayerRobot
	}

	obj := newObject(RobotObject, objectType, fmt.Sprintf("%s %s's Robot", name, owner))
	obj.Robot = &Robot{
		Owner:      owner,
		Allegiance: allegiance,
		Power:      power,
		Tags:       make(map[RobotTag]bool),
	}
	return obj
}

// CellIndex returns the index of the cell holding the object, if it is placed
func (o *Object) CellIndex() (int, bool) {
	if o.cell < 0 {
		return -1, false
	}
	return o.cell, true
}

// IsRobot reports whether the object carries a robot payload
func (o *Object) IsRobot() bool {
	return o != nil && o.Category == RobotObject && o.Robot != nil
}

// HasTag reports whether the robot carries the tag
func (o *Object) HasTag(tag RobotTag) bool {
	if !o.IsRobot() {
		return false
	}
	return o.Robot.Tags[tag]
}

// SetTag adds the tag to the robot
func (o *Object) SetTag(tag RobotTag) {
	if !o.IsRobot() {
		return
	}
	if o.Robot.Tags == nil {
		o.Robot.Tags = make(map[RobotTag]bool)
	}
	o.Robot.Tags[tag] = true
}

// ClearTag removes the tag from the robot
func (o *Object) ClearTag(tag RobotTag) {
	if !o.IsRobot() {
		return
	}
	delete(o.Robot.Tags, tag)
}

// AccessKey derives the hex access key bound to a player robot
func AccessKey(objectID, credential string) string {
	sum := sha256.Sum256([]byte(objectID + "/" + credential))
	return hex.EncodeToString(sum[:])
}
