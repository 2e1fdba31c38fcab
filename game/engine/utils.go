package engine

import (
	"errors"
	"fmt"
)

// ErrRetryExhausted is returned when a randomized operation keeps failing
var ErrRetryExhausted = errors.New("retry limit exhausted")

// TryRepeat calls fn until it reports success or limit attempts were made
func TryRepeat(limit int, fn func() bool) error {
	if limit <= 0 {
		limit = DefaultRetryLimit
	}
	for attempt := 0; attempt < limit; attempt++ {
		if fn() {
			return nil
		}
	}
	return fmt.Errorf("%w after %d attempts", ErrRetryExhausted, limit)
}

// CountObjects counts the objects of a specific type in a snapshot
func CountObjects(s Snapshot, objectType ObjectType) int {
	count := 0
	for _, cell := range s.Cells {
		if cell.Content != nil && cell.Content.Type == objectType {
			count++
		}
	}
	return count
}

// ToroidalDistance returns the shortest number of steps between two cells on a wrapping grid
func ToroidalDistance(width, height int, from, to Coords) int {
	dx := from.X - to.X
	if dx < 0 {
		dx = -dx
	}
	dy := from.Y - to.Y
	if dy < 0 {
		dy = -dy
	}
	return min(dx, width-dx) + min(dy, height-dy)
}

// FindObject returns the coordinates of the first object of the given type in a snapshot
func FindObject(s Snapshot, objectType ObjectType) (Coords, bool) {
	for _, cell := range s.Cells {
		if cell.Content != nil && cell.Content.Type == objectType {
			return Coords{X: cell.X, Y: cell.Y}, true
		}
	}
	return Coords{}, false
}
