package engine

import (
	"math"
	"math/rand"
)

// Cell is one square of the grid
type Cell struct {
	Index   int
	X       int
	Y       int
	Content *Object
}

// Grid is a toroidal rectangle of cells stored in row-major order
type Grid struct {
	Width  int
	Height int
	Cells  []Cell
}

// NewGrid creates an empty grid with the given dimensions
func NewGrid(width, height int) *Grid {
	g := &Grid{
		Width:  width,
		Height: height,
		Cells:  make([]Cell, width*height),
	}
	for i := range g.Cells {
		g.Cells[i] = Cell{Index: i, X: i % width, Y: i / width}
	}
	return g
}

// GenerateGrid picks random dimensions until the cell count exceeds minVolume
func GenerateGrid(rng *rand.Rand, minVolume, maxWidth, maxHeight, retryLimit int) (*Grid, error) {
	var width, height int
	err := TryRepeat(retryLimit, func() bool {
		width = max(MinGridSide, int(math.Round(float64(maxWidth)*rng.Float64())))
		height = max(MinGridSide, int(math.Round(float64(maxHeight)*rng.Float64())))
		return width*height > minVolume
	})
	if err != nil {
		return nil, err
	}
	return NewGrid(width, height), nil
}

// CellCount returns width*height
func (g *Grid) CellCount() int {
	return len(g.Cells)
}

// IndexFromCoords returns y*width+x, or -1 when either coordinate is negative.
// Coordinates past the far edges are not checked; callers wrap first.
func (g *Grid) IndexFromCoords(c Coords) int {
	if c.X < 0 || c.Y < 0 {
		return -1
	}
	return c.Y*g.Width + c.X
}

// CoordsFromIndex converts a cell index into coordinates
func (g *Grid) CoordsFromIndex(index int) Coords {
	return Coords{X: index % g.Width, Y: index / g.Width}
}

// Wrap folds a coordinate that stepped one cell off an edge onto the opposite edge.
// It reports whether any wrapping happened.
func (g *Grid) Wrap(c Coords) (Coords, bool) {
	wrapped := false
	if c.X < 0 {
		c.X = g.Width - 1
		wrapped = true
	} else if c.X >= g.Width {
		c.X = 0
		wrapped = true
	}
	if c.Y < 0 {
		c.Y = g.Height - 1
		wrapped = true
	} else if c.Y >= g.Height {
		c.Y = 0
		wrapped = true
	}
	return c, wrapped
}

// Step returns the index one cell away from c in the given direction.
// ok is false when the step crosses an edge and allowEdgeJump is false.
func (g *Grid) Step(c Coords, dir Cardinal, allowEdgeJump bool) (int, bool) {
	offset := dir.Offset()
	target, wrapped := g.Wrap(Coords{X: c.X + offset.X, Y: c.Y + offset.Y})
	if wrapped && !allowEdgeJump {
		return -1, false
	}
	return g.IndexFromCoords(target), true
}

// Content returns the object in the cell at index, nil for empty or off-grid cells
func (g *Grid) Content(index int) *Object {
	if index < 0 || index >= len(g.Cells) {
		return nil
	}
	return g.Cells[index].Content
}

// Place puts obj at c. When the cell is occupied by another object it fails unless
// displaceExisting is set, in which case the occupant is detached but not destroyed.
// Placing an object onto the cell it already occupies succeeds without changes.
func (g *Grid) Place(obj *Object, c Coords, displaceExisting bool) bool {
	index := g.IndexFromCoords(c)
	if obj == nil || index < 0 || index >= len(g.Cells) {
		return false
	}

	occupant := g.Cells[index].Content
	if occupant != nil {
		if occupant.ID == obj.ID {
			return true
		}
		if !displaceExisting {
			return false
		}
		g.Detach(occupant)
	}

	g.Detach(obj)
	g.Cells[index].Content = obj
	obj.cell = index
	return true
}

// Detach removes obj from its cell, if any. The object is not destroyed.
func (g *Grid) Detach(obj *Object) {
	if obj == nil {
		return
	}
	if index, ok := obj.CellIndex(); ok && index < len(g.Cells) && g.Cells[index].Content == obj {
		g.Cells[index].Content = nil
	}
	obj.cell = -1
}

// RandomCoords picks a uniformly random cell
func (g *Grid) RandomCoords(rng *rand.Rand) Coords {
	return g.CoordsFromIndex(rng.Intn(len(g.Cells)))
}

// Robots returns every placed robot in row-major order
func (g *Grid) Robots() []*Object {
	var robots []*Object
	for i := range g.Cells {
		if content := g.Cells[i].Content; content.IsRobot() {
			robots = append(robots, content)
		}
	}
	return robots
}

// Count returns the number of placed objects of the given type
func (g *Grid) Count(objectType ObjectType) int {
	count := 0
	for i := range g.Cells {
		if content := g.Cells[i].Content; content != nil && content.Type == objectType {
			count++
		}
	}
	return count
}
