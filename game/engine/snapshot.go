package engine

import (
	"sort"
	"sync"
	"time"
)

// ObjectView is a copy of an object as observers see it
type ObjectView struct {
	ID          string     `json:"id"`
	Category    Category   `json:"category"`
	Type        ObjectType `json:"type"`
	Description string     `json:"description"`
	Destroyed   bool       `json:"destroyed,omitempty"`
	Owner       string     `json:"owner,omitempty"`
	Allegiance  Allegiance `json:"allegiance,omitempty"`
	Power       int        `json:"power,omitempty"`
	Tags        []RobotTag `json:"tags,omitempty"`
}

// CellView is a copy of one cell
type CellView struct {
	Index   int         `json:"index"`
	X       int         `json:"x"`
	Y       int         `json:"y"`
	Content *ObjectView `json:"content,omitempty"`
}

// Snapshot is an immutable copy of a match taken after a state change
type Snapshot struct {
	MatchID     string     `json:"match_id"`
	Version     uint64     `json:"version"`
	State       MatchState `json:"state"`
	Level       int        `json:"level"`
	Kills       int        `json:"kills"`
	PlayerID    string     `json:"player_id,omitempty"`
	PlayerName  string     `json:"player_name,omitempty"`
	PlayerPower int        `json:"player_power"`
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	Cells       []CellView `json:"cells"`
	TakenAt     time.Time  `json:"taken_at"`
}

func viewOf(obj *Object) *ObjectView {
	if obj == nil {
		return nil
	}
	view := &ObjectView{
		ID:          obj.ID,
		Category:    obj.Category,
		Type:        obj.Type,
		Description: obj.Description,
		Destroyed:   obj.Destroyed,
	}
	if obj.IsRobot() {
		view.Owner = obj.Robot.Owner
		view.Allegiance = obj.Robot.Allegiance
		view.Power = obj.Robot.Power
		for tag, set := range obj.Robot.Tags {
			if set {
				view.Tags = append(view.Tags, tag)
			}
		}
		sort.Slice(view.Tags, func(i, j int) bool { return view.Tags[i] < view.Tags[j] })
	}
	return view
}

// Glyph is the single character used for an object in text renderings
func (v *ObjectView) Glyph() rune {
	if v == nil {
		return '.'
	}
	switch v.Type {
	case Wall:
		return '#'
	case Crusher:
		return 'X'
	case PlayerRobot:
		return 'P'
	case EnemyRobot:
		return 'E'
	case Juice:
		return '+'
	case MegaJuice:
		return '*'
	}
	return '?'
}

// Rows renders the grid as one string per row
func (s Snapshot) Rows() []string {
	rows := make([]string, s.Height)
	for y := 0; y < s.Height; y++ {
		row := make([]rune, s.Width)
		for x := 0; x < s.Width; x++ {
			row[x] = s.Cells[y*s.Width+x].Content.Glyph()
		}
		rows[y] = string(row)
	}
	return rows
}

func gridView(g *Grid) (int, int, []CellView) {
	if g == nil {
		return 0, 0, nil
	}
	cells := make([]CellView, len(g.Cells))
	for i, cell := range g.Cells {
		cells[i] = CellView{Index: cell.Index, X: cell.X, Y: cell.Y, Content: viewOf(cell.Content)}
	}
	return g.Width, g.Height, cells
}

// Feed publishes snapshots to subscribers. A new subscriber receives the latest
// snapshot right away. Slow subscribers only ever see the most recent value.
type Feed struct {
	mu     sync.Mutex
	last   *Snapshot
	subs   map[int]chan Snapshot
	nextID int
	closed bool
}

// NewFeed creates an empty feed
func NewFeed() *Feed {
	return &Feed{subs: make(map[int]chan Snapshot)}
}

// Publish stores s as the latest value and offers it to every subscriber
func (f *Feed) Publish(s Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.last = &s
	for _, ch := range f.subs {
		offer(ch, s)
	}
}

// Subscribe returns a channel of snapshots and a function that cancels the subscription
func (f *Feed) Subscribe() (<-chan Snapshot, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if f.closed {
		close(ch)
		return ch, func() {}
	}
	if f.last != nil {
		ch <- *f.last
	}

	id := f.nextID
	f.nextID++
	f.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if sub, ok := f.subs[id]; ok {
				delete(f.subs, id)
				close(sub)
			}
		})
	}
}

// Last returns the most recently published snapshot
func (f *Feed) Last() (Snapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.last == nil {
		return Snapshot{}, false
	}
	return *f.last, true
}

// Close ends every subscription
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}

// offer replaces any undelivered value in ch with s
func offer(ch chan Snapshot, s Snapshot) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}
