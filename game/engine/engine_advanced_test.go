package engine

import (
	"math/rand"
	"sync"
	"testing"
	"time"
)

type eventRecorder struct {
	events []Event
}

func (r *eventRecorder) HandleEvent(event Event) {
	r.events = append(r.events, event)
}

type orderListener struct {
	name  string
	order *[]string
}

func (l orderListener) HandleEvent(Event) {
	*l.order = append(*l.order, l.name)
}

// sliceListener is not comparable and therefore never deduplicated
type sliceListener []int

func (sliceListener) HandleEvent(Event) {}

func TestAdjustPower(t *testing.T) {
	tests := []struct {
		name      string
		power     int
		energized bool
		cost      Cost
		expected  int
		destroyed bool
	}{
		{"move", 9, false, Fixed(-1), 8, false},
		{"gain", 9, false, Fixed(3), 12, false},
		{"energized ignores loss", 9, true, Fixed(-2), 9, false},
		{"energized still gains", 9, true, Fixed(3), 12, false},
		{"drops to zero", 1, false, Fixed(-1), 0, true},
		{"drops below zero unclamped", 1, false, Fixed(-2), -1, true},
		{"energized at one survives", 1, true, Fixed(-5), 1, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			bus := NewBus()
			events := &eventRecorder{}
			bus.Subscribe(events, KindRobotDestroyed)

			robot := NewRobot("r", "o", AllegianceEnemy, test.power)
			if test.energized {
				robot.SetTag(Energized)
			}

			AdjustPower(bus, robot, test.cost)

			if robot.Robot.Power != test.expected {
				t.Errorf("Expected power %d, got %d", test.expected, robot.Robot.Power)
			}
			if robot.Destroyed != test.destroyed {
				t.Errorf("Expected destroyed=%v, got %v", test.destroyed, robot.Destroyed)
			}
			wantEvents := 0
			if test.destroyed {
				wantEvents = 1
			}
			if len(events.events) != wantEvents {
				t.Errorf("Expected %d events, got %d", wantEvents, len(events.events))
			}
		})
	}
}

func TestAdjustPower_DestroyedOnlyOnce(t *testing.T) {
	bus := NewBus()
	events := &eventRecorder{}
	bus.Subscribe(events, AllEvents)

	robot := NewRobot("r", "o", AllegianceEnemy, 2)
	AdjustPower(bus, robot, Fixed(-2))
	AdjustPower(bus, robot, Fixed(-1))
	AdjustPower(bus, robot, Fixed(1))
	AdjustPower(bus, robot, Fixed(-1))

	if len(events.events) != 1 {
		t.Fatalf("Expected exactly one RobotDestroyed, got %d", len(events.events))
	}
	if e, ok := events.events[0].(RobotDestroyed); !ok || e.Robot != robot {
		t.Errorf("Unexpected event %#v", events.events[0])
	}
}

func TestAdjustPower_IgnoresNonRobots(t *testing.T) {
	if delta := AdjustPower(NewBus(), NewWall(), Fixed(-5)); delta != 0 {
		t.Errorf("Expected no change for walls, got %d", delta)
	}
}

func TestDefaultCosts(t *testing.T) {
	costs := DefaultCosts(rand.New(rand.NewSource(9)))

	fixed := map[Action]int{
		ActionMove:          -1,
		ActionJumpEdge:      0,
		ActionWait:          -1,
		ActionBrace:         -2,
		ActionPush:          1,
		ActionGetPushed:     -1,
		ActionDestroyEnemy:  3,
		ActionCrushEnemy:    3,
		ActionFellInCrusher: -2,
	}
	for action, expected := range fixed {
		if got := costs.For(action).Resolve(); got != expected {
			t.Errorf("%s: expected %d, got %d", action, expected, got)
		}
	}

	for i := 0; i < 200; i++ {
		if v := costs.For(ActionConsumeJuice).Resolve(); v < 3 || v > 5 {
			t.Fatalf("Juice out of range: %d", v)
		}
		if v := costs.For(ActionConsumeMegaJuice).Resolve(); v < 5 || v > 9 {
			t.Fatalf("Mega juice out of range: %d", v)
		}
	}

	if got := costs.For(Action("unknown")).Resolve(); got != 0 {
		t.Errorf("Expected unknown action to cost 0, got %d", got)
	}
}

func TestRandomCostEvaluatedPerApplication(t *testing.T) {
	calls := 0
	cost := Random(func() int {
		calls++
		return -1
	})

	robot := NewRobot("r", "o", AllegiancePlayer, 9)
	AdjustPower(nil, robot, cost)
	AdjustPower(nil, robot, cost)

	if calls != 2 {
		t.Errorf("Expected generator to run per application, got %d calls", calls)
	}
	if robot.Robot.Power != 7 {
		t.Errorf("Expected power 7, got %d", robot.Robot.Power)
	}
}

func TestBus_DispatchOrderAndFilters(t *testing.T) {
	bus := NewBus()
	var order []string

	bus.Subscribe(orderListener{name: "all", order: &order}, AllEvents)
	bus.Subscribe(orderListener{name: "crushed", order: &order}, KindRobotCrushed)
	bus.Subscribe(orderListener{name: "over", order: &order}, KindGameOver)

	bus.Dispatch(RobotCrushed{})
	bus.Dispatch(GameOver{})
	bus.Dispatch(RobotDestroyed{})

	expected := []string{"all", "crushed", "all", "over", "all"}
	if len(order) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, order)
	}
	for i := range expected {
		if order[i] != expected[i] {
			t.Errorf("Position %d: expected %s, got %s", i, expected[i], order[i])
		}
	}
}

func TestBus_DuplicateSubscriptionsIgnored(t *testing.T) {
	bus := NewBus()
	events := &eventRecorder{}

	bus.Subscribe(events, KindGameOver)
	bus.Subscribe(events, KindGameOver)
	bus.Subscribe(events, AllEvents)

	if bus.Len() != 2 {
		t.Errorf("Expected 2 subscriptions, got %d", bus.Len())
	}

	bus.Dispatch(GameOver{})
	if len(events.events) != 2 {
		t.Errorf("Expected delivery once per distinct filter, got %d", len(events.events))
	}

	// Non-comparable listeners cannot be matched and are always added
	bus.Subscribe(sliceListener{1}, KindGameOver)
	bus.Subscribe(sliceListener{1}, KindGameOver)
	if bus.Len() != 4 {
		t.Errorf("Expected 4 subscriptions, got %d", bus.Len())
	}

	bus.Subscribe(nil, AllEvents)
	if bus.Len() != 4 {
		t.Error("Expected nil listener to be ignored")
	}
}

type cascadingListener struct {
	bus   *Bus
	order *[]string
}

func (l *cascadingListener) HandleEvent(event Event) {
	*l.order = append(*l.order, string(event.Kind()))
	if _, ok := event.(RobotDestroyed); ok {
		l.bus.Dispatch(GameOver{})
	}
	*l.order = append(*l.order, "done:"+string(event.Kind()))
}

func TestBus_NestedDispatchIsSynchronous(t *testing.T) {
	bus := NewBus()
	var order []string
	bus.Subscribe(&cascadingListener{bus: bus, order: &order}, AllEvents)

	bus.Dispatch(RobotDestroyed{})

	expected := []string{"robot-destroyed", "game-over", "done:game-over", "done:robot-destroyed"}
	if len(order) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, order)
	}
	for i := range expected {
		if order[i] != expected[i] {
			t.Errorf("Position %d: expected %s, got %s", i, expected[i], order[i])
		}
	}
}

func TestManualScheduler(t *testing.T) {
	s := NewManualScheduler()
	var fired []string

	a := s.After(100*time.Millisecond, func() { fired = append(fired, "a") })
	s.After(50*time.Millisecond, func() { fired = append(fired, "b") })
	s.After(200*time.Millisecond, func() { fired = append(fired, "c") })

	s.Cancel(a)
	if s.Pending() != 2 {
		t.Errorf("Expected 2 pending, got %d", s.Pending())
	}

	// Freed slot is reused
	if slot := s.After(10*time.Millisecond, func() { fired = append(fired, "d") }); slot != a {
		t.Errorf("Expected slot %d to be reused, got %d", a, slot)
	}

	s.Advance(100 * time.Millisecond)
	if len(fired) != 2 || fired[0] != "d" || fired[1] != "b" {
		t.Errorf("Expected [d b], got %v", fired)
	}

	s.CancelAll()
	s.Advance(time.Second)
	if len(fired) != 2 {
		t.Errorf("Expected cancelled callbacks not to fire, got %v", fired)
	}
}

func TestTimerScheduler(t *testing.T) {
	s := NewTimerScheduler()

	var wg sync.WaitGroup
	wg.Add(1)
	s.After(time.Millisecond, wg.Done)

	cancelled := s.After(time.Hour, func() { t.Error("Cancelled callback fired") })
	s.Cancel(cancelled)

	wg.Wait()

	if slot := s.After(time.Hour, func() {}); slot != cancelled && slot != 0 {
		t.Errorf("Expected a freed slot to be reused, got %d", slot)
	}
	s.CancelAll()
	if s.Pending() != 0 {
		t.Errorf("Expected no pending timers, got %d", s.Pending())
	}
}

func TestFeed_ReplaysLastValue(t *testing.T) {
	feed := NewFeed()

	if _, ok := feed.Last(); ok {
		t.Error("Expected no value before the first publish")
	}

	feed.Publish(Snapshot{Version: 1})
	feed.Publish(Snapshot{Version: 2})

	ch, cancel := feed.Subscribe()
	defer cancel()

	if s := <-ch; s.Version != 2 {
		t.Errorf("Expected late subscriber to receive version 2, got %d", s.Version)
	}

	feed.Publish(Snapshot{Version: 3})
	if s := <-ch; s.Version != 3 {
		t.Errorf("Expected version 3, got %d", s.Version)
	}
}

func TestFeed_SlowSubscriberSeesLatest(t *testing.T) {
	feed := NewFeed()
	ch, cancel := feed.Subscribe()

	for v := uint64(1); v <= 5; v++ {
		feed.Publish(Snapshot{Version: v})
	}

	if s := <-ch; s.Version != 5 {
		t.Errorf("Expected only the latest snapshot, got version %d", s.Version)
	}

	cancel()
	cancel()
	if _, open := <-ch; open {
		t.Error("Expected channel closed after cancel")
	}

	feed.Close()
	closed, _ := feed.Subscribe()
	if _, open := <-closed; open {
		t.Error("Expected subscriptions on a closed feed to be closed")
	}
}

func TestSnapshotCopiesState(t *testing.T) {
	tm := newTestMatch(t)
	tm.arena(4, 4)
	player := tm.putPlayer(t, 1, 2, 7)
	player.SetTag(Energized)

	s := tm.Snapshot()
	player.Robot.Power = 1

	if s.Width != 4 || s.Height != 4 || len(s.Cells) != 16 {
		t.Fatalf("Unexpected dimensions %dx%d with %d cells", s.Width, s.Height, len(s.Cells))
	}
	view := s.Cells[9].Content
	if view == nil || view.ID != player.ID {
		t.Fatal("Expected player view at index 9")
	}
	if view.Power != 7 || s.PlayerPower != 7 {
		t.Errorf("Expected snapshot to keep power 7, got %d/%d", view.Power, s.PlayerPower)
	}
	if len(view.Tags) != 1 || view.Tags[0] != Energized {
		t.Errorf("Expected Energized tag in view, got %v", view.Tags)
	}
	if s.PlayerName != "ada" {
		t.Errorf("Expected player name ada, got %q", s.PlayerName)
	}
	if pos, ok := FindObject(s, PlayerRobot); !ok || pos != (Coords{X: 1, Y: 2}) {
		t.Errorf("Expected to find player at (1,2), got %+v", pos)
	}
}

func TestSnapshotRows(t *testing.T) {
	tm := newTestMatch(t)
	tm.arena(4, 3)
	tm.put(t, NewWall(), 0, 0)
	tm.put(t, NewCrusher(), 3, 2)
	tm.putPlayer(t, 1, 1, 9)
	tm.putEnemy(t, 2, 1, 9)
	tm.put(t, NewJuice(), 0, 2)

	rows := tm.Snapshot().Rows()
	expected := []string{"#...", ".PE.", "+..X"}
	if len(rows) != len(expected) {
		t.Fatalf("Expected %d rows, got %d", len(expected), len(rows))
	}
	for i := range expected {
		if rows[i] != expected[i] {
			t.Errorf("Row %d: expected %q, got %q", i, expected[i], rows[i])
		}
	}
}
