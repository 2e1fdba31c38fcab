package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ErrMatchEnded is returned by Start on a match whose game is over
var ErrMatchEnded = errors.New("match has ended")

// Engine provides the main interface for match operations
type Engine interface {
	// Lifecycle
	Start(ctx context.Context) (*Object, error)
	State() MatchState
	Err() error

	// Movement
	Move(ctx context.Context, robot *Object, dir Cardinal) (Outcome, error)

	// Observation
	Snapshot() Snapshot
	Subscribe() (<-chan Snapshot, func())

	// Progress
	Level() int
	Kills() int
	Rules() *Rules
}

// Match is a single game: one grid, one player robot and the enemies it fights.
// All state is guarded by mu. Animations and timers run without holding it.
type Match struct {
	mu sync.Mutex

	id    string
	rules *Rules
	rng   *rand.Rand
	costs CostTable

	grid *Grid
	bus  *Bus
	feed *Feed

	scheduler Scheduler
	animator  Animator
	anchors   AnchorResolver
	audio     AudioPlayer
	session   SessionProvider

	started      bool
	running      bool
	ended        bool
	inputLocked  bool
	resolving    bool
	countingDown bool

	level          int
	enemyKills     int
	enemyLifeBonus int
	introPressure  int
	version        uint64

	player *Object
	epoch  int
	err    error

	log *log.Entry
}

// Option configures a Match
type Option func(*Match)

// WithID sets the match id used in logs and snapshots
func WithID(id string) Option {
	return func(m *Match) { m.id = id }
}

// WithRules replaces the default rule set
func WithRules(rules *Rules) Option {
	return func(m *Match) {
		if rules != nil {
			m.rules = rules
		}
	}
}

// WithRand sets the random source used for generation and random costs
func WithRand(rng *rand.Rand) Option {
	return func(m *Match) {
		if rng != nil {
			m.rng = rng
		}
	}
}

// WithScheduler sets the scheduler for timed side effects
func WithScheduler(s Scheduler) Option {
	return func(m *Match) {
		if s != nil {
			m.scheduler = s
		}
	}
}

// WithAnimator sets the animation collaborator
func WithAnimator(a Animator) Option {
	return func(m *Match) {
		if a != nil {
			m.animator = a
		}
	}
}

// WithAnchors sets the anchor resolver
func WithAnchors(r AnchorResolver) Option {
	return func(m *Match) {
		if r != nil {
			m.anchors = r
		}
	}
}

// WithAudio sets the audio collaborator
func WithAudio(a AudioPlayer) Option {
	return func(m *Match) {
		if a != nil {
			m.audio = a
		}
	}
}

// WithSession sets the provider of the player's identity
func WithSession(s SessionProvider) Option {
	return func(m *Match) {
		if s != nil {
			m.session = s
		}
	}
}

// WithCosts replaces the cost table
func WithCosts(costs CostTable) Option {
	return func(m *Match) {
		if costs != nil {
			m.costs = costs
		}
	}
}

// NewMatch creates a match that has not started yet
func NewMatch(opts ...Option) *Match {
	m := &Match{
		id:        uuid.NewString(),
		rules:     DefaultRules(),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		bus:       NewBus(),
		feed:      NewFeed(),
		scheduler: NewTimerScheduler(),
		animator:  NopAnimator{},
		anchors:   GridAnchors{},
		audio:     NopAudio{},
		session:   StaticSession{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.costs == nil {
		m.costs = DefaultCosts(m.rng)
	}
	m.enemyLifeBonus = m.rules.EnemyLifeBonus
	m.introPressure = 66
	m.inputLocked = true
	m.log = log.WithField("match", m.id)

	listener := &matchListener{m: m}
	m.bus.Subscribe(listener, KindRobotDestroyed)
	m.bus.Subscribe(listener, KindRobotCrushed)
	m.bus.Subscribe(listener, KindGameOver)
	return m
}

// ID returns the match id
func (m *Match) ID() string {
	return m.id
}

// Bus exposes the event bus so callers can observe match events.
// Listeners run synchronously with the match lock held and must not call back into the match.
func (m *Match) Bus() *Bus {
	return m.bus
}

// Start generates the first map, spawns the player and opens input
func (m *Match) Start(ctx context.Context) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.ended {
		return nil, ErrMatchEnded
	}
	if m.started {
		return m.player, nil
	}

	if err := m.generateMap(); err != nil {
		return nil, m.fail(err)
	}
	if m.grid.Count(EnemyRobot) < 1 {
		if _, err := m.spawnEnemy(FirstEnemyName, DefaultEnemyOwner); err != nil {
			return nil, m.fail(err)
		}
	}
	m.buildMusicPressure()

	player, err := m.spawnPlayer()
	if err != nil {
		return nil, m.fail(err)
	}

	m.started = true
	m.running = true
	m.level = 1
	m.unlockInput()
	m.publish()

	m.log.WithFields(log.Fields{
		"player": player.ID,
		"width":  m.grid.Width,
		"height": m.grid.Height,
	}).Info("match started")
	return player, nil
}

// State returns the lifecycle state
func (m *Match) State() MatchState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Match) stateLocked() MatchState {
	switch {
	case m.ended:
		return StateEnded
	case !m.started:
		return StateNotStarted
	case m.countingDown:
		return StateCountingDown
	default:
		return StateRunning
	}
}

// Err returns the error that halted the match, if any
func (m *Match) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Level returns the current level, starting at 1
func (m *Match) Level() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

// Kills returns the number of enemies destroyed or crushed
func (m *Match) Kills() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enemyKills
}

// EnemyLifeBonus returns the power offset applied to newly spawned enemies
func (m *Match) EnemyLifeBonus() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enemyLifeBonus
}

// InputLocked reports whether move requests are currently ignored
func (m *Match) InputLocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inputLocked || m.resolving
}

// Rules returns the rule set of the match
func (m *Match) Rules() *Rules {
	return m.rules
}

// Player returns the current player robot, nil before start or after it was destroyed
func (m *Match) Player() *Object {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.player
}

// Snapshot returns a copy of the current match
func (m *Match) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Subscribe streams snapshots, starting with the latest one
func (m *Match) Subscribe() (<-chan Snapshot, func()) {
	return m.feed.Subscribe()
}

// Close cancels pending timers and ends every snapshot subscription
func (m *Match) Close() {
	m.mu.Lock()
	m.cancelTimers()
	m.inputLocked = true
	m.running = false
	m.mu.Unlock()
	m.feed.Close()
}

func (m *Match) snapshotLocked() Snapshot {
	width, height, cells := gridView(m.grid)
	s := Snapshot{
		MatchID: m.id,
		Version: m.version,
		State:   m.stateLocked(),
		Level:   m.level,
		Kills:   m.enemyKills,
		Width:   width,
		Height:  height,
		Cells:   cells,
		TakenAt: time.Now(),
	}
	if m.player != nil {
		s.PlayerID = m.player.ID
		s.PlayerName = m.player.Robot.Owner
		s.PlayerPower = m.player.Robot.Power
	}
	return s
}

// publish must be called with mu held
func (m *Match) publish() {
	m.version++
	m.feed.Publish(m.snapshotLocked())
}

func (m *Match) lockInput() {
	m.inputLocked = true
}

// unlockInput reopens input only while the game is running
func (m *Match) unlockInput() {
	if m.running {
		m.inputLocked = false
	}
}

// after schedules fn to run under the match lock. Callbacks scheduled before the
// last cancelTimers are dropped even if their timer already fired.
func (m *Match) after(delay time.Duration, fn func()) int {
	epoch := m.epoch
	return m.scheduler.After(delay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.epoch != epoch {
			return
		}
		fn()
	})
}

func (m *Match) cancelTimers() {
	m.epoch++
	m.scheduler.CancelAll()
}

// fail records a fatal error and halts the match
func (m *Match) fail(err error) error {
	if m.err == nil {
		m.err = err
	}
	m.log.WithError(err).Error("match halted")
	m.cancelTimers()
	m.inputLocked = true
	m.running = false
	m.countingDown = false
	m.ended = true
	m.publish()
	return err
}

// generateMap replaces the grid with a new one holding walls and a crusher
func (m *Match) generateMap() error {
	grid, err := GenerateGrid(m.rng, m.rules.MinVolume, m.rules.MaxWidth, m.rules.MaxHeight, m.rules.RetryLimit)
	if err != nil {
		return fmt.Errorf("generate grid: %w", err)
	}
	m.grid = grid

	maxWalls := m.rules.MaxWalls(grid.CellCount())
	walls := m.rules.MinWalls + int(float64(maxWalls-m.rules.MinWalls)*m.rng.Float64()+0.5)
	for i := 0; i < walls; i++ {
		if err := m.placeRandomly(NewWall()); err != nil {
			return fmt.Errorf("spawn wall: %w", err)
		}
	}
	if err := m.placeRandomly(NewCrusher()); err != nil {
		return fmt.Errorf("spawn crusher: %w", err)
	}
	return nil
}

func (m *Match) placeRandomly(obj *Object) error {
	return TryRepeat(m.rules.RetryLimit, func() bool {
		return m.grid.Place(obj, m.grid.RandomCoords(m.rng), false)
	})
}

func (m *Match) spawnEnemy(name, owner string) (*Object, error) {
	enemy := NewRobot(name, owner, AllegianceEnemy, m.rules.RobotPower+m.enemyLifeBonus)
	if err := m.placeRandomly(enemy); err != nil {
		return nil, fmt.Errorf("spawn enemy: %w", err)
	}
	m.audio.Play(CueEnemySpawn)
	m.log.WithFields(log.Fields{"robot": enemy.ID, "power": enemy.Robot.Power}).Debug("enemy spawned")
	return enemy, nil
}

func (m *Match) spawnPlayer() (*Object, error) {
	username, err := m.session.Username()
	if err != nil {
		return nil, fmt.Errorf("spawn player: %w", err)
	}
	credential, err := m.session.Credential()
	if err != nil {
		return nil, fmt.Errorf("spawn player: %w", err)
	}

	player := NewRobot(username, username, AllegiancePlayer, m.rules.RobotPower)
	player.Robot.AccessKey = AccessKey(player.ID, credential)
	if err := m.placeRandomly(player); err != nil {
		return nil, fmt.Errorf("spawn player: %w", err)
	}
	m.player = player
	return player, nil
}

// buildMusicPressure plays the intro track once enough pressure has accumulated
func (m *Match) buildMusicPressure() {
	m.introPressure += m.rng.Intn(33)
	if m.introPressure > m.rules.IntroPressureThreshold {
		m.audio.Play(CueIntroTrack)
		m.introPressure = 0
	}
}
