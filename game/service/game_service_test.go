package service_test

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/wricardo/mcp-training/robotcrusher/game/auth"
	"github.com/wricardo/mcp-training/robotcrusher/game/config"
	"github.com/wricardo/mcp-training/robotcrusher/game/engine"
	"github.com/wricardo/mcp-training/robotcrusher/game/scoreboard"
	"github.com/wricardo/mcp-training/robotcrusher/game/service"
	"github.com/wricardo/mcp-training/robotcrusher/game/session"
)

type fixture struct {
	service  service.GameService
	sessions *session.Manager
	results  *scoreboard.FileStore
	token    string
}

func newFixture(t *testing.T, extra ...engine.Option) *fixture {
	t.Helper()

	configs, err := config.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create config manager: %v", err)
	}
	results, err := scoreboard.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create result store: %v", err)
	}

	sessions := session.NewManager()
	t.Cleanup(sessions.CloseAll)

	seed := int64(0)
	svc := service.NewGameService(sessions, configs,
		service.WithResults(results),
		service.WithAuthenticator(auth.New(nil, []byte("secret"), auth.WithBcryptCost(bcrypt.MinCost))),
		service.WithMatchOptions(func() []engine.Option {
			seed++
			return append([]engine.Option{
				engine.WithRand(rand.New(rand.NewSource(seed))),
				engine.WithScheduler(engine.NewManualScheduler()),
			}, extra...)
		}),
	)

	signIn, err := svc.SignIn(context.Background(), "adam", "secret")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	return &fixture{service: svc, sessions: sessions, results: results, token: signIn.Token}
}

func (f *fixture) createMatch(t *testing.T) *service.MatchInfo {
	t.Helper()
	info, err := f.service.CreateMatch(context.Background(), f.token, "")
	if err != nil {
		t.Fatalf("CreateMatch failed: %v", err)
	}
	return info
}

func TestGameService_SignIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.service.SignIn(ctx, "Adam", "secret")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if result.Username != "adam" || result.Token == "" {
		t.Errorf("Unexpected sign-in result %+v", result)
	}

	if _, err := f.service.SignIn(ctx, "adam", "wrong"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials, got %v", err)
	}

	bare := service.NewGameService(session.NewManager(), nil)
	if _, err := bare.SignIn(ctx, "adam", "secret"); !errors.Is(err, service.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized without authenticator, got %v", err)
	}
}

func TestGameService_CreateMatch(t *testing.T) {
	f := newFixture(t)

	info := f.createMatch(t)
	if len(info.ID) != 4 {
		t.Errorf("Expected 4-character ID, got %q", info.ID)
	}
	if info.State != engine.StateRunning {
		t.Errorf("Expected running match, got %s", info.State)
	}
	if info.Level != 1 || info.Kills != 0 {
		t.Errorf("Expected level 1 with no kills, got %d/%d", info.Level, info.Kills)
	}
	if info.Player != "adam" || info.RulesID != "classic" {
		t.Errorf("Unexpected player/rules %s/%s", info.Player, info.RulesID)
	}
	if info.Snapshot == nil {
		t.Fatal("Expected a snapshot")
	}
	if engine.CountObjects(*info.Snapshot, engine.PlayerRobot) != 1 {
		t.Error("Expected exactly one player robot")
	}
	if engine.CountObjects(*info.Snapshot, engine.Crusher) != 1 {
		t.Error("Expected exactly one crusher")
	}
	if info.Snapshot.PlayerName != "adam" {
		t.Errorf("Expected player name adam, got %q", info.Snapshot.PlayerName)
	}
}

func TestGameService_CreateMatchErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("invalid token", func(t *testing.T) {
		if _, err := f.service.CreateMatch(ctx, "nope", ""); !errors.Is(err, service.ErrUnauthorized) {
			t.Errorf("Expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("unknown rules lists available ones", func(t *testing.T) {
		_, err := f.service.CreateMatch(ctx, f.token, "nightmare")
		if !errors.Is(err, service.ErrRulesNotFound) {
			t.Fatalf("Expected ErrRulesNotFound, got %v", err)
		}
		if !strings.Contains(err.Error(), "classic") {
			t.Errorf("Expected available rules in error, got %v", err)
		}
	})

}

// fixedConfigs serves one rule set without validating it
type fixedConfigs struct {
	rules *engine.Rules
}

func (c fixedConfigs) LoadRules(string) (*engine.Rules, error) { return c.rules, nil }
func (c fixedConfigs) ListRules() ([]*service.RulesInfo, error) { return nil, nil }
func (c fixedConfigs) GetDefault() *engine.Rules                { return c.rules }
func (c fixedConfigs) SaveRules(string, *engine.Rules) error    { return nil }

func TestGameService_FailedStartRemovesMatch(t *testing.T) {
	rules := engine.DefaultRules()
	rules.MinVolume = 100

	a := auth.New(nil, []byte("secret"), auth.WithBcryptCost(bcrypt.MinCost))
	sessions := session.NewManager()
	svc := service.NewGameService(sessions, fixedConfigs{rules: rules}, service.WithAuthenticator(a))

	signIn, err := svc.SignIn(context.Background(), "adam", "secret")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	if _, err := svc.CreateMatch(context.Background(), signIn.Token, ""); !errors.Is(err, engine.ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
	if sessions.Count() != 0 {
		t.Errorf("Expected failed match to be removed, got %d sessions", sessions.Count())
	}
}

func TestGameService_GetListDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.createMatch(t)
	second := f.createMatch(t)

	got, err := f.service.GetMatch(ctx, strings.ToUpper(first.ID))
	if err != nil {
		t.Fatalf("GetMatch failed: %v", err)
	}
	if got.ID != first.ID {
		t.Errorf("Expected %s, got %s", first.ID, got.ID)
	}

	list, err := f.service.ListMatches(ctx)
	if err != nil {
		t.Fatalf("ListMatches failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Expected 2 matches, got %d", len(list))
	}
	for _, info := range list {
		if info.Snapshot != nil {
			t.Error("Expected listings without snapshots")
		}
	}

	if err := f.service.DeleteMatch(ctx, second.ID); err != nil {
		t.Fatalf("DeleteMatch failed: %v", err)
	}
	if _, err := f.service.GetMatch(ctx, second.ID); !errors.Is(err, service.ErrMatchNotFound) {
		t.Errorf("Expected ErrMatchNotFound, got %v", err)
	}
	if err := f.service.DeleteMatch(ctx, second.ID); !errors.Is(err, service.ErrMatchNotFound) {
		t.Errorf("Expected ErrMatchNotFound on second delete, got %v", err)
	}
}

func TestGameService_Move(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	info := f.createMatch(t)

	t.Run("invalid direction", func(t *testing.T) {
		if _, err := f.service.Move(ctx, info.ID, "sideways"); !errors.Is(err, service.ErrInvalidDirection) {
			t.Errorf("Expected ErrInvalidDirection, got %v", err)
		}
	})

	t.Run("unknown match", func(t *testing.T) {
		if _, err := f.service.Move(ctx, "zzzz", "up"); !errors.Is(err, service.ErrMatchNotFound) {
			t.Errorf("Expected ErrMatchNotFound, got %v", err)
		}
	})

	for _, direction := range []string{"up", "E", "south", "left"} {
		t.Run(direction, func(t *testing.T) {
			result, err := f.service.Move(ctx, info.ID, direction)
			if err != nil {
				t.Fatalf("Move failed: %v", err)
			}
			if result.Outcome == engine.OutcomeIgnored && result.Snapshot.State == engine.StateRunning {
				t.Errorf("Expected a running match to resolve the move, got %s", result.Outcome)
			}
			if result.Message == "" {
				t.Error("Expected a message")
			}
			if result.Snapshot.MatchID != info.ID {
				t.Errorf("Expected snapshot of %s, got %s", info.ID, result.Snapshot.MatchID)
			}
		})
	}
}

func TestGameService_GetStateAndSubscribe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	info := f.createMatch(t)

	state, err := f.service.GetState(ctx, info.ID)
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if state.Width*state.Height != len(state.Cells) {
		t.Errorf("Expected %d cells, got %d", state.Width*state.Height, len(state.Cells))
	}

	snapshots, cancel, err := f.service.Subscribe(ctx, info.ID)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer cancel()

	select {
	case s := <-snapshots:
		if s.Version != state.Version {
			t.Errorf("Expected replay of version %d, got %d", state.Version, s.Version)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected the latest snapshot to be replayed")
	}

	if _, _, err := f.service.Subscribe(ctx, "none"); !errors.Is(err, service.ErrMatchNotFound) {
		t.Errorf("Expected ErrMatchNotFound, got %v", err)
	}
}

func TestGameService_RecordsResultOnGameOver(t *testing.T) {
	draining := engine.CostTable{}
	for _, action := range []engine.Action{
		engine.ActionMove, engine.ActionJumpEdge, engine.ActionWait, engine.ActionBrace,
		engine.ActionPush, engine.ActionGetPushed, engine.ActionConsumeJuice,
		engine.ActionConsumeMegaJuice, engine.ActionFellInCrusher,
	} {
		draining[action] = engine.Fixed(-100)
	}
	f := newFixture(t, engine.WithCosts(draining))
	ctx := context.Background()
	info := f.createMatch(t)

	sess, err := f.sessions.Get(info.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	for _, direction := range []string{"up", "right", "down", "left"} {
		if sess.Match.State() == engine.StateEnded {
			break
		}
		if _, err := f.service.Move(ctx, info.ID, direction); err != nil {
			t.Fatalf("Move %s failed: %v", direction, err)
		}
	}

	if state := sess.Match.State(); state != engine.StateEnded {
		t.Fatalf("Expected ended match, got %s", state)
	}

	deadline := time.Now().Add(2 * time.Second)
	var board []scoreboard.Result
	for time.Now().Before(deadline) {
		board, err = f.service.Leaderboard(ctx, 5)
		if err != nil {
			t.Fatalf("Leaderboard failed: %v", err)
		}
		if len(board) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if len(board) != 1 {
		t.Fatalf("Expected one recorded result, got %d", len(board))
	}
	if board[0].MatchID != info.ID || board[0].Player != "adam" || board[0].Level != 1 {
		t.Errorf("Unexpected result %+v", board[0])
	}
	if board[0].Rank != 1 {
		t.Errorf("Expected rank 1, got %d", board[0].Rank)
	}

	if result, _ := f.service.Move(ctx, info.ID, "up"); result == nil || result.Outcome != engine.OutcomeIgnored {
		t.Errorf("Expected moves after game over to be ignored, got %+v", result)
	}
}

func TestGameService_LeaderboardWithoutStore(t *testing.T) {
	svc := service.NewGameService(session.NewManager(), nil)
	board, err := svc.Leaderboard(context.Background(), 10)
	if err != nil {
		t.Fatalf("Leaderboard failed: %v", err)
	}
	if board == nil || len(board) != 0 {
		t.Errorf("Expected empty leaderboard, got %v", board)
	}
}

func TestGameService_Rules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rules := engine.DefaultRules()
	rules.Name = "Tight"
	rules.Description = "Small maps"
	rules.MaxWidth = 6
	rules.MaxHeight = 6
	rules.MinVolume = 6
	if err := f.service.SaveRules(ctx, "tight.yaml", rules); err != nil {
		t.Fatalf("SaveRules failed: %v", err)
	}

	loaded, err := f.service.LoadRules(ctx, "tight")
	if err != nil {
		t.Fatalf("LoadRules failed: %v", err)
	}
	if loaded.MaxWidth != 6 || loaded.Name != "Tight" {
		t.Errorf("Unexpected rules %+v", loaded)
	}

	infos, err := f.service.ListRules(ctx)
	if err != nil {
		t.Fatalf("ListRules failed: %v", err)
	}
	ids := make([]string, 0, len(infos))
	for _, info := range infos {
		ids = append(ids, info.RulesID)
	}
	if strings.Join(ids, ",") != "classic,tight" {
		t.Errorf("Expected classic,tight, got %v", ids)
	}

	info, err := f.service.CreateMatch(ctx, f.token, "tight")
	if err != nil {
		t.Fatalf("CreateMatch failed: %v", err)
	}
	if info.Snapshot.Width > 6 || info.Snapshot.Height > 6 {
		t.Errorf("Expected map within 6x6, got %dx%d", info.Snapshot.Width, info.Snapshot.Height)
	}
	if info.RulesID != "tight" {
		t.Errorf("Expected rules id tight, got %s", info.RulesID)
	}

	bad := engine.DefaultRules()
	bad.RobotPower = 0
	if err := f.service.SaveRules(ctx, "bad", bad); !errors.Is(err, config.ErrInvalidRules) {
		t.Errorf("Expected ErrInvalidRules, got %v", err)
	}
}
