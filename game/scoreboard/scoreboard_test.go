package scoreboard

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/robotcrusher/game/auth"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleResults() []Result {
	return []Result{
		{MatchID: "a001", Player: "adam", Rules: "classic", Level: 3, Kills: 2, EndedAt: base.Add(3 * time.Minute)},
		{MatchID: "a002", Player: "bea", Rules: "classic", Level: 5, Kills: 4, EndedAt: base.Add(5 * time.Minute)},
		{MatchID: "a003", Player: "carl", Rules: "classic", Level: 3, Kills: 2, EndedAt: base.Add(time.Minute)},
		{MatchID: "a004", Player: "dora", Rules: "classic", Level: 3, Kills: 1, EndedAt: base},
	}
}

func TestRank(t *testing.T) {
	ranked := Rank(sampleResults(), 0)

	expected := []string{"bea", "carl", "adam", "dora"}
	if len(ranked) != len(expected) {
		t.Fatalf("Expected %d results, got %d", len(expected), len(ranked))
	}
	for i, player := range expected {
		if ranked[i].Player != player {
			t.Errorf("Position %d: expected %s, got %s", i, player, ranked[i].Player)
		}
		if ranked[i].Rank != i+1 {
			t.Errorf("Position %d: expected rank %d, got %d", i, i+1, ranked[i].Rank)
		}
	}

	if top := Rank(sampleResults(), 2); len(top) != 2 {
		t.Errorf("Expected limit to apply, got %d", len(top))
	}
}

// storeFactories lets both stores run the same behaviour tests
func storeFactories(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"file": func() Store {
			s, err := NewFileStore(t.TempDir())
			if err != nil {
				t.Fatalf("NewFileStore failed: %v", err)
			}
			return s
		},
		"sqlite": func() Store {
			s, err := OpenSQLite(":memory:")
			if err != nil {
				t.Fatalf("OpenSQLite failed: %v", err)
			}
			return s
		},
	}
}

func TestStore_RecordAndTop(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory()
			defer store.Close()

			for _, r := range sampleResults() {
				if err := store.Record(ctx, r); err != nil {
					t.Fatalf("Record %s failed: %v", r.MatchID, err)
				}
			}

			top, err := store.Top(ctx, 3)
			if err != nil {
				t.Fatalf("Top failed: %v", err)
			}
			if len(top) != 3 {
				t.Fatalf("Expected 3 results, got %d", len(top))
			}
			if top[0].Player != "bea" || top[0].Rank != 1 {
				t.Errorf("Expected bea first, got %+v", top[0])
			}
			if top[1].Player != "carl" || top[2].Player != "adam" {
				t.Errorf("Expected earlier finish to break ties, got %s then %s", top[1].Player, top[2].Player)
			}
			if !top[0].EndedAt.Equal(base.Add(5 * time.Minute)) {
				t.Errorf("Expected end time to survive storage, got %v", top[0].EndedAt)
			}
		})
	}
}

func TestStore_RecordReplacesSameMatch(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory()
			defer store.Close()

			store.Record(ctx, Result{MatchID: "beef", Player: "adam", Level: 1, StartedAt: base, EndedAt: base})
			store.Record(ctx, Result{MatchID: "BEEF", Player: "adam", Level: 4, StartedAt: base, EndedAt: base})

			top, err := store.Top(ctx, 10)
			if err != nil {
				t.Fatalf("Top failed: %v", err)
			}
			if len(top) != 1 || top[0].Level != 4 {
				t.Errorf("Expected a single result at level 4, got %+v", top)
			}
		})
	}
}

func TestStore_KeepsResultsOfReusedMatchIDs(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory()
			defer store.Close()

			first := Result{MatchID: "1a2b", Player: "adam", Level: 7, StartedAt: base, EndedAt: base.Add(time.Minute)}
			second := Result{MatchID: "1a2b", Player: "bea", Level: 1, StartedAt: base.Add(time.Hour), EndedAt: base.Add(time.Hour + time.Minute)}
			for _, r := range []Result{first, second} {
				if err := store.Record(ctx, r); err != nil {
					t.Fatalf("Record %s failed: %v", r.Player, err)
				}
			}

			top, err := store.Top(ctx, 10)
			if err != nil {
				t.Fatalf("Top failed: %v", err)
			}
			if len(top) != 2 {
				t.Fatalf("Expected both results for the reused id, got %+v", top)
			}
			if top[0].Player != "adam" || top[0].Level != 7 {
				t.Errorf("Expected adam at level 7 first, got %+v", top[0])
			}
			if top[1].Player != "bea" {
				t.Errorf("Expected bea second, got %+v", top[1])
			}
		})
	}
}

func TestStore_RejectsInvalidResults(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory()
			defer store.Close()

			if err := store.Record(context.Background(), Result{Player: "adam"}); !errors.Is(err, ErrInvalidResult) {
				t.Errorf("Expected ErrInvalidResult without match id, got %v", err)
			}
			if err := store.Record(context.Background(), Result{MatchID: "a1"}); !errors.Is(err, ErrInvalidResult) {
				t.Errorf("Expected ErrInvalidResult without player, got %v", err)
			}
		})
	}
}

func TestFileStore_LoadAndSkipCorrupt(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	ctx := context.Background()
	if err := store.Record(ctx, Result{MatchID: "c0de", Player: "adam", Level: 2, Kills: 1, StartedAt: base, EndedAt: base}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	loaded, err := store.Load("C0DE", base)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Player != "adam" || loaded.Level != 2 {
		t.Errorf("Unexpected result %+v", loaded)
	}

	if _, err := store.Load("none", base); !errors.Is(err, ErrResultNotFound) {
		t.Errorf("Expected ErrResultNotFound, got %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	top, err := store.Top(ctx, 10)
	if err != nil {
		t.Fatalf("Top failed: %v", err)
	}
	if len(top) != 1 {
		t.Errorf("Expected corrupt file to be skipped, got %d results", len(top))
	}

	if err := store.Record(ctx, Result{MatchID: "../x", Player: "adam"}); !errors.Is(err, ErrInvalidResult) {
		t.Errorf("Expected path-like ids to be rejected, got %v", err)
	}
}

func TestSQLiteStore_Accounts(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "robotcrusher.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	account, err := store.GetAccount(ctx, "adam")
	if err != nil || account != nil {
		t.Fatalf("Expected no account, got %+v (%v)", account, err)
	}

	if err := store.CreateAccount(ctx, auth.Account{Username: "Adam", PassHash: "hash", CreatedAt: base}); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	if err := store.CreateAccount(ctx, auth.Account{Username: "adam", PassHash: "other", CreatedAt: base}); err == nil {
		t.Error("Expected duplicate account to fail")
	}

	account, err = store.GetAccount(ctx, "ADAM")
	if err != nil || account == nil {
		t.Fatalf("Expected account, got %+v (%v)", account, err)
	}
	if account.Username != "adam" || account.PassHash != "hash" || !account.CreatedAt.Equal(base) {
		t.Errorf("Unexpected account %+v", account)
	}
}

func TestSQLiteStore_BacksAuthenticator(t *testing.T) {
	store, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer store.Close()

	a := auth.New(store, []byte("secret"), auth.WithBcryptCost(4))
	if _, _, err := a.SignIn(context.Background(), "adam", "secret"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, _, err := a.SignIn(context.Background(), "adam", "nope!"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials, got %v", err)
	}
}
