// Package engine provides the core game logic for Robot Crusher.
//
// The engine package implements the game mechanics including:
//   - A toroidal grid with single-occupant cells
//   - Robot power economy with energized immunity
//   - Movement, edge jumps, pushes and the crusher
//   - Level regeneration and match lifecycle
//   - Rule set loading and validation
//
// Core Types:
//
// Match implements the Engine interface and owns one grid, its event Bus and the
// collaborators used for animation, audio and player identity. Every state change is
// published as an immutable Snapshot on the match feed.
//
// Usage:
//
//	match := engine.NewMatch(
//		engine.WithRules(engine.DefaultRules()),
//		engine.WithSession(engine.StaticSession{Name: "ada", Key: authKey}),
//	)
//
//	player, err := match.Start(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	outcome, err := match.Move(ctx, player, engine.East)
//
// Game Rules:
//
// The player robot moves one cell per turn and pays power for it. Walking into an
// enemy pushes it one cell further, and pushing it onto the crusher destroys it.
// Robots that run out of power are destroyed. Each kill regenerates the arena with a
// stronger enemy; the match ends when the player robot is destroyed.
package engine
