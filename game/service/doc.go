// Package service provides the business logic layer for Robot Crusher.
//
// The service package implements:
//   - Player sign-in and token based match creation
//   - Match management on top of a SessionManager
//   - Move requests with direction parsing
//   - Rule set listing, loading and saving
//   - Result recording and the leaderboard
//
// Core Interfaces:
//
// GameService is the main service interface providing high-level game operations.
// SessionManager handles match creation, retrieval, and lifecycle.
// ConfigManager manages rule set loading and validation.
// ResultStore records finished matches. Authenticator signs players in.
//
// Architecture:
//
// The service layer sits between the transports (HTTP, WebSocket, MCP and the
// terminal client) and the engine. Each match runs its own engine.Match with
// independent state and timers. When a match ends the service records its
// result by watching the snapshot feed, never from inside an engine listener.
//
// Usage:
//
//	sessions := session.NewManager()
//	configs, _ := config.NewManager("rules")
//	svc := service.NewGameService(sessions, configs,
//		service.WithAuthenticator(auth.New(store, secret)),
//		service.WithResults(store))
//
//	signIn, _ := svc.SignIn(ctx, "adam", "secret")
//	info, _ := svc.CreateMatch(ctx, signIn.Token, "classic")
//	result, _ := svc.Move(ctx, info.ID, "up")
package service
