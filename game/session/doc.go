// Package session holds the matches of a Robot Crusher server.
//
// Manager implements service.SessionManager. Each session wraps one
// engine.Match together with the rule set it was built from and the player
// who started it.
//
// Session Identifiers:
//
// Sessions use 4-character hex IDs for easy reference. Lookups are
// case-insensitive. Generated IDs are retried on collision.
//
// Lifecycle:
//
// Removing a session closes its match, which cancels pending level timers and
// ends every snapshot subscription. CleanupExpiredSessions and RunCleanup drop
// sessions that have not been accessed for a while. Game state is not
// persisted; finished matches are recorded by the scoreboard package instead.
package session
