// Package scoreboard records finished matches and ranks them.
//
// A result is written once a match ends: the player, the level reached and the
// enemies destroyed. Results rank by level, then kills, then the earlier finish.
//
// Two stores are provided. FileStore keeps one JSON file per match and suits a
// single process. SQLiteStore uses an embedded SQLite database and also stores
// player accounts for the auth package.
package scoreboard
