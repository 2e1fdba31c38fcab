// Package mcp exposes the game to AI agents over the Model Context Protocol.
//
// Client is a thin proxy: every tool call becomes a request against the REST
// API, so the same server can back browsers, agents and the terminal client.
// The token returned by sign_in is kept by the Client and sent as a bearer
// token on later calls.
//
// Tools:
//   - sign_in, create_match, get_match, list_matches
//   - match_state: status plus the map, one text row per grid row
//   - move, bulk_move: single or sequential moves with an intent note
//   - describe_cell: what occupies one cell
//   - list_rules, leaderboard, game_instructions
//
// Serve it over stdio with server.ServeStdio(client.GetMCPServer()) or mount
// GetMCPServer().HandleMessage behind an HTTP endpoint.
package mcp
