// Package websocket streams match snapshots to browser and tool clients.
//
// A Hub groups connections by match ID. The first client of a match makes the
// hub subscribe to that match through its Source; the subscription is dropped
// when the last client leaves. Every client receives the latest snapshot as
// soon as it registers, then each new one as the match changes.
//
// Clients choose an encoding with ?format=json (text frames, the default) or
// ?format=msgpack (binary frames). Both use the same field names.
//
// Outgoing messages:
//
//	{"match_id": "ab12", "event": "state_update", "snapshot": {...}}
//	{"match_id": "ab12", "event": "match_closed"}
//
// Incoming commands are JSON in either mode:
//
//	{"action": "move", "direction": "up"}
//
// Usage:
//
//	hub := websocket.NewHub(
//		websocket.WithSource(svc.Subscribe),
//		websocket.WithMover(move),
//	)
//	go hub.Run(ctx)
//	hub.ServeWS(w, r, matchID, websocket.ParseFormat(r.URL.Query().Get("format")))
package websocket
