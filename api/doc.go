// Package api exposes the game service over HTTP.
//
// Routes:
//
//	POST   /api/auth/sign-in          {username, password} -> {username, token}
//	POST   /api/matches               {rules_id?} with Authorization: Bearer <token>
//	GET    /api/matches               ?sort=created|accessed&order=asc|desc&limit=N
//	GET    /api/matches/{id}
//	DELETE /api/matches/{id}
//	GET    /api/matches/{id}/state    ?view=rows for a text map
//	POST   /api/matches/{id}/move     {direction: up|down|left|right|N|E|S|W}
//	GET    /api/rules
//	POST   /api/rules                 JSON, or YAML with a yaml content type
//	GET    /api/rules/{name}
//	GET    /api/leaderboard           ?limit=N
//	GET    /api/health
//	GET    /ws?match={id}&format=json|msgpack
//
// Errors are returned as {"error": "..."}. Unknown matches and rules answer
// 404, bad tokens 401 and malformed input 400.
package api
