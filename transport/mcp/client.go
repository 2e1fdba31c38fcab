package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	log "github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/robotcrusher/game/engine"
	"github.com/wricardo/mcp-training/robotcrusher/game/scoreboard"
	"github.com/wricardo/mcp-training/robotcrusher/game/service"
)

// maxBulkMoves caps a single bulk_move call
const maxBulkMoves = 50

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer

	// token of the player that signed in through this client
	mu    sync.RWMutex
	token string
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Robot Crusher",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Robot Crusher - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME OBJECTIVE:
Push enemy robots (E) into crushers (X) to reach the next level. Your robot (P) loses power when it pushes.

AVAILABLE TOOLS:
- sign_in: Sign in (first use registers the name) - required before create_match
- create_match: Start a new match
- match_state: Get the map and status of a match
- move: Single move (up/down/left/right) - requires intent explanation
- bulk_move: Several moves in a row, stops when the match ends
- describe_cell: Get detailed info about one cell
- get_match / list_matches: Inspect matches
- list_rules: List available rule sets
- leaderboard: Best finished matches
- game_instructions: Full rules

NOTE: The 'intent' parameter on move/bulk_move serves as rubber duck debugging - explain your reasoning!`),
	)

	c.registerTools()
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func directionProp() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"enum":        []string{"up", "down", "left", "right"},
		"description": "Direction to move",
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Players
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "sign_in",
		Description: "Sign in with a username and password. The first sign-in for a name registers it.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"username": stringProp("Letters and digits, optionally separated by single dots or dashes"),
				"password": stringProp("Password (at least 4 characters)"),
			},
			Required: []string{"username", "password"},
		},
	}, c.handleSignIn)

	// Match management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_match",
		Description: "Start a new match with optional rules selection. Requires sign_in first.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"rules_id": stringProp("Rule set to use (optional, see list_rules)"),
			},
		},
	}, c.handleCreateMatch)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_matches",
		Description: "List all matches held by the server",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListMatches)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_match",
		Description: "Get details of a specific match",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"match_id": stringProp("Match ID to retrieve"),
			},
			Required: []string{"match_id"},
		},
	}, c.handleGetMatch)

	// Game operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "match_state",
		Description: "Get the current map and status of a match",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"match_id": stringProp("Match ID"),
			},
			Required: []string{"match_id"},
		},
	}, c.handleMatchState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "move",
		Description: "Move your robot one cell",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"match_id":  stringProp("Match ID"),
				"direction": directionProp(),
				"intent":    stringProp("Brief explanation of the intent behind this move (serves as a rubber duck to help explain your reasoning)"),
			},
			Required: []string{"match_id", "direction"},
		},
	}, c.handleMove)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "bulk_move",
		Description: "Execute several moves in sequence. Stops early when the match ends or a move is ignored.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"match_id": stringProp("Match ID"),
				"moves": map[string]interface{}{
					"type":        "array",
					"items":       directionProp(),
					"description": "Array of moves",
				},
				"intent": stringProp("Brief explanation of the intent behind this sequence of moves"),
			},
			Required: []string{"match_id", "moves"},
		},
	}, c.handleBulkMove)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_cell",
		Description: "Get detailed information about one cell of the map",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"match_id": stringProp("Match ID"),
				"x": map[string]interface{}{
					"type":        "integer",
					"description": "X coordinate (column) of the cell, 0-based",
				},
				"y": map[string]interface{}{
					"type":        "integer",
					"description": "Y coordinate (row) of the cell, 0-based",
				},
			},
			Required: []string{"match_id", "x", "y"},
		},
	}, c.handleDescribeCell)

	// Rules and results
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rules",
		Description: "List available rule sets",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListRules)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "leaderboard",
		Description: "Show the best finished matches",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Number of results (default 10)",
				},
			},
		},
	}, c.handleLeaderboard)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get comprehensive game instructions and rules",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Token returns the token of the player signed in through this client
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

func matchPath(matchID string, suffix string) string {
	return "/api/matches/" + url.PathEscape(matchID) + suffix
}

// Tool handlers

func (c *Client) handleSignIn(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	username, _ := args["username"].(string)
	password, _ := args["password"].(string)

	var result service.SignInResult
	err := c.apiCall(ctx, "POST", "/api/auth/sign-in", map[string]string{
		"username": username,
		"password": password,
	}, &result)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	c.mu.Lock()
	c.token = result.Token
	c.mu.Unlock()

	return mcp.NewToolResultText(fmt.Sprintf("Signed in as %s. You can now create_match.", result.Username)), nil
}

func (c *Client) handleCreateMatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if c.Token() == "" {
		return mcp.NewToolResultError("not signed in: call sign_in first"), nil
	}

	args := arguments(request)
	rulesID, _ := args["rules_id"].(string)

	body := map[string]string{}
	if rulesID != "" {
		body["rules_id"] = rulesID
	}

	var match service.MatchInfo
	if err := c.apiCall(ctx, "POST", "/api/matches", body, &match); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatMatchInfo(&match)), nil
}

func (c *Client) handleListMatches(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count   int                 `json:"count"`
		Matches []service.MatchInfo `json:"matches"`
	}

	if err := c.apiCall(ctx, "GET", "/api/matches", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Matches (%d):\n\n", response.Count)
	for _, m := range response.Matches {
		fmt.Fprintf(&b, "- %s (Player: %s, Rules: %s, State: %s, Level: %d, Created: %s)\n",
			m.ID, m.Player, m.RulesID, m.State, m.Level, m.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetMatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	matchID, _ := arguments(request)["match_id"].(string)

	var match service.MatchInfo
	if err := c.apiCall(ctx, "GET", matchPath(matchID, ""), nil, &match); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatMatchInfo(&match)), nil
}

func (c *Client) handleMatchState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	matchID, _ := arguments(request)["match_id"].(string)

	var snapshot engine.Snapshot
	if err := c.apiCall(ctx, "GET", matchPath(matchID, "/state"), nil, &snapshot); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSnapshot(&snapshot)), nil
}

func (c *Client) handleMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	matchID, _ := args["match_id"].(string)
	direction, _ := args["direction"].(string)

	if intent, _ := args["intent"].(string); intent != "" {
		log.WithFields(log.Fields{"match": matchID, "direction": direction, "intent": intent}).Debug("move requested")
	}

	var result service.MoveResult
	err := c.apiCall(ctx, "POST", matchPath(matchID, "/move"), map[string]string{"direction": direction}, &result)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatMoveResult(&result)), nil
}

func (c *Client) handleBulkMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	matchID, _ := args["match_id"].(string)
	movesRaw, _ := args["moves"].([]interface{})

	moves := make([]string, 0, len(movesRaw))
	for _, m := range movesRaw {
		if move, ok := m.(string); ok {
			moves = append(moves, move)
		}
	}
	if len(moves) == 0 {
		return mcp.NewToolResultError("moves must contain at least one direction"), nil
	}
	if len(moves) > maxBulkMoves {
		return mcp.NewToolResultError(fmt.Sprintf("at most %d moves per call", maxBulkMoves)), nil
	}

	var b strings.Builder
	var last *service.MoveResult
	executed := 0

	for i, direction := range moves {
		var result service.MoveResult
		err := c.apiCall(ctx, "POST", matchPath(matchID, "/move"), map[string]string{"direction": direction}, &result)
		if err != nil {
			fmt.Fprintf(&b, "Stopped at move %d (%s): %v\n", i+1, direction, err)
			break
		}
		executed++
		last = &result
		fmt.Fprintf(&b, "%2d. %-5s %s (power %d)\n", i+1, direction, result.Message, result.Snapshot.PlayerPower)

		if result.Snapshot.State == engine.StateEnded {
			b.WriteString("Match ended.\n")
			break
		}
		if result.Outcome == engine.OutcomeIgnored {
			b.WriteString("Input is locked; wait and check match_state.\n")
			break
		}
	}

	header := fmt.Sprintf("Executed %d/%d moves\n\n", executed, len(moves))
	if last != nil {
		b.WriteString("\n" + formatSnapshot(&last.Snapshot))
	}
	return mcp.NewToolResultText(header + b.String()), nil
}

func (c *Client) handleDescribeCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	matchID, _ := args["match_id"].(string)
	xf, okX := args["x"].(float64)
	yf, okY := args["y"].(float64)
	if !okX || !okY {
		return mcp.NewToolResultError("x and y are required integers"), nil
	}
	x, y := int(xf), int(yf)

	var snapshot engine.Snapshot
	if err := c.apiCall(ctx, "GET", matchPath(matchID, "/state"), nil, &snapshot); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if x < 0 || x >= snapshot.Width || y < 0 || y >= snapshot.Height {
		return mcp.NewToolResultError(fmt.Sprintf("Coordinates (%d, %d) are out of bounds. Map is %dx%d",
			x, y, snapshot.Width, snapshot.Height)), nil
	}

	return mcp.NewToolResultText(describeCell(snapshot.Cells[y*snapshot.Width+x])), nil
}

func (c *Client) handleListRules(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var rules []service.RulesInfo
	if err := c.apiCall(ctx, "GET", "/api/rules", nil, &rules); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Rules:\n\n")
	for _, r := range rules {
		fmt.Fprintf(&b, "• %s\n  %s\n  Map: up to %dx%d, Power: %d, Kill bonus: %d\n\n",
			r.RulesID, r.Description, r.MaxWidth, r.MaxHeight, r.RobotPower, r.EnemyLifeBonus)
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleLeaderboard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := "/api/leaderboard"
	if limit, ok := arguments(request)["limit"].(float64); ok && limit > 0 {
		path += fmt.Sprintf("?limit=%d", int(limit))
	}

	var response struct {
		Results []scoreboard.Result `json:"results"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatLeaderboard(response.Results)), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(instructions), nil
}

const instructions = `Robot Crusher - Instructions

GAME OBJECTIVE:
Crush every enemy robot on the map to advance to the next level. Each level
is a fresh map. The match ends when your robot runs out of power or falls
into a crusher.

MAP LEGEND:
• P - Your robot
• E - Enemy robot
• X - Crusher
• # - Wall (blocks everything)
• + - Juice power-up (blocks movement)
• * - Mega juice power-up (blocks movement)
• . - Empty cell

MOVEMENT:
• up, down, left, right (or N, E, S, W)
• Moving into an empty cell costs nothing
• Walking off an edge wraps you to the opposite side when that cell is empty
• Walls and power-ups block the move
• Walking into a crusher destroys your robot and ends the match

PUSHING:
• Moving into an enemy pushes the whole line of robots behind it one cell
• A push costs power. The pushed robot loses power too
• A robot pushed into a wall or off the map edge is destroyed
• A robot pushed into a crusher is crushed and you gain a kill bonus
• Destroyed and crushed enemies come back after a short delay

TIMING:
• Input is locked during the countdown and while animations play
• A move sent while input is locked is ignored, check match_state and retry

STRATEGY:
• Read the map row by row: coordinates are (x, y) with (0,0) at the top left
• Line an enemy up with a crusher before pushing
• Kill bonuses refill power, so chain crushes instead of wandering
• Use describe_cell when a glyph is unclear
• Use bulk_move for planned routes; it stops when the match ends`

// Formatting helpers

func formatMatchInfo(match *service.MatchInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Match: %s\nPlayer: %s\nRules: %s\nState: %s | Level: %d | Kills: %d\nCreated: %s\n",
		match.ID, match.Player, match.RulesID, match.State, match.Level, match.Kills,
		match.CreatedAt.Format("2006-01-02 15:04:05"))
	if match.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", match.Error)
	}
	if match.Snapshot != nil {
		b.WriteString("\n" + formatSnapshot(match.Snapshot))
	}
	return b.String()
}

func formatSnapshot(snapshot *engine.Snapshot) string {
	if snapshot == nil {
		return "No match state available"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Match %s | State: %s | Level: %d | Kills: %d | Power: %d\n\n",
		snapshot.MatchID, snapshot.State, snapshot.Level, snapshot.Kills, snapshot.PlayerPower)

	if player, ok := engine.FindObject(*snapshot, engine.PlayerRobot); ok {
		fmt.Fprintf(&b, "Position: (%d,%d)\n", player.X, player.Y)
		if crusher, ok := engine.FindObject(*snapshot, engine.Crusher); ok {
			steps := engine.ToroidalDistance(snapshot.Width, snapshot.Height, player, crusher)
			fmt.Fprintf(&b, "Crusher: (%d,%d), distance %d\n", crusher.X, crusher.Y, steps)
		}
		fmt.Fprintf(&b, "Enemies: %d\n\n", engine.CountObjects(*snapshot, engine.EnemyRobot))
	}

	rows := snapshot.Rows()
	if len(rows) > 0 {
		// Column ruler for character-by-character reading
		b.WriteString("   ")
		for x := 0; x < snapshot.Width; x++ {
			fmt.Fprintf(&b, "%d", x%10)
		}
		b.WriteString("\n")
		for y, row := range rows {
			fmt.Fprintf(&b, "%2d %s\n", y, row)
		}
	}

	switch snapshot.State {
	case engine.StateEnded:
		b.WriteString("\n💀 GAME OVER")
	case engine.StateCountingDown, engine.StateNotStarted:
		b.WriteString("\nInput is locked until the countdown finishes")
	}

	return b.String()
}

func formatMoveResult(result *service.MoveResult) string {
	status := "✓"
	switch result.Outcome {
	case engine.OutcomeIgnored, engine.OutcomeRejected, engine.OutcomeFellInCrusher:
		status = "✗"
	}
	return fmt.Sprintf("%s %s: %s\n\n%s", status, result.Direction, result.Message, formatSnapshot(&result.Snapshot))
}

func formatLeaderboard(results []scoreboard.Result) string {
	if len(results) == 0 {
		return "No finished matches yet"
	}

	var b strings.Builder
	b.WriteString("Leaderboard:\n\n")
	for _, r := range results {
		fmt.Fprintf(&b, "%2d. %-16s level %d, %d kills (%s, match %s)\n",
			r.Rank, r.Player, r.Level, r.Kills, r.Rules, r.MatchID)
	}
	return b.String()
}

func describeCell(cell engine.CellView) string {
	glyph := cell.Content.Glyph()
	header := fmt.Sprintf("Cell (%d, %d) '%c': ", cell.X, cell.Y, glyph)

	if cell.Content == nil {
		return header + "Empty - free to move into"
	}

	obj := cell.Content
	switch obj.Type {
	case engine.Wall:
		return header + "Wall - blocks movement; robots pushed into it are destroyed"
	case engine.Crusher:
		return header + "Crusher - enemies pushed into it are crushed; walking into it ends the match"
	case engine.PlayerRobot:
		return header + fmt.Sprintf("Your robot (%s), power %d", obj.Owner, obj.Power)
	case engine.EnemyRobot:
		return header + fmt.Sprintf("Enemy robot, power %d - push it into a crusher", obj.Power)
	case engine.Juice, engine.MegaJuice:
		return header + fmt.Sprintf("%s - blocks movement", obj.Description)
	}
	return header + obj.Description
}
