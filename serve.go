package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/server"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/mcp-training/robotcrusher/api"
	"github.com/wricardo/mcp-training/robotcrusher/game/service"
	"github.com/wricardo/mcp-training/robotcrusher/transport/mcp"
	"github.com/wricardo/mcp-training/robotcrusher/transport/websocket"
)

// cleanupInterval is how often idle matches are looked for
const cleanupInterval = time.Hour

// newHub creates a WebSocket hub that follows matches and accepts moves through svc
func newHub(svc service.GameService) *websocket.Hub {
	return websocket.NewHub(
		websocket.WithSource(svc.Subscribe),
		websocket.WithMover(func(ctx context.Context, matchID, direction string) (interface{}, error) {
			return svc.Move(ctx, matchID, direction)
		}),
	)
}

// newHandler combines the REST API with an /mcp endpoint that proxies back to baseURL
func newHandler(svc service.GameService, hub *websocket.Hub, baseURL string) http.Handler {
	apiServer := api.NewServer(svc, hub)
	mcpClient := mcp.NewClient(baseURL)

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)

	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})

	return mainRouter
}

// runServe starts the HTTP server with REST API, WebSocket hub, session cleanup and an /mcp endpoint.
// When ngrok is enabled it also serves through a public tunnel.
func runServe(ctx context.Context, cmd *cli.Command) error {
	svcs, err := initializeServices(optionsFrom(cmd))
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer svcs.Close()

	addr := cmd.String("addr")
	hub := newHub(svcs.game)
	handler := newHandler(svcs.game, hub, "http://"+addr)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		hub.Run(ctx)
		return nil
	})

	group.Go(func() error {
		svcs.sessions.RunCleanup(ctx, cleanupInterval, cmd.Duration("session-ttl"))
		return nil
	})

	group.Go(func() error {
		log.WithField("addr", addr).Info("HTTP server listening")
		log.Infof("REST API: http://%s/api", addr)
		log.Infof("WebSocket: ws://%s/ws?match=<match_id>", addr)
		log.Infof("MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	if cmd.Bool("ngrok") {
		group.Go(func() error {
			serveNgrok(ctx, cmd.String("ngrok-auth"), cmd.String("ngrok-domain"), handler)
			return nil
		})
	}

	group.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

// serveNgrok serves handler through an ngrok tunnel until ctx is done. Failures are logged, not fatal.
func serveNgrok(ctx context.Context, authToken, domain string, handler http.Handler) {
	if authToken == "" {
		log.Warn("ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		log.WithField("domain", domain).Info("using custom ngrok domain")
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		log.WithError(err).Warn("failed to start ngrok tunnel")
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.WithError(err).Warn("failed to close ngrok tunnel")
		}
	}()

	ngrokURL := tun.URL()
	log.WithField("url", ngrokURL).Info("ngrok tunnel established")
	log.Infof("  REST API (ngrok): %s/api", ngrokURL)
	log.Infof("  WebSocket (ngrok): %s/ws?match=<match_id>", ngrokURL)
	log.Infof("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		log.WithError(err).Warn("ngrok server error")
	}
	log.Info("ngrok tunnel closed")
}

// apiReachable reports whether a REST API answers at baseURL
func apiReachable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", baseURL+"/api/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

// startInternalAPI serves the API on a random loopback port and returns its base URL
func startInternalAPI(ctx context.Context, svc service.GameService) (string, *http.Server, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("failed to get available port: %w", err)
	}
	baseURL := "http://" + listener.Addr().String()

	hub := newHub(svc)
	go hub.Run(ctx)

	httpServer := &http.Server{Handler: newHandler(svc, hub, baseURL)}
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Warn("internal HTTP server error")
		}
	}()

	return baseURL, httpServer, nil
}

// runMCP runs an MCP stdio server. It reuses the API at --api-url when one answers;
// otherwise it starts an internal API on a loopback port.
func runMCP(ctx context.Context, cmd *cli.Command) error {
	baseURL := cmd.String("api-url")
	log.WithField("url", baseURL).Info("checking for external API server")

	if !apiReachable(ctx, baseURL) {
		log.Info("no external API server found, starting internal HTTP server")

		svcs, err := initializeServices(optionsFrom(cmd))
		if err != nil {
			return fmt.Errorf("failed to initialize services: %w", err)
		}
		defer svcs.Close()

		internalURL, httpServer, err := startInternalAPI(ctx, svcs.game)
		if err != nil {
			return err
		}
		defer httpServer.Close()
		baseURL = internalURL
	}

	log.WithField("url", baseURL).Info("MCP stdio server ready")
	if err := server.ServeStdio(mcp.NewClient(baseURL).GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
