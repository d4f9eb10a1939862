package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/rflorenc/mesh-workbench/internal/api"
	"github.com/rflorenc/mesh-workbench/internal/config"
	"github.com/rflorenc/mesh-workbench/internal/controlplane"
	"github.com/rflorenc/mesh-workbench/internal/logger"
	"github.com/rflorenc/mesh-workbench/internal/models"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// startupWait bounds how long startup waits for each configured control plane.
const startupWait = 30 * time.Second

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" {
			fmt.Printf("workbench %s (commit: %s, built: %s)\n", version, commit, date)
			os.Exit(0)
		}
	}

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, logger.ColorizeError(err))
		os.Exit(2)
	}
	log := logger.NewConsoleLogger(cfg.LogPretty, cfg.Verbosity)

	server := &api.Server{
		Connections:     models.NewConnectionStore(),
		Log:             log,
		PageSize:        cfg.PageSize,
		RefreshInterval: cfg.RefreshInterval,
		RequestTimeout:  cfg.RequestTimeout,
	}

	// Load pre-configured connections and verify them early
	for _, cc := range cfg.AllConnections() {
		conn, err := cc.Connection()
		if err != nil {
			log.Error(err, "skipping connection", "name", cc.Name)
			continue
		}
		server.Connections.Create(conn)
		log.Info("loaded connection", "name", conn.Name, "url", conn.BaseURL())
		checkConnection(server, conn, log)
	}

	var handler http.Handler
	if cfg.Dev {
		handler = devRouter(server)
	} else {
		handler = api.NewRouter(server)
	}

	log.Info("Kuma mesh workbench starting", "version", version, "listen", cfg.Listen)
	if cfg.Dev {
		log.Info("dev mode: proxying frontend to http://localhost:5173")
	}

	if err := http.ListenAndServe(cfg.Listen, handler); err != nil {
		log.Error(err, "server stopped")
		os.Exit(1)
	}
}

// checkConnection waits for the control plane to answer, then records its
// health and discovered metadata.
func checkConnection(server *api.Server, conn *models.Connection, log logr.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), startupWait+2*server.RequestTimeout)
	defer cancel()

	client := controlplane.NewClient(conn, controlplane.WithTimeout(server.RequestTimeout))
	if err := controlplane.WaitReachable(ctx, client, startupWait); err != nil {
		log.Info("control plane unreachable", "name", conn.Name, "error", err.Error())
		server.Connections.SetHealth(conn.ID, "error", err.Error(), "unknown", "")
		return
	}
	if err := server.Check(ctx, conn); err != nil {
		log.Info("connection check failed", "name", conn.Name, "error", err.Error())
		return
	}
	if checked := server.Connections.Get(conn.ID); checked != nil {
		log.Info("connection ok", "name", checked.Name, "version", checked.Version, "mode", checked.Mode)
	}
}

// devRouter serves API routes directly and proxies everything else to the
// Vite dev server.
func devRouter(server *api.Server) http.Handler {
	apiRouter := api.NewRouter(server)

	viteURL, _ := url.Parse("http://localhost:5173")
	proxy := httputil.NewSingleHostReverseProxy(viteURL)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api") || strings.HasPrefix(r.URL.Path, "/ws") {
			apiRouter.ServeHTTP(w, r)
			return
		}
		proxy.ServeHTTP(w, r)
	})
}
