package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/Billy-Davies-2/warband-roster/internal/auth"
	"github.com/Billy-Davies-2/warband-roster/internal/catalog"
	"github.com/Billy-Davies-2/warband-roster/internal/clickhouse"
	"github.com/Billy-Davies-2/warband-roster/internal/config"
	"github.com/Billy-Davies-2/warband-roster/internal/dal"
	grpcserver "github.com/Billy-Davies-2/warband-roster/internal/grpc"
	"github.com/Billy-Davies-2/warband-roster/internal/handlers"
	"github.com/Billy-Davies-2/warband-roster/internal/inbox"
	"github.com/Billy-Davies-2/warband-roster/internal/logger"
	"github.com/Billy-Davies-2/warband-roster/internal/mocks"
	"github.com/Billy-Davies-2/warband-roster/internal/models"
	"github.com/Billy-Davies-2/warband-roster/internal/pubsub"
	"github.com/Billy-Davies-2/warband-roster/internal/workspace"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// upstream is what serve needs from a NATS-backed event bus
type upstream interface {
	pubsub.Upstream
	Connected() bool
	Close()
}

// pinger is implemented by analytics sinks that can report readiness
type pinger interface {
	Ping(ctx context.Context) error
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	logger.Info("Starting warband roster service", "environment", cfg.Environment)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	up, err := openUpstream(cfg)
	if err != nil {
		return err
	}
	defer up.Close()
	events := pubsub.NewWithUpstream(up)
	defer events.Close()

	recorder, err := openRecorder(cfg)
	if err != nil {
		return err
	}
	defer recorder.Close()

	var unitCatalog *models.UnitConfig
	if cfg.CatalogFile != "" {
		c, err := catalog.LoadFile(cfg.CatalogFile)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		unitCatalog = &c
		logger.Info("Loaded unit catalog", "file", cfg.CatalogFile)
	}

	ws, err := workspace.New(workspace.Options{
		Store:      store,
		Events:     events,
		Attendance: recorder,
		Catalog:    unitCatalog,
	})
	if err != nil {
		return fmt.Errorf("open workspace: %w", err)
	}

	authProvider := openAuth(cfg)
	guard := func(next http.HandlerFunc) http.HandlerFunc {
		return auth.RequireGroup(authProvider, cfg.OfficerGroup, next)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", authProvider.LoginHandler)
	mux.HandleFunc("/auth/callback", authProvider.CallbackHandler)
	mux.HandleFunc("/auth/logout", authProvider.LogoutHandler)
	mux.HandleFunc("/auth/me", authProvider.Middleware(meHandler))

	handlers.NewAPIHandlers(ws, events).Register(mux, guard)

	health := &handlers.Health{
		Checks: map[string]handlers.Check{
			"database": func(context.Context) error {
				_, err := store.History(1)
				return err
			},
			"nats": func(context.Context) error {
				if !up.Connected() {
					return errors.New("not connected")
				}
				return nil
			},
		},
		Critical: []string{"database"},
	}
	if p, ok := recorder.(pinger); ok {
		health.Checks["clickhouse"] = p.Ping
	}
	health.Register(mux)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	errCh := make(chan error, 3)

	grpcSrv := grpc.NewServer()
	grpcserver.RegisterRosterServiceServer(grpcSrv, grpcserver.NewServer(ws))
	lis, err := net.Listen("tcp", "0.0.0.0:"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen for gRPC on %s: %w", cfg.GRPCPort, err)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("gRPC server starting", "address", lis.Addr().String())
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- fmt.Errorf("serve gRPC: %w", err)
		}
	}()

	if cfg.InboxDir != "" {
		watcher := inbox.New(cfg.InboxDir, ws)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := watcher.Run(ctx); err != nil {
				errCh <- fmt.Errorf("inbox: %w", err)
			}
		}()
	}

	httpSrv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("Server starting", "address", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("serve HTTP: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case runErr = <-errCh:
		logger.Error("Server failed", "error", runErr)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	grpcSrv.GracefulStop()
	wg.Wait()
	return runErr
}

func openStore(cfg config.Config) (dal.DocumentDAL, error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		store, err := dal.NewSQLiteDAL(cfg.SQLiteFile, cfg.SnapshotHistory)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
		}
		logger.Info("Connected to SQLite database", "file", cfg.SQLiteFile)
		return store, nil
	case config.DriverPostgres:
		store, err := dal.NewPostgresDAL(cfg.DatabaseURL, cfg.SnapshotHistory)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres: %w", err)
		}
		logger.Info("Connected to Postgres database")
		return store, nil
	default:
		logger.Info("Using in-memory document store")
		return dal.NewMemoryDAL(cfg.SnapshotHistory), nil
	}
}

func openUpstream(cfg config.Config) (upstream, error) {
	switch {
	case cfg.NATSMode == config.NATSOff:
		logger.Info("NATS disabled, events stay in process")
		return mocks.NewMockNATSPubSub(), nil
	case cfg.UseEmbeddedNATS():
		opts := pubsub.DefaultEmbeddedNATSOptions()
		opts.Subject = cfg.NATSSubject
		embedded, err := pubsub.NewEmbeddedNATSPubSub(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedded NATS: %w", err)
		}
		logger.Info("Embedded NATS server ready", "url", embedded.ServerURL())
		return embedded, nil
	default:
		remote, err := pubsub.NewNATSPubSub(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize NATS: %w", err)
		}
		logger.Info("Connected to NATS", "url", cfg.NATSURL)
		return remote, nil
	}
}

func openRecorder(cfg config.Config) (clickhouse.AttendanceRecorder, error) {
	if cfg.Development() {
		logger.Info("Using mock ClickHouse for local development")
		return mocks.NewMockClickHouseClient(), nil
	}
	ch := cfg.ClickHouse
	client, err := clickhouse.NewClient(ch.Addr, ch.Database, ch.User, ch.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ClickHouse at %s: %w", ch.Addr, err)
	}
	logger.Info("Connected to ClickHouse", "address", ch.Addr, "database", ch.Database)
	return client, nil
}

func openAuth(cfg config.Config) auth.AuthProvider {
	if cfg.Development() {
		logger.Info("Using mock authentication for local development")
		return auth.NewMockAuth(cfg.OfficerGroup)
	}
	a := cfg.Authentik
	logger.Info("Using Authentik authentication", "url", a.BaseURL)
	return auth.NewAuthentikAuth(&auth.AuthentikConfig{
		BaseURL:      a.BaseURL,
		ClientID:     a.ClientID,
		ClientSecret: a.ClientSecret,
		RedirectURL:  a.RedirectURL,
		Scopes:       []string{"openid", "profile", "email"},
	})
}

func meHandler(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r)
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(user)
}
