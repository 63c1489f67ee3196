package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lemonberrylabs/tagexpr/pkg/api"
	grpcapi "github.com/lemonberrylabs/tagexpr/pkg/api/grpc"
	"github.com/lemonberrylabs/tagexpr/pkg/observability"
	"github.com/lemonberrylabs/tagexpr/pkg/store"
	"github.com/lemonberrylabs/tagexpr/web"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API, web UI and gRPC service",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().Int("port", 0, "HTTP server port (default 8787, env PORT)")
	cmd.Flags().Int("grpc-port", 0, "gRPC server port (default 8788, env GRPC_PORT)")
	cmd.Flags().String("host", "", "Bind address (default 0.0.0.0, env HOST)")
	cmd.Flags().String("selectors-dir", "", "Directory of selector YAML files to load at startup (env SELECTORS_DIR)")
	cmd.Flags().String("db", "", "SQLite database file for selectors; in-memory when empty (env TAGEXPR_DB)")
	cmd.Flags().Bool("metrics", false, "Record metrics and serve them at /v1/metrics (env TAGEXPR_METRICS)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	port := envOrDefault("PORT", "8787")
	if v, _ := cmd.Flags().GetInt("port"); v != 0 {
		port = fmt.Sprintf("%d", v)
	}

	grpcPort := envOrDefault("GRPC_PORT", "8788")
	if v, _ := cmd.Flags().GetInt("grpc-port"); v != 0 {
		grpcPort = fmt.Sprintf("%d", v)
	}

	host := envOrDefault("HOST", "0.0.0.0")
	if v, _ := cmd.Flags().GetString("host"); v != "" {
		host = v
	}

	selectorsDir := os.Getenv("SELECTORS_DIR")
	if v, _ := cmd.Flags().GetString("selectors-dir"); v != "" {
		selectorsDir = v
	}

	dbPath := os.Getenv("TAGEXPR_DB")
	if v, _ := cmd.Flags().GetString("db"); v != "" {
		dbPath = v
	}

	metricsEnabled := envOrDefault("TAGEXPR_METRICS", "") == "true"
	if cmd.Flags().Changed("metrics") {
		metricsEnabled, _ = cmd.Flags().GetBool("metrics")
	}

	addr := fmt.Sprintf("%s:%s", host, port)
	grpcAddr := fmt.Sprintf("%s:%s", host, grpcPort)

	s, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer s.Close()

	var apiOpts []api.Option
	var grpcOpts []grpcapi.Option
	if metricsEnabled {
		provider := observability.NewProvider()
		provider.Install()
		defer provider.Shutdown(context.Background())

		recorder := observability.NewRecorder()
		tracer := observability.NewTracer()
		apiOpts = append(apiOpts,
			api.WithRecorder(recorder),
			api.WithTracer(tracer),
			api.WithMetricsEndpoint(provider),
		)
		grpcOpts = append(grpcOpts, grpcapi.WithRecorder(recorder), grpcapi.WithTracer(tracer))
	}

	server := api.New(s, apiOpts...)

	// Load selectors from directory if specified
	if selectorsDir != "" {
		n, err := server.LoadDir(selectorsDir)
		if err != nil {
			log.Printf("Warning: failed to load selectors directory: %v", err)
		} else {
			log.Printf("Loaded %d selector(s) from %s", n, selectorsDir)
		}
	}

	// Register the web UI (non-fatal if template parsing fails)
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("Warning: web UI disabled due to template error: %v", r)
			}
		}()
		ui := web.New(s)
		ui.Register(server.App())
	}()

	// Start gRPC server
	grpcServer := grpcapi.New(s, grpcOpts...)
	go func() {
		log.Printf("gRPC server listening on %s", grpcAddr)
		if err := grpcServer.Serve(grpcAddr); err != nil {
			log.Fatalf("gRPC server error: %v", err)
		}
	}()

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down tagexpr...")
		grpcServer.GracefulStop()
		if err := server.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	log.Printf("tagexpr %s listening on %s (metrics=%t)", version, addr, metricsEnabled)
	if selectorsDir == "" {
		log.Printf("No --selectors-dir specified, selectors come from the API only")
	}
	return server.Listen(addr)
}

// openStore opens the SQLite store at path, or an in-memory store when
// path is empty.
func openStore(path string) (store.Store, error) {
	if path == "" {
		return store.NewMemoryStore(), nil
	}
	s, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, err
	}
	log.Printf("Selectors stored in %s", path)
	return s, nil
}
