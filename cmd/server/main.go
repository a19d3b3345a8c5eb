package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/AdhikowshikJ/cli-chat/pkg/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Version is set at build time via ldflags
	Version = "dev"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	configPath := flag.String("config", "~/.cli-chat/config.toml", "Path to config file")
	port := flag.Int("port", 0, "TCP port to listen on (overrides config)")
	httpPort := flag.Int("http-port", 0, "HTTP port for /metrics and /ws (overrides config, 0 = config value)")
	dbPath := flag.String("db", "", "Path to credential database (overrides config)")
	uploadDir := flag.String("uploads", "", "Upload directory (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	version := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *version {
		fmt.Printf("cli-chat server %s\n", Version)
		os.Exit(0)
	}

	// Load configuration (creates default if not found)
	config, err := server.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Command-line flags override config file
	if *port != 0 {
		config.Server.TCPPort = *port
	}
	if *httpPort != 0 {
		config.Server.HTTPPort = *httpPort
	}
	if *dbPath != "" {
		config.Server.DatabasePath = *dbPath
	}
	if *uploadDir != "" {
		config.Files.UploadDir = *uploadDir
	}

	finalDBPath, err := config.GetDatabasePath()
	if err != nil {
		log.Fatalf("Failed to resolve database path: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(finalDBPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	finalUploadDir, err := config.GetUploadDir()
	if err != nil {
		log.Fatalf("Failed to resolve upload directory: %v", err)
	}

	srv, err := server.NewServer(finalDBPath, finalUploadDir, config.ToServerConfig())
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	if *debug {
		server.EnableDebugLogging()
		log.Printf("Debug logging enabled")
	}

	srv.EnableMetrics()

	log.Printf("Database: %s", finalDBPath)
	log.Printf("Uploads: %s", finalUploadDir)

	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	// HTTP side: Prometheus metrics, health check, WebSocket transport
	if config.Server.HTTPPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok\n"))
		})
		mux.HandleFunc("/ws", srv.HandleWebSocket)

		httpAddr := fmt.Sprintf(":%d", config.Server.HTTPPort)
		go func() {
			log.Printf("HTTP server listening on %s (/metrics, /healthz, /ws)", httpAddr)
			if err := http.ListenAndServe(httpAddr, mux); err != nil {
				log.Printf("HTTP server error: %v", err)
			}
		}()
	}

	log.Printf("cli-chat server %s started on port %d", Version, config.Server.TCPPort)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Printf("Shutting down...")
	if err := srv.Stop(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
