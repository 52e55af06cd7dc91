// Command voxbridge runs the bridge standalone against an in-memory editor
// stub. Inside the real host the plugin package is embedded directly; this
// harness exists for development and integration testing against live MCP
// clients.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/VoxelHaus/voxbridge/internal/config"
	"github.com/VoxelHaus/voxbridge/internal/editor"
	"github.com/VoxelHaus/voxbridge/internal/logger"
	"github.com/VoxelHaus/voxbridge/internal/plugin"
)

// Version is set at build time via -ldflags "-X main.Version=v1.0.0"
var Version = "dev"

// consoleNotifier satisfies the host notifier contract on stdout/stderr
type consoleNotifier struct{}

func (consoleNotifier) Notify(message string) {
	fmt.Println(message)
}

func (consoleNotifier) FatalError(err error) {
	fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
}

func main() {
	showVersion := flag.Bool("version", false, "Print version and exit")
	configDir := flag.String("config", ".", "Directory containing voxbridge.jsonc")
	initFlag := flag.Bool("init", false, "Write a default config file and exit")
	port := flag.Int("port", 0, "Override the listening port")
	mountPath := flag.String("mount-path", "", "Override the RPC mount path")
	flag.Parse()

	if *showVersion {
		fmt.Printf("voxbridge %s\n", Version)
		return
	}

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *mountPath != "" {
		cfg.Server.MountPath = *mountPath
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	if err := logger.Init(cfg.LogDir); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Close() }()

	ctx := plugin.New(cfg, editor.NewStub("dev-harness"), consoleNotifier{})

	if *initFlag {
		if err := ctx.Install(*configDir); err != nil {
			logger.Fatalf("Install failed: %v", err)
		}
		fmt.Printf("Initialized config in %s\n", *configDir)
		return
	}

	if err := ctx.Load(); err != nil {
		logger.Fatalf("Failed to load plugin: %v", err)
	}

	logger.Printf("voxbridge %s ready on port %d (mount path %s)",
		Version, cfg.Server.Port, cfg.Server.MountPath)

	// Log handshakes as they complete, the way the host status UI would
	go func() {
		for s := range ctx.Handshakes() {
			logger.Info("Client connected: %s (%s %s)", s.ID, s.ClientName, s.ClientVersion)
		}
	}()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-ctx.ServeError():
		logger.Error("Server error: %v", err)
		ctx.Unload()
		os.Exit(1)
	case sig := <-shutdownChan:
		logger.Printf("Received signal %v, shutting down...", sig)
		ctx.Unload()
	}
}
