// ABOUTME: Entry point for the oneblock-gateway wallet authentication server
// ABOUTME: Provides serve, init, bootstrap and health commands

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/oneblock/oneblock-gateway/internal/admin"
	"github.com/oneblock/oneblock-gateway/internal/config"
	"github.com/oneblock/oneblock-gateway/internal/gateway"
	"github.com/oneblock/oneblock-gateway/internal/store"
)

// Version is set at build time.
var version = "dev"

const banner = `
                   _     _            _
  ___  _ __   ___ | |__ | | ___   ___| | __
 / _ \| '_ \ / _ \| '_ \| |/ _ \ / __| |/ /
| (_) | | | |  __/| |_) | | (_) | (__|   <
 \___/|_| |_|\___||_.__/|_|\___/ \___|_|\_\
`

// getConfigPath returns the path to the gateway config file.
// Priority: ONEBLOCK_CONFIG env var > XDG_CONFIG_HOME/oneblock/gateway.yaml > ~/.config/oneblock/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv(config.EnvConfigPath); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "oneblock", "gateway.yaml")
}

// getDataPath returns the path to the oneblock data directory.
// Priority: XDG_DATA_HOME/oneblock > ~/.local/share/oneblock
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "oneblock")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: oneblock-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                        Start the gateway server")
		fmt.Println("  init                         Write a starter config file")
		fmt.Println("  bootstrap --address ADDRESS  Provision the first admin wallet")
		fmt.Println("  health                       Check gateway readiness")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "bootstrap":
		err = runBootstrap(ctx, os.Args[2:])
	case "health":
		err = runHealth(ctx)
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Driver)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	if cfg.Server.GRPCAddr != "" {
		green.Print("    ▶ ")
		fmt.Printf("gRPC:      %s\n", cfg.Server.GRPCAddr)
	}
	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}
	fmt.Println()

	logger.Info("starting oneblock-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"grpc_addr", cfg.Server.GRPCAddr,
	)

	gw, err := gateway.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func runInit() error {
	configPath := getConfigPath()
	dataPath := getDataPath()

	if err := config.WriteSample(configPath, dataPath); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Created config: %s\n", configPath)
	fmt.Printf("    Data directory: %s\n", dataPath)
	fmt.Println()
	fmt.Println("  Next:")
	fmt.Println("    oneblock-gateway bootstrap --address 0x...   # first admin wallet")
	fmt.Println("    oneblock-gateway serve")
	return nil
}

// runBootstrap provisions the first admin staff record directly in the store.
// It refuses to run once any staff exists.
func runBootstrap(ctx context.Context, args []string) error {
	var address, name string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--address" || arg == "-a":
			if i+1 >= len(args) {
				return fmt.Errorf("--address requires a value")
			}
			address = args[i+1]
			i++
		case strings.HasPrefix(arg, "--address="):
			address = strings.TrimPrefix(arg, "--address=")
		case arg == "--name" || arg == "-n":
			if i+1 >= len(args) {
				return fmt.Errorf("--name requires a value")
			}
			name = args[i+1]
			i++
		case strings.HasPrefix(arg, "--name="):
			name = strings.TrimPrefix(arg, "--name=")
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}
	if address == "" {
		return fmt.Errorf("--address flag is required")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	s, err := gateway.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	existing, err := s.ListStaff(ctx)
	if err != nil {
		return fmt.Errorf("checking staff: %w", err)
	}
	if len(existing) > 0 {
		return fmt.Errorf("bootstrap already complete: %d staff record(s) exist", len(existing))
	}

	svc := admin.NewService(s, setupLogger(cfg.Logging))
	staff, err := svc.AddStaff(ctx, "bootstrap", admin.StaffRequest{
		Address:     address,
		Role:        store.StaffRoleAdmin,
		DisplayName: name,
	})
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Provisioned admin %s (id %d)\n", staff.Address, staff.ID)
	return nil
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Server.HTTPAddr == "" {
		return errors.New("server.http_addr is not set; health checks over tailscale are not supported")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	url := fmt.Sprintf("http://%s/health/ready", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}
