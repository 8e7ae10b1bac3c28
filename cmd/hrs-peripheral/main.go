package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Hemanth143-hy/heart-rate-server/internal/ble"
	"github.com/Hemanth143-hy/heart-rate-server/internal/config"
	"github.com/Hemanth143-hy/heart-rate-server/internal/hrs"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/heart-rate-server/config.yaml)")
	dump := flag.Bool("dump", false, "print the attribute database and index, then exit")
	initConfig := flag.Bool("init", false, "write the default config file if none exists, then exit")
	flag.Parse()

	if *initConfig {
		path, err := config.WriteDefault()
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		if path == "" {
			log.Printf("Config already exists at %s", config.DefaultConfigPath())
		} else {
			log.Printf("Default config written to %s", path)
		}
		return
	}

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	})))

	state, err := hrs.NewState(cfg.DeviceInfo.Info())
	if err != nil {
		log.Fatalf("Failed to build peripheral state: %v", err)
	}

	db := hrs.Database()
	if err := state.Index().Verify(db); err != nil {
		log.Fatalf("Attribute index does not match database: %v", err)
	}
	if err := db.VerifyImage(); err != nil {
		log.Fatalf("Attribute database image: %v", err)
	}

	if *dump {
		if err := db.Dump(os.Stdout); err != nil {
			log.Fatalf("dump: %v", err)
		}
		fmt.Println()
		if err := state.Index().Dump(os.Stdout); err != nil {
			log.Fatalf("dump: %v", err)
		}
		return
	}

	printBanner(cfg)

	for _, r := range state.Gaps() {
		slog.Warn("attribute value not backed by the index", "handle", fmt.Sprintf("0x%04X", r.Handle), "type", r.String())
	}

	adapter, err := ble.NewTinygoAdapter()
	if err != nil {
		log.Fatalf("Failed to initialize BLE adapter: %v", err)
	}

	opts := ble.DefaultOptions()
	opts.LocalName = hrs.DeviceName
	opts.Interval = cfg.Advertise.Interval()
	peripheral, err := ble.NewPeripheral(adapter, db, state.Index(), opts)
	if err != nil {
		log.Fatalf("Failed to create peripheral: %v", err)
	}

	// Signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if err := peripheral.Start(); err != nil {
		log.Fatalf("Failed to start peripheral: %v\n\nCheck that bluetoothd is running and the adapter is powered.", err)
	}

	log.Printf("Ready! Advertising as %q. Ctrl+C to quit.", hrs.DeviceName)

	sig := <-sigCh
	log.Printf("Received %s, shutting down...", sig)
	if err := peripheral.Stop(); err != nil {
		log.Printf("ERROR: %v", err)
	}
	log.Println("Goodbye!")
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	// Try default config path
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	// No config file, use defaults
	log.Println("No config file found, using defaults")
	return config.Default(), nil
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	fmt.Println("=== heart-rate-server ===")
	fmt.Printf("  Name:      %s\n", hrs.DeviceName)
	fmt.Printf("  Device:    %s %s\n", cfg.DeviceInfo.Manufacturer, cfg.DeviceInfo.Model)
	fmt.Printf("  Firmware:  %s (software %s)\n", cfg.DeviceInfo.Firmware, cfg.DeviceInfo.Software)
	fmt.Printf("  Advertise: every %s\n", cfg.Advertise.Interval())
	fmt.Printf("  Database:  %d attributes, %d byte image\n", hrs.Database().Len(), hrs.Database().ImageLen())
	fmt.Printf("  Log:       %s\n", cfg.LogLevel)
	fmt.Println("=========================")
}
