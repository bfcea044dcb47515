// Copyright 2025 The PlaceServe Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main implements the place prediction server and CLI [DBG] application.

Note: This is a BETA release. APIs and functionality may rapidly change.

PlaceServe answers place autocomplete lookups from a local index of places
kept in a Patricia trie and ranked by place rank. It can operate as a
MessagePack IPC server for editors and other processes, or as a CLI that drives
the debounced autocomplete controller for testing and debugging.

# Usage

Start the server with default settings:

	placeserve

Use a custom data file and enable debug mode:

	placeserve -data /path/to/places.msgpack -d

Run in CLI mode against the local index:

	placeserve -c -limit 10 -debounce 100

Run in CLI mode against another placeserve process over IPC:

	placeserve -c -remote ./placeserve

The data file is TOML with [[place]] tables or a MessagePack array of places,
chosen by extension (.toml, .msgpack, .mpk).

# Configuration

Runtime configuration lives in a TOML file that is created with defaults when
missing:

	[autocomplete]
	debounce_ms = 200

	[provider]
	data = "data/places.toml"
	default_limit = 5
	max_limit = 20
	fuzzy = true

	[server]
	rate_limit = 50.0
	burst = 10
	watch_config = true

With watch_config set, the server reloads the file on change and applies the
rate limit and the index options without restart.

# IPC Protocol

The server writes a ready message, then answers one response per request:

	{"id": "", "st": "ready"}
	{"id": "req1", "p": "wel", "l": 5, "cc": "nz"}
	{"id": "req1", "st": "OK", "s": [...], "c": 3, "t": 85}

Requests with "op": "health" or "op": "stats" report liveness and counters.

# Command Line Flags

	-config string
	    Path to config.toml (default user config dir)
	-reset-config
	    Rewrite the default config file and exit
	-data string
	    Places data file (default from config)
	-d  Enable debug mode with detailed logging
	-c  Run CLI -- useful for testing and debugging
	-remote string
	    In CLI mode, spawn this placeserve binary and query it over IPC
	-debounce int
	    Debounce wait in ms for CLI mode (default from config)
	-limit int
	    Number of suggestions to return (default from config)
	-no-filter
	    Disable input filtering in CLI mode
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bastiangx/placeserve/internal/cli"
	"github.com/bastiangx/placeserve/internal/utils"
	"github.com/bastiangx/placeserve/pkg/autocomplete"
	"github.com/bastiangx/placeserve/pkg/config"
	"github.com/bastiangx/placeserve/pkg/index"
	"github.com/bastiangx/placeserve/pkg/places"
	"github.com/bastiangx/placeserve/pkg/remote"
	"github.com/bastiangx/placeserve/pkg/server"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

const (
	Version = "0.1.0-beta"
	AppName = "placeserve"
	gh      = "https://github.com/bastiangx/placeserve"
)

// main manages the flow between the index, the server and the CLI; it does
// not implement logic for them.
func main() {
	defaultConfig := config.DefaultConfig()

	showVersion := flag.Bool("version", false, "Show current version")
	configPath := flag.String("config", "", "Path to config.toml")
	resetConfig := flag.Bool("reset-config", false, "Rewrite the default config file and exit")
	dataFile := flag.String("data", "", "Places data file (.toml, .msgpack)")
	debugMode := flag.Bool("d", false, "Toggle debug mode")
	cliMode := flag.Bool("c", false, "Run CLI -- useful for testing and debugging")
	remoteBin := flag.String("remote", "", "CLI only: spawn this placeserve binary and query it over IPC")
	debounceMs := flag.Int("debounce", -1, "Debounce wait in ms for CLI mode (default from config)")
	limit := flag.Int("limit", 0, "Number of suggestions to return (default from config)")
	noFilter := flag.Bool("no-filter", defaultConfig.CLI.NoFilter, "Disable input filtering (DBG only)")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if *debugMode {
		log.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
	} else {
		log.SetLevel(log.WarnLevel)
	}

	if *resetConfig {
		if err := config.RebuildConfigFile(); err != nil {
			log.Fatalf("Failed to rebuild config: %v", err)
		}
		fmt.Fprintf(os.Stderr, "config written to %s\n", config.GetActiveConfigPath(""))
		os.Exit(0)
	}

	appConfig, activePath, err := config.LoadConfigWithPriority(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Debugf("Using config file: (%s)", config.GetActiveConfigPath(activePath))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *cliMode {
		log.SetReportTimestamp(false)
		if *limit > 0 {
			appConfig.Provider.DefaultLimit = *limit
		}
		if *debounceMs >= 0 {
			appConfig.Autocomplete.DebounceMs = *debounceMs
		}
		noFilterCLI := *noFilter || appConfig.CLI.NoFilter

		var err error
		if *remoteBin != "" {
			err = runRemoteCLI(ctx, appConfig, *remoteBin, *configPath, *dataFile, noFilterCLI)
		} else {
			err = runLocalCLI(appConfig, loadIndex(appConfig, *dataFile), noFilterCLI)
		}
		if err != nil {
			log.Fatalf("CLI error: %v", err)
		}
		return
	}

	ix := loadIndex(appConfig, *dataFile)
	srv := server.NewServer(ix, appConfig)
	showStartupInfo(ix)

	if err := serve(ctx, stop, srv, ix, activePath, appConfig.Server.WatchConfig); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// loadIndex resolves the data file and builds the index from it. A missing or
// broken file leaves an empty index so the server still answers.
func loadIndex(cfg *config.Config, dataFlag string) *index.Index {
	ix := index.New(indexOptions(cfg))

	dataPath := dataFlag
	if dataPath == "" {
		dataPath = cfg.Provider.Data
	}
	if dataPath == "" {
		log.Warn("No data file specified, running with empty index...")
		return ix
	}

	pathResolver, err := utils.NewPathResolver()
	if err != nil {
		log.Errorf("Failed to initialize path resolver: %v", err)
		log.Print("Either env is not set or system is not supported")
	} else {
		log.Debugf("Runtime info: %v", pathResolver.GetRuntimeInfo())
		dataPath = pathResolver.GetDataFile(dataPath)
	}

	log.Debugf("Using data file at: %s", dataPath)
	n, err := index.LoadFile(ix, dataPath)
	if err != nil {
		log.Errorf("Failed to load places from %s: %v", dataPath, err)
		return ix
	}
	log.Debug("Index init done", "places", n, "keys", ix.Stats()["keys"])
	return ix
}

func indexOptions(cfg *config.Config) index.Options {
	return index.Options{
		MinPrefix:    cfg.Provider.MinPrefix,
		MaxPrefix:    cfg.Provider.MaxPrefix,
		DefaultLimit: cfg.Provider.DefaultLimit,
		MaxLimit:     cfg.Provider.MaxLimit,
		Fuzzy:        cfg.Provider.Fuzzy,
	}
}

func controllerOptions(cfg *config.Config) []autocomplete.Option {
	return []autocomplete.Option{
		autocomplete.WithDebounce(cfg.Autocomplete.Debounce()),
		autocomplete.WithDefaultValue(cfg.Autocomplete.DefaultValue),
	}
}

func runLocalCLI(cfg *config.Config, ix *index.Index, noFilter bool) error {
	ac := places.New([]places.AdapterOption{places.WithLibrary(ix)}, controllerOptions(cfg)...)
	defer ac.Close()

	log.Debug("Input info:", "debounce", cfg.Autocomplete.Debounce(), "limit", cfg.Provider.DefaultLimit, "noFilter", noFilter)
	return cli.NewInputHandler(ac, cfg.CLI.ShowTypes, noFilter).Start()
}

// runRemoteCLI starts the CLI right away with a deferred adapter; lookups
// answer NOT_READY until the spawned server sends its ready message.
func runRemoteCLI(ctx context.Context, cfg *config.Config, bin, configFlag, dataFlag string, noFilter bool) error {
	loader := places.NewLoader()
	ac := places.New([]places.AdapterOption{
		places.WithLoader(loader),
		places.WithDeferredLoad(),
		places.WithRequestOptions(places.RequestOptions{Limit: cfg.Provider.DefaultLimit}),
	}, controllerOptions(cfg)...)

	var args []string
	if configFlag != "" {
		args = append(args, "-config", configFlag)
	}
	if dataFlag != "" {
		args = append(args, "-data", dataFlag)
	}

	clients := make(chan *remote.Client, 1)
	go func() {
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		client, err := remote.Spawn(dialCtx, bin, args...)
		if err != nil {
			log.Errorf("Failed to start remote server %s: %v", bin, err)
			close(clients)
			return
		}
		clients <- client
		loader.Load(client)
		log.Debug("remote server ready", "bin", bin)
	}()

	err := cli.NewInputHandler(ac, cfg.CLI.ShowTypes, noFilter).Start()

	ac.Close()
	if client, ok := <-clients; ok {
		if cerr := client.Close(); cerr != nil {
			log.Warnf("Failed to stop remote server: %v", cerr)
		}
	}
	return err
}

// serve runs the IPC server, plus the config watcher when enabled, until
// stdin closes or a signal arrives.
func serve(ctx context.Context, stop context.CancelFunc, srv *server.Server, ix *index.Index, configPath string, watch bool) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// end of stdin ends the process
		defer stop()
		return srv.Serve(gctx)
	})

	if watch && configPath != "" {
		watcher, err := config.NewWatcher(configPath, config.DefaultReloadDelay)
		if err != nil {
			log.Warnf("Config watching disabled: %v", err)
		} else {
			defer watcher.Close()
			watcher.OnReload(func(cfg *config.Config) error {
				srv.ApplyConfig(cfg)
				ix.SetOptions(indexOptions(cfg))
				return nil
			})
			g.Go(func() error {
				return watcher.Run(gctx)
			})
		}
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// Serve may still be blocked reading stdin
		fmt.Fprintf(os.Stderr, "\nExiting...\n")
		select {
		case err := <-done:
			return err
		case <-time.After(500 * time.Millisecond):
			return nil
		}
	}
}

func printVersion() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    false,
		ReportTimestamp: false,
		Prefix:          "",
	})

	styles := log.DefaultStyles()
	styles.Values["version"] = lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"}).
		Background(lipgloss.AdaptiveColor{Light: "#f2e9e1", Dark: "#26233a"})
	styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	logger.SetStyles(styles)

	logger.Print("")
	logger.Print("[ PlaceServe ] Debounced place autocomplete")
	logger.Print("", "version", Version)
	logger.Print("")
	logger.Print("use -h or --help to see available options")
	logger.Print("Github Repo", "gh", gh)
}

// showStartupInfo displays some basic info about the init process on stderr.
func showStartupInfo(ix *index.Index) {
	currentLevel := log.GetLevel()
	log.SetLevel(log.InfoLevel)

	fmt.Fprintln(os.Stderr, "============")
	fmt.Fprintln(os.Stderr, " PlaceServe ")
	fmt.Fprintln(os.Stderr, "============")
	log.Infof("Version: %s", Version)
	log.Infof("Process ID: [ %d ]", os.Getpid())
	log.Info("index", "places", ix.Len(), "keys", ix.Stats()["keys"])
	log.Info("status: ready")
	fmt.Fprintln(os.Stderr, "============")

	log.SetLevel(currentLevel)
}
