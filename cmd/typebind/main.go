// Copyright 2025 The typebind Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main implements the typebind IPC server and CLI [DBG] application.

Note: This is a BETA release. APIs and functionality may rapidly change.

typebind wires search inputs to a remote suggestion endpoint. Every keystroke
is turned into a request against a URL template carrying the index identifier:

	_ui/_suggest?query=<QUERY>&index=<INDEX>

Responses are JSON arrays of datums; the value field of each datum is what is
rendered and what is written into the input when a suggestion is selected.

# Usage

Start the IPC server against a local search backend:

	typebind -base http://localhost:8080/ -index products

Run in CLI mode for interactive testing, with debug logs:

	typebind -c -index products -d

# Configuration

Runtime configuration lives in a TOML (or YAML, chosen by extension) file:

	[binder]
	index = "products"
	template = "_ui/_suggest?query=%QUERY&index="
	limit = 5

	[remote]
	base_url = "http://localhost:8080/"
	rate_limit = "debounce"
	rate_wait_ms = 300

	[cache]
	enabled = true
	size = 10

The config file is created with defaults if it doesn't exist. Values can be
overridden by TYPEBIND_BASE_URL, TYPEBIND_INDEX, TYPEBIND_TEMPLATE and
TYPEBIND_LOG_LEVEL, read from the environment or a .env file in the working
directory.

# IPC Protocol

The server speaks MessagePack over stdin/stdout:

	{"id": "b1", "action": "bind", "index": "products"}
	{"id": "t1", "action": "type", "q": "red"}
	{"id": "render", "q": "red", "s": [{"d": "suggestions", "v": "Red Sneakers", "l": "Red Sneakers"}], "c": 1}

See package server for every message.

# Command Line Flags

	-config string
	    Path to a TOML or YAML config file
	-index string
	    Index identifier (overrides config)
	-base string
	    Base URL of the suggestion endpoint (overrides config)
	-save
	    Write -index and -base back into the config file
	-d  Enable debug mode with detailed logging
	-c  Run in CLI mode instead of server mode
	-version
	    Show current version
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bastiangx/typebind/internal/cli"
	"github.com/bastiangx/typebind/internal/logger"
	"github.com/bastiangx/typebind/pkg/binder"
	"github.com/bastiangx/typebind/pkg/config"
	"github.com/bastiangx/typebind/pkg/remote"
	"github.com/bastiangx/typebind/pkg/server"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

const (
	Version = "0.3.0-beta"
	AppName = "typebind"
	gh      = "https://github.com/bastiangx/typebind"
)

// sigHandler cancels the returned context on the first signal and exits on the second.
func sigHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		fmt.Fprintf(os.Stderr, "\nExiting...\n")
		cancel()
		<-c
		os.Exit(0)
	}()
	return ctx
}

// main wires config, transport and binder, then hands over to the server or CLI.
func main() {
	ctx := sigHandler()

	showVersion := flag.Bool("version", false, "Show current version")
	configFile := flag.String("config", "", "Path to a TOML or YAML config file")
	index := flag.String("index", "", "Index identifier (overrides config)")
	baseURL := flag.String("base", "", "Base URL of the suggestion endpoint (overrides config)")
	save := flag.Bool("save", false, "Write -index and -base back into the config file")
	debugMode := flag.Bool("d", false, "Toggle debug mode")
	cliMode := flag.Bool("c", false, "Run CLI -- useful for testing and debugging")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	appConfig, configPath, err := config.LoadConfigWithPriority(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	appConfig.ApplyEnv(".env")

	if *debugMode {
		log.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
	} else {
		log.SetLevel(appConfig.LogLevel())
	}

	var indexOverride, baseOverride *string
	if *index != "" {
		indexOverride = index
		appConfig.Binder.Index = *index
	}
	if *baseURL != "" {
		baseOverride = baseURL
		appConfig.Remote.BaseURL = *baseURL
	}
	if *save && configPath != "" {
		if err := appConfig.Update(configPath, indexOverride, baseOverride); err != nil {
			log.Errorf("Failed to save config to %s: %v", configPath, err)
		} else {
			log.Infof("Saved config to %s", configPath)
		}
	}

	opts := appConfig.TransportOptions()
	opts.Logger = logger.New("remote")
	transport, err := remote.NewTransport(opts)
	if err != nil {
		log.Fatalf("Failed to create transport: %v", err)
	}

	binderConfig, err := appConfig.BinderConfig()
	if err != nil {
		log.Fatalf("Invalid binder config: %v", err)
	}
	binderConfig.Logger = logger.New("binder")
	b := binder.New(binderConfig, transport)

	// CLI would be mainly used for testing and dbg purposes.
	if *cliMode {
		log.SetReportTimestamp(false)
		log.Debug("CLI info:",
			"index", appConfig.Binder.Index,
			"base", appConfig.Remote.BaseURL,
			"limit", appConfig.Binder.Limit)

		inputHandler := cli.NewInputHandler(b, cli.Options{
			Index:         appConfig.Binder.Index,
			IndexSelector: appConfig.Binder.IndexSelector,
			InputSelector: appConfig.Binder.InputSelector,
			Prompt:        appConfig.CLI.Prompt,
			ShowRaw:       appConfig.CLI.ShowRaw,
			Logger:        logger.NewWithConfig(os.Stderr, "cli", log.GetLevel(), false, false, log.TextFormatter),
		})
		if err := inputHandler.Start(ctx); err != nil {
			log.Fatalf("CLI error: %v", err)
		}
		return
	}

	log.Debug("spawning IPC")
	srv := server.NewServer(b, server.Options{
		Index:         appConfig.Binder.Index,
		IndexSelector: appConfig.Binder.IndexSelector,
		InputSelector: appConfig.Binder.InputSelector,
		Dataset:       appConfig.Binder.Dataset,
		MaxQueryLen:   appConfig.Server.MaxQueryLen,
		Logger:        logger.New("server"),
	})
	defer srv.Close()

	showStartupInfo(appConfig, configPath)

	if err := srv.Start(ctx); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func printVersion() {
	l := log.NewWithOptions(os.Stderr, log.Options{
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
	l.SetStyles(styles)

	l.Print("")
	l.Print("[ typebind ] Search-as-you-type suggestions for any input")
	l.Print("", "version", Version)
	l.Print("")
	l.Print("use -h or --help to see available options")
	l.Print("Github Repo", "gh", gh)
}

// showStartupInfo displays some basic info about the init process.
// It writes to stderr; stdout carries the IPC stream.
func showStartupInfo(cfg *config.Config, configPath string) {
	pid := os.Getpid()
	currentLevel := log.GetLevel()
	log.SetLevel(log.InfoLevel)

	println("===========")
	println(" typebind  ")
	println("===========")
	log.Infof("Version: %s", Version)
	log.Infof("Process ID: [ %d ]", pid)
	log.Infof("config: ( %s )", config.GetActiveConfigPath(configPath))
	log.Infof("endpoint: ( %s )", cfg.Remote.BaseURL)
	log.Infof("index: ( %q )", cfg.Binder.Index)
	log.Info("status: ready")
	println("===========")
	println("Press Ctrl+C to exit")

	log.SetLevel(currentLevel)
}
