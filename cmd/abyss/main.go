package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/roleplayabyss/abyss/internal/archive"
	"github.com/roleplayabyss/abyss/internal/character"
	"github.com/roleplayabyss/abyss/internal/chat"
	"github.com/roleplayabyss/abyss/internal/config"
	"github.com/roleplayabyss/abyss/internal/enrich"
	"github.com/roleplayabyss/abyss/internal/inference"
	"github.com/roleplayabyss/abyss/internal/mcp"
	"github.com/roleplayabyss/abyss/internal/transcript"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"character": true, "chat": true,
	"sessions": true, "history": true,
	"web": true, "help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	// Known subcommand → CLI
	if cliCommands[arg] {
		return true
	}
	// --help or --version → CLI
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// isUnknownCommand returns true when an argument was given that is neither
// a known subcommand nor a help/version flag. Such runs always error out;
// they never fall through to MCP server mode.
func isUnknownCommand() bool {
	return len(os.Args) >= 2 && !isCLIMode()
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
     _   _
    /_\ | |__ _  _ ______
   / _ \| '_ \ || (_-<_-<
  /_/ \_\_.__/\_, /__/__/
              |__/

  Local roleplay chat engine

  Usage: abyss <command> [options]
         abyss --help

  MCP server mode requires piped input.`)
}

func main() {
	// Optional .env next to the binary's working directory.
	_ = godotenv.Load()

	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before any storage init (none needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}

	baseDir := filepath.Join(homeDir, ".abyss")

	database, err := archive.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize archive database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	cfg, err := config.Load(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	store, err := character.NewFileStore(filepath.Join(baseDir, "characters"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to open character store: %v\n", err)
		os.Exit(1)
	}

	logger, err := transcript.New(filepath.Join(baseDir, "transcripts"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to open transcript directory: %v\n", err)
		os.Exit(1)
	}

	client := inference.New(cfg.Endpoint, time.Duration(cfg.TimeoutSeconds)*time.Second)

	var describe func(context.Context, string) string
	if cfg.EnrichmentOn() {
		describe = enrich.Default().Describe
	}

	deps := &appDeps{
		db:       database,
		cfg:      cfg,
		store:    store,
		logger:   logger,
		client:   client,
		describe: describe,
	}

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(deps)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument → show error, piped or not (don't start MCP server)
	if isUnknownCommand() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'abyss --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (no args, piped stdin)
	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		fmt.Fprintf(os.Stderr, "warning: unknown disabled tools: %s\n", strings.Join(unknown, ", "))
	}
	if unknown := mcp.ValidateDisabledTypes(cfg.DisabledTypes); len(unknown) > 0 {
		fmt.Fprintf(os.Stderr, "warning: unknown disabled types: %s\n", strings.Join(unknown, ", "))
	}

	newEngine := func() *chat.Engine {
		return chat.NewEngine(store, client, logger, database, cfg)
	}
	h := mcp.NewHandlers(store, newEngine, database, deps.describe)
	if err := mcp.Run(h, cfg, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
