package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/roleplayabyss/abyss/internal/archive"
	"github.com/roleplayabyss/abyss/internal/character"
	"github.com/roleplayabyss/abyss/internal/chat"
	"github.com/roleplayabyss/abyss/internal/config"
	"github.com/roleplayabyss/abyss/internal/errors"
	"github.com/roleplayabyss/abyss/internal/inference"
	"github.com/roleplayabyss/abyss/internal/transcript"
	"github.com/roleplayabyss/abyss/internal/web"
)

// appDeps bundles the shared collaborators of the CLI commands.
type appDeps struct {
	db       *sql.DB
	cfg      *config.Config
	store    *character.FileStore
	logger   *transcript.Logger
	client   *inference.Client
	describe func(context.Context, string) string
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(deps *appDeps) *cli.App {
	app := &cli.App{
		Name:    "abyss",
		Usage:   "Local roleplay chat engine",
		Version: Version,
		Commands: []*cli.Command{
			characterCmd(deps),
			chatCmd(deps),
			sessionsCmd(deps),
			historyCmd(deps),
			webCmd(deps),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// characterCmd groups the character management subcommands.
func characterCmd(deps *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "character",
		Usage: "Manage stored characters",
		Subcommands: []*cli.Command{
			characterNewCmd(deps),
			characterListCmd(deps),
			characterShowCmd(deps),
			characterEditCmd(deps),
			characterDeleteCmd(deps),
		},
	}
}

// characterNewCmd creates the character new command.
func characterNewCmd(deps *appDeps) *cli.Command {
	return &cli.Command{
		Name:      "new",
		Usage:     "Create a character (description looked up online when omitted)",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Character description"},
			&cli.StringFlag{Name: "memory", Aliases: []string{"m"}, Usage: "Persistent memory text prepended to every prompt"},
			&cli.BoolFlag{Name: "nsfw", Usage: "Allow unrestricted replies"},
			&cli.StringFlag{Name: "avatar", Usage: "Avatar image path"},
			&cli.BoolFlag{Name: "no-enrich", Usage: "Skip the online description lookup"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("character name is required"))
			}

			describe := deps.describe
			if c.Bool("no-enrich") {
				describe = nil
			}

			saved, err := chat.CreateCharacter(c.Context, deps.store, describe, character.Character{
				Name:        c.Args().First(),
				Description: c.String("description"),
				Memory:      c.String("memory"),
				NSFW:        c.Bool("nsfw"),
				Avatar:      c.String("avatar"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(saved)
		},
	}
}

// characterListCmd creates the character list command.
func characterListCmd(deps *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List stored character names",
		Action: func(_ *cli.Context) error {
			names, err := deps.store.ListNames()
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"characters": names})
		},
	}
}

// characterShowCmd creates the character show command.
func characterShowCmd(deps *appDeps) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a stored character",
		ArgsUsage: "<name>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("character name is required"))
			}
			chr, err := deps.store.Load(c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(chr)
		},
	}
}

// characterEditCmd creates the character edit command.
func characterEditCmd(deps *appDeps) *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "Update fields of a stored character",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "New description"},
			&cli.StringFlag{Name: "memory", Aliases: []string{"m"}, Usage: "New memory text"},
			&cli.BoolFlag{Name: "nsfw", Usage: "Set the unrestricted flag"},
			&cli.StringFlag{Name: "avatar", Usage: "New avatar image path"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("character name is required"))
			}
			chr, err := deps.store.Load(c.Args().First())
			if err != nil {
				return outputError(err)
			}

			if c.IsSet("description") {
				chr.Description = c.String("description")
			}
			if c.IsSet("memory") {
				chr.Memory = c.String("memory")
			}
			if c.IsSet("nsfw") {
				chr.NSFW = c.Bool("nsfw")
			}
			if c.IsSet("avatar") {
				chr.Avatar = c.String("avatar")
			}

			if err := deps.store.Save(chr); err != nil {
				return outputError(err)
			}
			return outputJSON(chr)
		},
	}
}

// characterDeleteCmd creates the character delete command.
func characterDeleteCmd(deps *appDeps) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a stored character",
		ArgsUsage: "<name>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("character name is required"))
			}
			name := c.Args().First()
			if err := deps.store.Delete(name); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"deleted": name})
		},
	}
}

// chatCmd creates the interactive chat command.
func chatCmd(deps *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Chat with a character (type /quit to leave)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "character", Aliases: []string{"c"}, Required: true, Usage: "Character to chat with"},
		},
		Action: func(c *cli.Context) error {
			engine := chat.NewEngine(deps.store, deps.client, deps.logger, deps.db, deps.cfg)
			if err := engine.Start(c.String("character")); err != nil {
				return outputError(err)
			}

			chr, err := engine.Character()
			if err != nil {
				return outputError(err)
			}
			fmt.Printf("Chatting with %s. Type /quit to leave.\n\n", chr.Name)

			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("You: ")
				if !scanner.Scan() {
					break
				}
				line := scanner.Text()
				if line == "/quit" {
					break
				}
				if line == "" {
					continue
				}

				reply, err := engine.Send(c.Context, line)
				if err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
					continue
				}
				if reply.LogErr != nil {
					fmt.Fprintf(os.Stderr, "warning: failed to log turn: %v\n", reply.LogErr)
				}
				fmt.Printf("%s: %s\n", chr.Name, reply.Text)
			}
			return scanner.Err()
		},
	}
}

// sessionsCmd creates the sessions command.
func sessionsCmd(deps *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "List archived conversations",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "character", Aliases: []string{"c"}, Usage: "Filter by character"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 50, Usage: "Maximum items to return"},
		},
		Action: func(c *cli.Context) error {
			sessions, err := archive.ListSessions(deps.db, c.String("character"), c.Int("limit"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"sessions": sessions})
		},
	}
}

// historyCmd creates the history command.
func historyCmd(deps *appDeps) *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "Show the turns of an archived conversation",
		ArgsUsage: "<session-id>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("session id is required"))
			}
			id := c.Args().First()

			sess, err := archive.GetSession(deps.db, id)
			if err != nil {
				return outputError(err)
			}
			turns, err := archive.ListTurns(deps.db, id)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(map[string]any{
				"session": sess,
				"turns":   turns,
			})
		},
	}
}

// webCmd creates the web command.
func webCmd(deps *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Serve the read-only browser UI",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 7353, Usage: "Port to listen on"},
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind to"},
		},
		Action: func(c *cli.Context) error {
			srv := web.NewServer(deps.store, deps.db, Version, c.String("bind"), c.Int("port"))
			return web.Run(srv)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if aErr, ok := err.(*errors.AbyssError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", aErr.Code, aErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
