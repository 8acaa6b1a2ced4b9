// Package chat wires the session engine together: character storage,
// conversation state, prompt assembly, inference, transcript logging, and
// the sqlite archive. Front ends (CLI, MCP, web) stay thin callers of the
// Engine.
package chat

import (
	"context"
	"database/sql"
	"log"

	"github.com/roleplayabyss/abyss/internal/archive"
	"github.com/roleplayabyss/abyss/internal/character"
	"github.com/roleplayabyss/abyss/internal/config"
	"github.com/roleplayabyss/abyss/internal/errors"
	"github.com/roleplayabyss/abyss/internal/inference"
	"github.com/roleplayabyss/abyss/internal/session"
	"github.com/roleplayabyss/abyss/internal/transcript"
)

// Engine drives one conversation at a time. Operations are invoked
// sequentially by a single logical caller; concurrent conversations each
// own an independent Engine.
type Engine struct {
	store  *character.FileStore
	client *inference.Client
	logger *transcript.Logger
	db     *sql.DB // archive database; nil disables archiving
	cfg    *config.Config

	sess      *session.Session
	archiveID string
}

// NewEngine assembles an engine from its collaborators. db may be nil to
// run without the archive.
func NewEngine(store *character.FileStore, client *inference.Client, logger *transcript.Logger, db *sql.DB, cfg *config.Config) *Engine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Engine{
		store:  store,
		client: client,
		logger: logger,
		db:     db,
		cfg:    cfg,
		sess:   session.New(),
	}
}

// Start loads the named character fresh from storage and binds it to a new
// conversation, clearing any previous turn history.
func (e *Engine) Start(name string) error {
	c, err := e.store.Load(name)
	if err != nil {
		return err
	}
	if err := e.sess.Bind(c); err != nil {
		return err
	}

	e.archiveID = ""
	if e.db != nil {
		id, err := archive.CreateSession(e.db, c.Name)
		if err != nil {
			// Archive trouble must not block chatting.
			log.Printf("[chat] archive session create failed: %v", err)
		} else {
			e.archiveID = id
		}
	}
	return nil
}

// Character returns the bound character.
func (e *Engine) Character() (character.Character, error) {
	return e.sess.Character()
}

// ArchiveID returns the archived session ID, or empty when archiving is
// off or failed to start.
func (e *Engine) ArchiveID() string {
	return e.archiveID
}

// Reply is the outcome of one chat turn.
type Reply struct {
	// Text is the assistant's reply: generated text, or the inference
	// placeholder when the backend failed.
	Text string

	// LogErr reports a transcript or archive write failure. The turn
	// itself succeeded; callers surface this as a warning and continue.
	LogErr error
}

// Send runs one full turn: record the user's text, build the prompt, call
// the inference backend, record the reply, then log and archive both
// lines. A generation failure comes back as placeholder text inside a
// successful Reply; only state errors (no character bound, empty input)
// are returned as errors.
func (e *Engine) Send(ctx context.Context, text string) (*Reply, error) {
	c, err := e.sess.Character()
	if err != nil {
		return nil, err
	}
	if err := e.sess.RecordUserTurn(text); err != nil {
		return nil, err
	}

	prompt, err := e.sess.BuildPrompt()
	if err != nil {
		return nil, err
	}

	reply := e.client.Generate(ctx, prompt, inference.Options{
		MaxNewTokens:  e.cfg.MaxNewTokens,
		StopSequences: e.cfg.StopSequences,
	})

	if err := e.sess.RecordAssistantTurn(reply); err != nil {
		return nil, err
	}

	logErr := e.record(c.Name, e.sess.LastUserText(), reply)
	return &Reply{Text: reply, LogErr: logErr}, nil
}

// record writes both turn lines to the transcript log and the archive.
// The first failure is reported; neither aborts the chat flow.
func (e *Engine) record(characterName, userText, replyText string) error {
	var firstErr error

	if e.logger != nil {
		if err := e.logger.Append(characterName, "You", userText); err != nil {
			firstErr = err
		}
		if err := e.logger.Append(characterName, characterName, replyText); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if e.db != nil && e.archiveID != "" {
		if err := archive.AppendTurn(e.db, e.archiveID, session.RoleUser, userText); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := archive.AppendTurn(e.db, e.archiveID, session.RoleAssistant, replyText); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if firstErr != nil {
		log.Printf("[chat] transcript/archive write failed: %v", firstErr)
	}
	return firstErr
}

// Transcript returns the turns of the live conversation in order.
func (e *Engine) Transcript() []session.Turn {
	return e.sess.Turns()
}

// Bound reports whether a conversation is active.
func (e *Engine) Bound() bool {
	return e.sess.Bound()
}

// CreateCharacter validates and saves a new character, consulting the
// enrichment chain for a description when none was provided. Returns the
// saved character.
func CreateCharacter(ctx context.Context, store *character.FileStore, describe func(context.Context, string) string, c character.Character) (character.Character, error) {
	if err := character.ValidateName(c.Name); err != nil {
		return character.Character{}, err
	}
	if _, err := store.Load(c.Name); err == nil {
		return character.Character{}, errors.NewInvalidRequest("character already exists: " + c.Name)
	} else if !errors.Is(err, errors.ErrNotFound) {
		return character.Character{}, err
	}

	if c.Description == "" && describe != nil {
		c.Description = describe(ctx, c.Name)
	}

	if err := store.Save(c); err != nil {
		return character.Character{}, err
	}
	return c, nil
}
