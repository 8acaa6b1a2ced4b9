package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/roleplayabyss/abyss/internal/archive"
	"github.com/roleplayabyss/abyss/internal/character"
	"github.com/roleplayabyss/abyss/internal/chat"
	"github.com/roleplayabyss/abyss/internal/errors"
)

// Describer produces a best-effort character description, or empty text.
type Describer func(ctx context.Context, name string) string

// Handlers holds dependencies for MCP tool handlers. Live conversations
// are held in a per-process engine map keyed by session id, so chat_start
// opens a new conversation without discarding earlier ones; archived
// sessions are read from db.
type Handlers struct {
	store     *character.FileStore
	newEngine func() *chat.Engine
	db        *sql.DB
	describe  Describer

	mu      sync.Mutex
	engines map[string]*chat.Engine
}

// NewHandlers creates a new Handlers instance. newEngine builds one engine
// per started conversation. describe may be nil to disable enrichment; db
// may be nil to disable archive browsing.
func NewHandlers(store *character.FileStore, newEngine func() *chat.Engine, db *sql.DB, describe Describer) *Handlers {
	return &Handlers{
		store:     store,
		newEngine: newEngine,
		db:        db,
		describe:  describe,
		engines:   make(map[string]*chat.Engine),
	}
}

// engineFor looks up the live conversation for a session id.
func (h *Handlers) engineFor(sessionID string) (*chat.Engine, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	engine, ok := h.engines[sessionID]
	if !ok {
		return nil, errors.NewSessionNotFound(sessionID)
	}
	return engine, nil
}

// Request types for each tool

// CharacterGetRequest represents the arguments for character_get.
type CharacterGetRequest struct {
	Name string `json:"name"`
}

// CharacterCreateRequest represents the arguments for character_create.
type CharacterCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Memory      string `json:"memory,omitempty"`
	NSFW        bool   `json:"nsfw,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
}

// CharacterUpdateRequest represents the arguments for character_update.
// Pointer fields distinguish "omitted" from "set to zero value".
type CharacterUpdateRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Memory      *string `json:"memory,omitempty"`
	NSFW        *bool   `json:"nsfw,omitempty"`
	Avatar      *string `json:"avatar,omitempty"`
}

// CharacterDeleteRequest represents the arguments for character_delete.
type CharacterDeleteRequest struct {
	Name string `json:"name"`
}

// ChatStartRequest represents the arguments for chat_start.
type ChatStartRequest struct {
	Character string `json:"character"`
}

// ChatSendRequest represents the arguments for chat_send.
type ChatSendRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// ChatTranscriptRequest represents the arguments for chat_transcript.
type ChatTranscriptRequest struct {
	SessionID string `json:"session_id"`
}

// SessionListRequest represents the arguments for session_list.
type SessionListRequest struct {
	Character string `json:"character,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// SessionTranscriptRequest represents the arguments for session_transcript.
type SessionTranscriptRequest struct {
	SessionID string `json:"session_id"`
}

// Handler implementations

// HandleCharacterList handles the character_list tool call.
func (h *Handlers) HandleCharacterList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names, err := h.store.ListNames()
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"names": names})
}

// HandleCharacterGet handles the character_get tool call.
func (h *Handlers) HandleCharacterGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CharacterGetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	c, err := h.store.Load(input.Name)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(c)
}

// HandleCharacterCreate handles the character_create tool call.
func (h *Handlers) HandleCharacterCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CharacterCreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	created, err := chat.CreateCharacter(ctx, h.store, h.describe, character.Character{
		Name:        input.Name,
		Description: input.Description,
		Memory:      input.Memory,
		NSFW:        input.NSFW,
		Avatar:      input.Avatar,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(created)
}

// HandleCharacterUpdate handles the character_update tool call.
func (h *Handlers) HandleCharacterUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CharacterUpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	c, err := h.store.Load(input.Name)
	if err != nil {
		return errorResult(err), nil
	}

	if input.Description != nil {
		c.Description = *input.Description
	}
	if input.Memory != nil {
		c.Memory = *input.Memory
	}
	if input.NSFW != nil {
		c.NSFW = *input.NSFW
	}
	if input.Avatar != nil {
		c.Avatar = *input.Avatar
	}

	if err := h.store.Save(c); err != nil {
		return errorResult(err), nil
	}
	return successResult(c)
}

// HandleCharacterDelete handles the character_delete tool call.
func (h *Handlers) HandleCharacterDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CharacterDeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if err := h.store.Delete(input.Name); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"deleted": input.Name})
}

// HandleChatStart handles the chat_start tool call. Each call opens an
// independent conversation and returns the session id that chat_send and
// chat_transcript key on.
func (h *Handlers) HandleChatStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ChatStartRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	engine := h.newEngine()
	if err := engine.Start(input.Character); err != nil {
		return errorResult(err), nil
	}

	// Key on the archive id when the archive is on; otherwise mint one.
	sessionID := engine.ArchiveID()
	if sessionID == "" {
		sessionID, err = archive.NewID()
		if err != nil {
			return errorResult(errors.NewInternal(err)), nil
		}
	}

	h.mu.Lock()
	h.engines[sessionID] = engine
	h.mu.Unlock()

	return successResult(map[string]any{
		"session_id": sessionID,
		"character":  input.Character,
	})
}

// HandleChatSend handles the chat_send tool call.
func (h *Handlers) HandleChatSend(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ChatSendRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	engine, err := h.engineFor(input.SessionID)
	if err != nil {
		return errorResult(err), nil
	}

	reply, err := engine.Send(ctx, input.Text)
	if err != nil {
		return errorResult(err), nil
	}

	result := map[string]any{"reply": reply.Text}
	if reply.LogErr != nil {
		result["log_warning"] = reply.LogErr.Error()
	}
	return successResult(result)
}

// HandleChatTranscript handles the chat_transcript tool call.
func (h *Handlers) HandleChatTranscript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ChatTranscriptRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	engine, err := h.engineFor(input.SessionID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"turns": engine.Transcript()})
}

// HandleSessionList handles the session_list tool call.
func (h *Handlers) HandleSessionList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if h.db == nil {
		return errorResult(errors.NewInvalidState("archive is disabled")), nil
	}

	sessions, err := archive.ListSessions(h.db, input.Character, input.Limit)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"sessions": sessions})
}

// HandleSessionTranscript handles the session_transcript tool call.
func (h *Handlers) HandleSessionTranscript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionTranscriptRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if h.db == nil {
		return errorResult(errors.NewInvalidState("archive is disabled")), nil
	}

	turns, err := archive.ListTurns(h.db, input.SessionID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"turns": turns})
}

// errorResult converts an error into an MCP error payload.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if aErr, ok := err.(*errors.AbyssError); ok {
		errorObj := map[string]any{
			"code":    aErr.Code,
			"message": aErr.Message,
			"status":  aErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if aErr.Code != errors.ErrInternal && aErr.Details != nil {
			errorObj["details"] = aErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult wraps data as a JSON tool result.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
