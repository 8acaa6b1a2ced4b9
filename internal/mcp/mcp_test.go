package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/roleplayabyss/abyss/internal/archive"
	"github.com/roleplayabyss/abyss/internal/character"
	"github.com/roleplayabyss/abyss/internal/chat"
	"github.com/roleplayabyss/abyss/internal/config"
	"github.com/roleplayabyss/abyss/internal/inference"
	"github.com/roleplayabyss/abyss/internal/transcript"
)

// testSetup builds handlers backed by temp storage and a fake generation
// backend that always answers with fixed text.
func testSetup(t *testing.T, generated string) *Handlers {
	t.Helper()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": [{"text": "` + generated + `"}]}`))
	}))
	t.Cleanup(backend.Close)

	baseDir := t.TempDir()
	store, err := character.NewFileStore(filepath.Join(baseDir, "characters"))
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	logger, err := transcript.New(filepath.Join(baseDir, "logs"))
	if err != nil {
		t.Fatalf("transcript.New failed: %v", err)
	}
	db, err := archive.Init(baseDir)
	if err != nil {
		t.Fatalf("archive.Init failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	client := inference.New(backend.URL, 5*time.Second)
	newEngine := func() *chat.Engine {
		return chat.NewEngine(store, client, logger, db, config.DefaultConfig())
	}
	return NewHandlers(store, newEngine, db, nil)
}

// startChat starts a conversation and returns its session id.
func startChat(t *testing.T, h *Handlers, characterName string) string {
	t.Helper()
	result, err := h.HandleChatStart(context.Background(), makeRequest(map[string]any{
		"character": characterName,
	}))
	if err != nil {
		t.Fatalf("HandleChatStart returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("HandleChatStart failed: %s", resultText(t, result))
	}

	var payload struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &payload); err != nil {
		t.Fatalf("unmarshal start result: %v", err)
	}
	if payload.SessionID == "" {
		t.Fatal("chat_start returned no session_id")
	}
	return payload.SessionID
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

// resultText extracts the text payload of a tool result.
func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("tool result has no content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content[0] is %T, want TextContent", result.Content[0])
	}
	return text.Text
}

func TestHandleCharacterCreateAndGet(t *testing.T) {
	h := testSetup(t, "hello")

	result, err := h.HandleCharacterCreate(context.Background(), makeRequest(map[string]any{
		"name":   "Merlin",
		"memory": "An old wizard.",
	}))
	if err != nil {
		t.Fatalf("HandleCharacterCreate returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("HandleCharacterCreate failed: %s", resultText(t, result))
	}

	result, err = h.HandleCharacterGet(context.Background(), makeRequest(map[string]any{
		"name": "Merlin",
	}))
	if err != nil {
		t.Fatalf("HandleCharacterGet returned error: %v", err)
	}

	var got character.Character
	if err := json.Unmarshal([]byte(resultText(t, result)), &got); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if got.Name != "Merlin" || got.Memory != "An old wizard." {
		t.Errorf("got = %+v", got)
	}
}

func TestHandleCharacterGet_NotFound(t *testing.T) {
	h := testSetup(t, "hello")

	result, err := h.HandleCharacterGet(context.Background(), makeRequest(map[string]any{
		"name": "Nobody",
	}))
	if err != nil {
		t.Fatalf("HandleCharacterGet returned error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for unknown character")
	}
	if !strings.Contains(resultText(t, result), "NOT_FOUND") {
		t.Errorf("error payload = %s, want NOT_FOUND code", resultText(t, result))
	}
}

func TestHandleCharacterUpdate_PartialFields(t *testing.T) {
	h := testSetup(t, "hello")

	if _, err := h.HandleCharacterCreate(context.Background(), makeRequest(map[string]any{
		"name":        "Merlin",
		"description": "keep me",
		"memory":      "old memory",
	})); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	result, err := h.HandleCharacterUpdate(context.Background(), makeRequest(map[string]any{
		"name":   "Merlin",
		"memory": "new memory",
	}))
	if err != nil {
		t.Fatalf("HandleCharacterUpdate returned error: %v", err)
	}

	var got character.Character
	if err := json.Unmarshal([]byte(resultText(t, result)), &got); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if got.Memory != "new memory" {
		t.Errorf("Memory = %q, want updated", got.Memory)
	}
	if got.Description != "keep me" {
		t.Errorf("Description = %q, want untouched", got.Description)
	}
}

func TestHandleChatFlow(t *testing.T) {
	h := testSetup(t, "Well met.")

	if _, err := h.HandleCharacterCreate(context.Background(), makeRequest(map[string]any{
		"name": "Bot",
	})); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	sessionID := startChat(t, h, "Bot")

	result, err := h.HandleChatSend(context.Background(), makeRequest(map[string]any{
		"session_id": sessionID,
		"text":       "hi",
	}))
	if err != nil {
		t.Fatalf("HandleChatSend returned error: %v", err)
	}

	var sendPayload struct {
		Reply string `json:"reply"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &sendPayload); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if sendPayload.Reply != "Well met." {
		t.Errorf("reply = %q, want %q", sendPayload.Reply, "Well met.")
	}

	result, err = h.HandleChatTranscript(context.Background(), makeRequest(map[string]any{
		"session_id": sessionID,
	}))
	if err != nil {
		t.Fatalf("HandleChatTranscript returned error: %v", err)
	}
	if !strings.Contains(resultText(t, result), "Well met.") {
		t.Errorf("transcript = %s, want the reply present", resultText(t, result))
	}
}

func TestHandleChatSend_UnknownSession(t *testing.T) {
	h := testSetup(t, "hello")

	result, err := h.HandleChatSend(context.Background(), makeRequest(map[string]any{
		"session_id": "01JUNKJUNKJUNKJUNKJUNKJUNK",
		"text":       "hi",
	}))
	if err != nil {
		t.Fatalf("HandleChatSend returned error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for unknown session id")
	}
	if !strings.Contains(resultText(t, result), "NOT_FOUND") {
		t.Errorf("error payload = %s, want NOT_FOUND code", resultText(t, result))
	}
}

func TestHandleChatStart_ConversationsAreIndependent(t *testing.T) {
	h := testSetup(t, "Well met.")

	for _, name := range []string{"Ana", "Ben"} {
		if _, err := h.HandleCharacterCreate(context.Background(), makeRequest(map[string]any{
			"name": name,
		})); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	anaID := startChat(t, h, "Ana")
	benID := startChat(t, h, "Ben")
	if anaID == benID {
		t.Fatalf("both conversations got session id %s", anaID)
	}

	// Starting Ben's conversation must not discard Ana's.
	if _, err := h.HandleChatSend(context.Background(), makeRequest(map[string]any{
		"session_id": anaID,
		"text":       "hello Ana",
	})); err != nil {
		t.Fatalf("send to first conversation failed: %v", err)
	}

	result, err := h.HandleChatTranscript(context.Background(), makeRequest(map[string]any{
		"session_id": anaID,
	}))
	if err != nil {
		t.Fatalf("HandleChatTranscript returned error: %v", err)
	}
	if !strings.Contains(resultText(t, result), "hello Ana") {
		t.Errorf("first conversation transcript = %s, want its turn present", resultText(t, result))
	}

	result, err = h.HandleChatTranscript(context.Background(), makeRequest(map[string]any{
		"session_id": benID,
	}))
	if err != nil {
		t.Fatalf("HandleChatTranscript returned error: %v", err)
	}
	if strings.Contains(resultText(t, result), "hello Ana") {
		t.Errorf("second conversation transcript = %s, must not contain the first's turn", resultText(t, result))
	}
}

func TestHandleSessionListAndTranscript(t *testing.T) {
	h := testSetup(t, "archived reply")

	if _, err := h.HandleCharacterCreate(context.Background(), makeRequest(map[string]any{
		"name": "Bot",
	})); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	sessionID := startChat(t, h, "Bot")
	if _, err := h.HandleChatSend(context.Background(), makeRequest(map[string]any{
		"session_id": sessionID,
		"text":       "hi",
	})); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	result, err := h.HandleSessionList(context.Background(), makeRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("HandleSessionList returned error: %v", err)
	}

	var listPayload struct {
		Sessions []archive.Session `json:"sessions"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &listPayload); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if len(listPayload.Sessions) != 1 {
		t.Fatalf("len(sessions) = %d, want 1", len(listPayload.Sessions))
	}

	result, err = h.HandleSessionTranscript(context.Background(), makeRequest(map[string]any{
		"session_id": listPayload.Sessions[0].ID,
	}))
	if err != nil {
		t.Fatalf("HandleSessionTranscript returned error: %v", err)
	}
	if !strings.Contains(resultText(t, result), "archived reply") {
		t.Errorf("transcript = %s, want archived reply present", resultText(t, result))
	}
}

func TestServerRegistration_AllToolsByDefault(t *testing.T) {
	h := testSetup(t, "hello")

	s := NewServer(h, config.DefaultConfig(), "test")
	tools := s.ListTools()

	if len(tools) != len(toolRegistry) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(toolRegistry))
	}
	for name := range toolRegistry {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	h := testSetup(t, "hello")

	cfg := config.DefaultConfig()
	cfg.DisabledTools = []string{"character_delete", "chat_send"}
	s := NewServer(h, cfg, "test")
	tools := s.ListTools()

	if len(tools) != len(toolRegistry)-2 {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(toolRegistry)-2)
	}
	for _, name := range []string{"character_delete", "chat_send"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
	for _, name := range []string{"character_get", "chat_start", "session_list"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("tool %q should still be registered", name)
		}
	}
}

func TestServerRegistration_WithDisabledTypes(t *testing.T) {
	h := testSetup(t, "hello")

	cfg := config.DefaultConfig()
	cfg.DisabledTypes = []string{"chat"}
	s := NewServer(h, cfg, "test")
	tools := s.ListTools()

	for _, name := range []string{"chat_start", "chat_send", "chat_transcript"} {
		if _, ok := tools[name]; ok {
			t.Errorf("tool %q of disabled type should not be registered", name)
		}
	}
	for _, name := range []string{"character_list", "session_transcript"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("tool %q of other types should still be registered", name)
		}
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	h := testSetup(t, "hello")

	cfg := config.DefaultConfig()
	cfg.DisabledTools = AllToolNames()
	s := NewServer(h, cfg, "test")

	if tools := s.ListTools(); len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{
			name:    "all valid",
			input:   []string{"character_delete", "chat_send"},
			wantLen: 0,
		},
		{
			name:    "one unknown",
			input:   []string{"chat_send", "fake_tool"},
			wantLen: 1,
		},
		{
			name:    "all unknown",
			input:   []string{"foo", "bar", "baz"},
			wantLen: 3,
		},
		{
			name:    "empty list",
			input:   []string{},
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unknown := ValidateDisabledTools(tt.input)
			if len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}
}

func TestValidateDisabledTypes(t *testing.T) {
	if unknown := ValidateDisabledTypes([]string{"character", "chat", "session"}); len(unknown) != 0 {
		t.Errorf("ValidateDisabledTypes() flagged known types: %v", unknown)
	}
	if unknown := ValidateDisabledTypes([]string{"chat", "capsules"}); len(unknown) != 1 || unknown[0] != "capsules" {
		t.Errorf("ValidateDisabledTypes() = %v, want [capsules]", unknown)
	}
}

func TestExpandTypesToTools(t *testing.T) {
	tools := ExpandTypesToTools([]string{"chat"})
	if len(tools) != 3 {
		t.Fatalf("ExpandTypesToTools(chat) returned %d tools, want 3", len(tools))
	}
	for _, name := range tools {
		if GetTypeForTool(name) != "chat" {
			t.Errorf("expanded tool %q is not of type chat", name)
		}
	}
}

func TestToolRegistryNamesFollowTypePattern(t *testing.T) {
	known := make(map[string]bool, len(KnownTypes))
	for _, typ := range KnownTypes {
		known[typ] = true
	}

	for _, name := range AllToolNames() {
		typ := GetTypeForTool(name)
		if !known[typ] {
			t.Errorf("tool %q has unknown type %q", name, typ)
		}
	}
}
