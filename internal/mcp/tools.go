package mcp

import "github.com/mark3labs/mcp-go/mcp"

var characterListToolDef = mcp.NewTool("character_list",
	mcp.WithDescription("List the names of all stored characters."),
)

var characterGetToolDef = mcp.NewTool("character_get",
	mcp.WithDescription("Fetch one character record by name."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Character name")),
)

var characterCreateToolDef = mcp.NewTool("character_create",
	mcp.WithDescription("Create and persist a new character. When no description is given and enrichment is enabled, a best-effort external lookup fills it in."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Character name (unique, filename-safe)")),
	mcp.WithString("description", mcp.Description("Free-text description")),
	mcp.WithString("memory", mcp.Description("Personality/backstory injected into every prompt")),
	mcp.WithBoolean("nsfw", mcp.Description("Disable the [safe] prompt tag for this character")),
	mcp.WithString("avatar", mcp.Description("Path to an avatar image (not validated)")),
)

var characterUpdateToolDef = mcp.NewTool("character_update",
	mcp.WithDescription("Update fields of an existing character. Omitted fields keep their stored values."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Character name")),
	mcp.WithString("description", mcp.Description("New description")),
	mcp.WithString("memory", mcp.Description("New memory/personality text")),
	mcp.WithBoolean("nsfw", mcp.Description("New NSFW flag")),
	mcp.WithString("avatar", mcp.Description("New avatar path")),
)

var characterDeleteToolDef = mcp.NewTool("character_delete",
	mcp.WithDescription("Delete a stored character."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Character name")),
)

var chatStartToolDef = mcp.NewTool("chat_start",
	mcp.WithDescription("Start a fresh conversation with a character. Returns the session_id that chat_send and chat_transcript use; earlier conversations stay live under their own ids."),
	mcp.WithString("character", mcp.Required(), mcp.Description("Name of the character to chat with")),
)

var chatSendToolDef = mcp.NewTool("chat_send",
	mcp.WithDescription("Send one user message in a live conversation and get the character's reply. A backend failure returns placeholder text, not an error."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id returned by chat_start")),
	mcp.WithString("text", mcp.Required(), mcp.Description("User message (must be non-empty after trimming)")),
)

var chatTranscriptToolDef = mcp.NewTool("chat_transcript",
	mcp.WithDescription("Return the turns of a live conversation in order."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id returned by chat_start")),
)

var sessionListToolDef = mcp.NewTool("session_list",
	mcp.WithDescription("List archived chat sessions, newest first."),
	mcp.WithString("character", mcp.Description("Filter by character name")),
	mcp.WithNumber("limit", mcp.Description("Maximum sessions to return (default 50)")),
)

var sessionTranscriptToolDef = mcp.NewTool("session_transcript",
	mcp.WithDescription("Return the archived turns of a past session in order."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Archived session ID")),
)
