package web

import (
	"database/sql"
	"net/http"

	"github.com/roleplayabyss/abyss/internal/archive"
	"github.com/roleplayabyss/abyss/internal/character"
)

const sessionListLimit = 50

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	store    *character.FileStore
	db       *sql.DB
	renderer *Renderer
}

// HandleCharacterList handles GET /characters — list stored characters.
func (h *Handlers) HandleCharacterList(w http.ResponseWriter, r *http.Request) {
	names, err := h.store.ListNames()
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "characters", CharacterListPageData{
		PageData: PageData{
			Title:   "Characters",
			Version: h.renderer.version,
			Nav:     "characters",
		},
		Names: names,
	})
}

// HandleCharacterDetail handles GET /characters/{name} — show one character.
func (h *Handlers) HandleCharacterDetail(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	c, err := h.store.Load(name)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "character", CharacterPageData{
		PageData: PageData{
			Title:   c.Name,
			Version: h.renderer.version,
			Nav:     "characters",
		},
		Character:   c,
		Description: renderMarkdown(c.Description),
		Memory:      renderMarkdown(c.Memory),
	})
}

// HandleSessionList handles GET /sessions — list archived conversations,
// optionally filtered by ?character=<name>.
func (h *Handlers) HandleSessionList(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("character")

	sessions, err := archive.ListSessions(h.db, filter, sessionListLimit)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "sessions", SessionListPageData{
		PageData: PageData{
			Title:   "Sessions",
			Version: h.renderer.version,
			Nav:     "sessions",
		},
		Sessions:  sessions,
		Character: filter,
	})
}

// HandleTranscript handles GET /sessions/{id} — render an archived transcript.
func (h *Handlers) HandleTranscript(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	sess, err := archive.GetSession(h.db, id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	turns, err := archive.ListTurns(h.db, id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "transcript", TranscriptPageData{
		PageData: PageData{
			Title:   sess.Character,
			Version: h.renderer.version,
			Nav:     "sessions",
		},
		Session:    sess,
		Transcript: renderMarkdown(transcriptMarkdown(sess.Character, turns)),
	})
}
