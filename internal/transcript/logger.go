// Package transcript appends chat turns to plain-text log files, one file
// per character and calendar day. Logs are write-only: they exist for the
// user to read later and are never parsed back into a session.
package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/roleplayabyss/abyss/internal/character"
	"github.com/roleplayabyss/abyss/internal/errors"
)

// Logger writes transcript lines under a base directory.
type Logger struct {
	dir string

	// now is swappable for tests.
	now func() time.Time
}

// New creates the log directory (if absent) and returns a logger rooted
// there.
func New(dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.NewStorage("init", err)
	}
	return &Logger{dir: dir, now: time.Now}, nil
}

// Dir returns the directory the logger writes into.
func (l *Logger) Dir() string {
	return l.dir
}

// Path returns the log file path for the character on the given day.
// File names follow "<name>_<yyyymmdd>.log".
func (l *Logger) Path(characterName string, day time.Time) string {
	return filepath.Join(l.dir, fmt.Sprintf("%s_%s.log", characterName, day.Format("20060102")))
}

// Append writes "<speaker>: <text>\n" to the character's log for today,
// creating the file on first use, and closes it before returning. The
// local calendar date picks the file, consistent within a run.
//
// An I/O failure surfaces as STORAGE; callers treat it as non-fatal to
// the chat flow.
func (l *Logger) Append(characterName, speaker, text string) error {
	if err := character.ValidateName(characterName); err != nil {
		return err
	}

	path := l.Path(characterName, l.now())
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return errors.NewStorage("log append", err)
	}

	if _, err := fmt.Fprintf(f, "%s: %s\n", speaker, text); err != nil {
		f.Close()
		return errors.NewStorage("log append", err)
	}
	if err := f.Close(); err != nil {
		return errors.NewStorage("log append", err)
	}
	return nil
}
