// Package buildlog writes the plain-text log stream each Build owns at
// /var/lib/molior/buildout/<id>/build.log, the authoritative end-user
// diagnostic surface per the build log format contract.
package buildlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bitswalk/molior/src/common/logs"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the buildlog package.
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Writer appends lines and structural title markers to a build's log file.
type Writer struct {
	basePath string
}

// New creates a Writer rooted at basePath (normally /var/lib/molior/buildout).
func New(basePath string) *Writer {
	return &Writer{basePath: basePath}
}

func (w *Writer) path(buildID int64) string {
	return filepath.Join(w.basePath, strconv.FormatInt(buildID, 10), "build.log")
}

func (w *Writer) append(buildID int64, data string) error {
	p := w.path(buildID)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory for build %d: %w", buildID, err)
	}
	f, err := os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file for build %d: %w", buildID, err)
	}
	defer f.Close()
	_, err = f.WriteString(data)
	return err
}

// Log appends a single plain-text line to buildID's log, used as the
// LineWriter callback for streamed subprocess output.
func (w *Writer) Log(buildID int64, line string) {
	if err := w.append(buildID, line+"\n"); err != nil {
		log.Warn("failed to write build log line", "build_id", buildID, "error", err)
	}
}

// Title writes a structural section marker.
func (w *Writer) Title(buildID int64, title string) {
	if err := w.append(buildID, fmt.Sprintf("\n===== %s =====\n", title)); err != nil {
		log.Warn("failed to write build log title", "build_id", buildID, "error", err)
	}
}

// Done writes the terminal "Done" title with no trailing newline, closing
// the log stream for a build that has reached a terminal state.
func (w *Writer) Done(buildID int64) {
	if err := w.append(buildID, "\n===== Done ====="); err != nil {
		log.Warn("failed to write build log done title", "build_id", buildID, "error", err)
	}
}
