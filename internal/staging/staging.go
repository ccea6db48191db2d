// Package staging writes every byte source a composition needs into a
// per-session directory consumed by the transcoding engine, under a typed
// naming manifest so the staging side and the filter-graph side cannot
// silently drift.
package staging

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// Role identifies what a staged file is to the filter-graph.
type Role string

const (
	RoleBackground Role = "background"
	RoleOverlay    Role = "overlay"
	RoleNarration  Role = "narration"
	RoleMusic      Role = "music"
	RoleFont       Role = "font"
	RoleTag        Role = "tag"
	RoleTagSound   Role = "tag-sound"
	RoleOutput     Role = "output"
)

// Filename maps a role (plus index for per-segment roles) to the agreed
// virtual file name.
func Filename(role Role, index int) string {
	switch role {
	case RoleBackground:
		return "background.mp4"
	case RoleOverlay:
		return fmt.Sprintf("overlay_%03d.png", index)
	case RoleNarration:
		return fmt.Sprintf("narration_%03d.mp3", index)
	case RoleMusic:
		return "background_music.mp3"
	case RoleFont:
		return "overlay_font.ttf"
	case RoleTag:
		return "subscribe_tag.png"
	case RoleTagSound:
		return "click.mp3"
	case RoleOutput:
		return "output.mp4"
	}
	return string(role)
}

// Workspace is the single shared staging namespace for one session. Only
// one compositing run may hold it at a time; Cleanup is the mutual
// exclusion discipline and must run before any new staging begins.
type Workspace struct {
	dir    string
	staged []string
	client *http.Client
}

// NewWorkspace creates a session-scoped staging directory.
func NewWorkspace(prefix string) (*Workspace, error) {
	dir, err := os.MkdirTemp("", prefix+uuid.NewString()[:8]+"_")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create staging directory")
	}
	return &Workspace{
		dir:    dir,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Dir returns the staging directory path.
func (w *Workspace) Dir() string {
	return w.dir
}

// Path returns the absolute path of a staged name.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// Stage writes bytes under the given name.
func (w *Workspace) Stage(name string, data []byte) error {
	if err := os.WriteFile(w.Path(name), data, 0644); err != nil {
		return errors.Wrapf(err, "failed to stage %s", name)
	}
	w.record(name)
	return nil
}

// StageFile copies a local file into the workspace under name.
func (w *Workspace) StageFile(name, srcPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s for staging as %s", srcPath, name)
	}
	defer src.Close()

	dst, err := os.Create(w.Path(name))
	if err != nil {
		return errors.Wrapf(err, "failed to stage %s", name)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return errors.Wrapf(err, "failed to stage %s", name)
	}
	w.record(name)
	return nil
}

// Fetch downloads a remote asset and stages it under name.
func (w *Workspace) Fetch(name, url string) error {
	resp, err := w.client.Get(url)
	if err != nil {
		return errors.Wrapf(err, "failed to fetch %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", url)
	}
	return w.Stage(name, data)
}

// Record marks an externally produced file (e.g. the transcoder's own
// output) as part of this session so Cleanup removes it too.
func (w *Workspace) Record(name string) {
	w.record(name)
}

func (w *Workspace) record(name string) {
	if !slices.Contains(w.staged, name) {
		w.staged = append(w.staged, name)
	}
}

// StagedNames returns the names staged so far, in staging order.
func (w *Workspace) StagedNames() []string {
	return slices.Clone(w.staged)
}

// Cleanup removes every staged file and the session directory. Files that
// are already gone are not an error; re-running a session must never see a
// prior run's files under the same names.
func (w *Workspace) Cleanup() error {
	for _, name := range w.staged {
		if err := os.Remove(w.Path(name)); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "failed to remove staged %s", name)
		}
	}
	w.staged = w.staged[:0]

	if err := os.RemoveAll(w.dir); err != nil {
		return errors.Wrap(err, "failed to remove staging directory")
	}
	return nil
}
