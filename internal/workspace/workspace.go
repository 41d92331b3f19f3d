package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"mediaworker/internal/services"
)

const (
	dirPrefix     = "job-"
	inputDirName  = "input"
	outputDirName = "output"
	lockFileName  = ".owner.lock"
)

// ErrBusy indicates another process holds the workspace owner lock.
var ErrBusy = errors.New("workspace in use")

// Workspace is one job's private directory pair. It is created fresh for each
// job and never reused.
type Workspace struct {
	ID        string
	Dir       string
	InputDir  string
	OutputDir string

	lock *flock.Flock
}

// Info summarizes a workspace found under a root.
type Info struct {
	ID       string
	Dir      string
	Modified time.Time
	Locked   bool
}

// Create makes a new uniquely named workspace under root. The job directory is
// created with os.Mkdir so two concurrent callers can never share one.
func Create(root string) (*Workspace, error) {
	return CreateWithID(root, "")
}

// CreateWithID makes the workspace for job id under root, so a parent that
// assigned the ID can find it again with Path. An empty id picks a fresh one.
func CreateWithID(root, id string) (*Workspace, error) {
	if strings.TrimSpace(root) == "" {
		return nil, services.Wrap(services.ErrWorkspace, "setup", "create workspace", "workspace root not configured", nil)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		return nil, services.Wrap(services.ErrWorkspace, "setup", "create workspace", fmt.Sprintf("job id %q is not a UUID", id), nil)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, services.Wrap(services.ErrWorkspace, "setup", "create workspace root", root, err)
	}

	dir := Path(root, id)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrWorkspace, "setup", "create workspace", dir, err)
	}

	ws := newWorkspace(id, dir)
	for _, sub := range []string{ws.InputDir, ws.OutputDir} {
		if err := os.Mkdir(sub, 0o755); err != nil {
			_ = os.RemoveAll(dir)
			return nil, services.Wrap(services.ErrWorkspace, "setup", "create workspace", sub, err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, lockFileName), nil, 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return nil, services.Wrap(services.ErrWorkspace, "setup", "create owner lock", dir, err)
	}
	return ws, nil
}

// Path returns the directory a workspace for job id has under root.
func Path(root, id string) string {
	return filepath.Join(root, dirPrefix+id)
}

// Open returns the workspace rooted at dir after checking its layout.
func Open(dir string) (*Workspace, error) {
	dir = filepath.Clean(dir)
	id, ok := parseDirName(filepath.Base(dir))
	if !ok {
		return nil, services.Wrap(services.ErrWorkspace, "", "open workspace", fmt.Sprintf("%s is not a job workspace", dir), nil)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrWorkspace, "", "open workspace", dir, err)
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrWorkspace, "", "open workspace", fmt.Sprintf("%s is not a directory", dir), nil)
	}
	return newWorkspace(id, dir), nil
}

// Locate returns the workspace directory containing path, if any.
func Locate(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	for current := abs; ; {
		if _, ok := parseDirName(filepath.Base(current)); ok {
			return current, true
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", false
		}
		current = parent
	}
}

// Claim takes the owner lock without blocking. A lock held elsewhere yields an
// error wrapping both ErrBusy and services.ErrWorkspace.
func (w *Workspace) Claim() error {
	ok, err := w.lock.TryLock()
	if err != nil {
		return services.Wrap(services.ErrWorkspace, "", "claim workspace", w.Dir, err)
	}
	if !ok {
		return services.Wrap(services.ErrWorkspace, "", "claim workspace", w.Dir, ErrBusy)
	}
	return nil
}

// Release drops the owner lock if held.
func (w *Workspace) Release() error {
	if !w.lock.Locked() {
		return nil
	}
	return w.lock.Unlock()
}

// Remove deletes the workspace directory at dir. Paths that are not job
// workspaces are refused.
func Remove(dir string) error {
	ws, err := Open(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.RemoveAll(ws.Dir); err != nil {
		return services.Wrap(services.ErrWorkspace, "", "remove workspace", ws.Dir, err)
	}
	return nil
}

// List reports every workspace under root, oldest first.
func List(root string) ([]Info, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read workspace root: %w", err)
	}

	var infos []Info
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, ok := parseDirName(entry.Name())
		if !ok {
			continue
		}
		stat, err := entry.Info()
		if err != nil {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		infos = append(infos, Info{
			ID:       id,
			Dir:      dir,
			Modified: stat.ModTime(),
			Locked:   isLocked(dir),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Modified.Before(infos[j].Modified) })
	return infos, nil
}

// Prune removes workspaces under root last modified before now-olderThan whose
// owner lock is free. It returns the removed directories.
func Prune(root string, olderThan time.Duration) ([]string, error) {
	infos, err := List(root)
	if err != nil {
		return nil, err
	}
	cutoff := time.Now().Add(-olderThan)

	var removed []string
	var errs []error
	for _, info := range infos {
		if info.Modified.After(cutoff) {
			continue
		}
		ws := newWorkspace(info.ID, info.Dir)
		if err := ws.Claim(); err != nil {
			if errors.Is(err, ErrBusy) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		err := os.RemoveAll(ws.Dir)
		_ = ws.Release()
		if err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", ws.Dir, err))
			continue
		}
		removed = append(removed, ws.Dir)
	}
	return removed, errors.Join(errs...)
}

func newWorkspace(id, dir string) *Workspace {
	return &Workspace{
		ID:        id,
		Dir:       dir,
		InputDir:  filepath.Join(dir, inputDirName),
		OutputDir: filepath.Join(dir, outputDirName),
		lock:      flock.New(filepath.Join(dir, lockFileName)),
	}
}

func isLocked(dir string) bool {
	probe := flock.New(filepath.Join(dir, lockFileName))
	ok, err := probe.TryLock()
	if err != nil {
		return false
	}
	if !ok {
		return true
	}
	_ = probe.Unlock()
	return false
}

func parseDirName(name string) (string, bool) {
	if !strings.HasPrefix(name, dirPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(name, dirPrefix)
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}
