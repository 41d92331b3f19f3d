package workspace_test

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mediaworker/internal/services"
	"mediaworker/internal/workspace"
)

func TestCreateBuildsLayout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "jobs")
	ws, err := workspace.Create(root)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if filepath.Dir(ws.Dir) != root {
		t.Fatalf("workspace %q not under root %q", ws.Dir, root)
	}
	if filepath.Base(ws.Dir) != "job-"+ws.ID {
		t.Fatalf("unexpected workspace name %q for id %q", ws.Dir, ws.ID)
	}
	for _, dir := range []string{ws.InputDir, ws.OutputDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}
}

func TestCreateConcurrentCallsAreDisjoint(t *testing.T) {
	root := t.TempDir()
	const workers = 16

	var wg sync.WaitGroup
	results := make([]*workspace.Workspace, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = workspace.Create(root)
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, workers*2)
	for i, ws := range results {
		if errs[i] != nil {
			t.Fatalf("Create %d returned error: %v", i, errs[i])
		}
		for _, dir := range []string{ws.InputDir, ws.OutputDir} {
			if _, dup := seen[dir]; dup {
				t.Fatalf("directory %q handed out twice", dir)
			}
			seen[dir] = struct{}{}
		}
	}
}

func TestCreateWithIDUsesAssignedID(t *testing.T) {
	root := t.TempDir()
	id := "5f0c3c9e-1b2a-4c3d-9e8f-0a1b2c3d4e5f"

	ws, err := workspace.CreateWithID(root, id)
	if err != nil {
		t.Fatalf("CreateWithID: %v", err)
	}
	if ws.ID != id || ws.Dir != workspace.Path(root, id) {
		t.Fatalf("unexpected workspace %+v", ws)
	}
	if _, err := workspace.CreateWithID(root, id); !errors.Is(err, services.ErrWorkspace) {
		t.Fatalf("expected second create with the same id to fail, got %v", err)
	}
	if _, err := workspace.CreateWithID(root, "../escape"); !errors.Is(err, services.ErrWorkspace) {
		t.Fatalf("expected non-UUID id to be rejected, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(root), "escape")); !os.IsNotExist(err) {
		t.Fatalf("rejected id must not create directories: %v", err)
	}
}

func TestCreateRejectsEmptyRoot(t *testing.T) {
	_, err := workspace.Create("  ")
	if !errors.Is(err, services.ErrWorkspace) {
		t.Fatalf("expected workspace error, got %v", err)
	}
}

func TestClaimIsExclusive(t *testing.T) {
	ws, err := workspace.Create(t.TempDir())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := ws.Claim(); err != nil {
		t.Fatalf("first Claim returned error: %v", err)
	}
	defer ws.Release()

	other, err := workspace.Open(ws.Dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	err = other.Claim()
	if !errors.Is(err, workspace.ErrBusy) || !errors.Is(err, services.ErrWorkspace) {
		t.Fatalf("expected busy workspace error, got %v", err)
	}

	if err := ws.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := other.Claim(); err != nil {
		t.Fatalf("Claim after release returned error: %v", err)
	}
	_ = other.Release()
}

func TestOpenRejectsForeignDirectories(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "not-a-job")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := workspace.Open(dir); !errors.Is(err, services.ErrWorkspace) {
		t.Fatalf("expected workspace error, got %v", err)
	}
	if err := workspace.Remove(dir); err == nil {
		t.Fatal("expected Remove to refuse a foreign directory")
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("foreign directory should survive: %v", err)
	}
}

func TestLocateFindsEnclosingWorkspace(t *testing.T) {
	ws, err := workspace.Create(t.TempDir())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, ok := workspace.Locate(filepath.Join(ws.OutputDir, "video.mp4"))
	if !ok || got != ws.Dir {
		t.Fatalf("Locate returned %q, %v; want %q", got, ok, ws.Dir)
	}
	if _, ok := workspace.Locate(t.TempDir()); ok {
		t.Fatal("expected no workspace for plain temp dir")
	}
}

func TestRemoveDeletesWorkspace(t *testing.T) {
	ws, err := workspace.Create(t.TempDir())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := workspace.Remove(ws.Dir); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(ws.Dir); !os.IsNotExist(err) {
		t.Fatalf("expected workspace removed, stat err=%v", err)
	}
	if err := workspace.Remove(ws.Dir); err != nil {
		t.Fatalf("second Remove should be a no-op, got %v", err)
	}
}

func TestPruneSkipsLockedAndRecentWorkspaces(t *testing.T) {
	root := t.TempDir()
	stale, err := workspace.Create(root)
	if err != nil {
		t.Fatal(err)
	}
	busy, err := workspace.Create(root)
	if err != nil {
		t.Fatal(err)
	}
	fresh, err := workspace.Create(root)
	if err != nil {
		t.Fatal(err)
	}

	old := time.Now().Add(-2 * time.Hour)
	for _, dir := range []string{stale.Dir, busy.Dir} {
		if err := os.Chtimes(dir, old, old); err != nil {
			t.Fatal(err)
		}
	}
	if err := busy.Claim(); err != nil {
		t.Fatal(err)
	}
	defer busy.Release()

	infos, err := workspace.List(root)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("expected 3 workspaces, got %d", len(infos))
	}
	lockedCount := 0
	for _, info := range infos {
		if info.Locked {
			lockedCount++
			if info.Dir != busy.Dir {
				t.Fatalf("unexpected locked workspace %q", info.Dir)
			}
		}
	}
	if lockedCount != 1 {
		t.Fatalf("expected one locked workspace, got %d", lockedCount)
	}

	removed, err := workspace.Prune(root, time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(removed) != 1 || removed[0] != stale.Dir {
		t.Fatalf("unexpected pruned set: %v", removed)
	}
	for _, dir := range []string{busy.Dir, fresh.Dir} {
		if _, err := os.Stat(dir); err != nil {
			t.Fatalf("expected %q to survive prune: %v", dir, err)
		}
	}
}

func TestListMissingRootIsEmpty(t *testing.T) {
	infos, err := workspace.List(filepath.Join(t.TempDir(), "missing"))
	if err != nil || len(infos) != 0 {
		t.Fatalf("expected empty list, got %v, %v", infos, err)
	}
}
