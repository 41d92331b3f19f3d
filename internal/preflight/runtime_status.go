package preflight

import (
	"fmt"
	"time"

	"mediaworker/internal/workspace"
)

// CheckWorkspaceUsage summarizes the job workspaces under root, flagging the
// ones an active worker holds and the ones older than staleAfter.
func CheckWorkspaceUsage(root string, staleAfter time.Duration) Result {
	const name = "Workspaces"

	infos, err := workspace.List(root)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("list failed: %v", err)}
	}
	if len(infos) == 0 {
		return Result{Name: name, Passed: true, Detail: "none"}
	}
	var busy, stale int
	cutoff := time.Now().Add(-staleAfter)
	for _, info := range infos {
		switch {
		case info.Locked:
			busy++
		case staleAfter > 0 && info.Modified.Before(cutoff):
			stale++
		}
	}
	detail := fmt.Sprintf("%d total, %d in use", len(infos), busy)
	if stale > 0 {
		detail += fmt.Sprintf(", %d stale (run 'mediactl workspace prune')", stale)
	}
	return Result{Name: name, Passed: stale == 0, Detail: detail}
}
