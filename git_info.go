package main

import (
	"os/exec"
	"strings"
)

// GitRevision returns the HEAD commit of the repository containing dir,
// suffixed with "-dirty" when tracked files have uncommitted changes.
// It returns "" when dir is not inside a git work tree.
func GitRevision(dir string, prog *Progress) string {
	cmd := exec.Command("git", "rev-parse", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		prog.Verbose("git revision for %s: failed: %v", dir, err)
		return ""
	}
	rev := strings.TrimSpace(string(out))
	if len(rev) > 12 {
		rev = rev[:12]
	}

	status := exec.Command("git", "status", "--porcelain", "--untracked-files=no")
	status.Dir = dir
	if out, err := status.Output(); err == nil && len(strings.TrimSpace(string(out))) > 0 {
		rev += "-dirty"
	}
	return rev
}
