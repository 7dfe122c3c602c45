// Package scm reads the source revision a build runs against.
package scm

import (
	stderrors "errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// ErrNotARepository is returned when dir is not inside a git work tree.
var ErrNotARepository = stderrors.New("not a git repository")

// Revision describes HEAD of a work tree.
type Revision struct {
	Commit string
	// Branch is empty for a detached HEAD.
	Branch string
	Dirty  bool
}

// String renders the revision as branch@commit, short commit, and a +dirty suffix.
func (r Revision) String() string {
	if r.Commit == "" {
		return ""
	}
	s := r.Commit
	if len(s) > 12 {
		s = s[:12]
	}
	if r.Branch != "" {
		s = r.Branch + "@" + s
	}
	if r.Dirty {
		s += "+dirty"
	}
	return s
}

// Head resolves HEAD of the repository containing dir.
func Head(dir string) (Revision, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if stderrors.Is(err, git.ErrRepositoryNotExists) {
			return Revision{}, fmt.Errorf("%w: %s", ErrNotARepository, dir)
		}
		return Revision{}, fmt.Errorf("open repository: %w", err)
	}

	ref, err := repo.Head()
	if err != nil {
		if stderrors.Is(err, plumbing.ErrReferenceNotFound) {
			// Freshly initialised repository without commits.
			return Revision{}, nil
		}
		return Revision{}, fmt.Errorf("resolve HEAD: %w", err)
	}
	rev := Revision{Commit: ref.Hash().String()}
	if ref.Name().IsBranch() {
		rev.Branch = ref.Name().Short()
	}

	wt, err := repo.Worktree()
	if err != nil {
		return rev, nil
	}
	status, err := wt.Status()
	if err != nil {
		return rev, fmt.Errorf("worktree status: %w", err)
	}
	rev.Dirty = !status.IsClean()
	return rev, nil
}
