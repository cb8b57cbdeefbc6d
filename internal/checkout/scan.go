package checkout

import (
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/fslcore/fsl/internal/corecontext"
	"github.com/fslcore/fsl/internal/hashcodec"
)

// ChangeKind classifies one vfile entry's relationship between the
// recorded checkout state and the live working directory.
type ChangeKind int

const (
	Unchanged ChangeKind = iota
	Edited
	Missing
	Added
	Removed
)

func (k ChangeKind) String() string {
	switch k {
	case Edited:
		return "EDITED"
	case Missing:
		return "MISSING"
	case Added:
		return "ADDED"
	case Removed:
		return "REMOVED"
	default:
		return "UNCHANGED"
	}
}

// Change describes one file's status relative to the checked-out version.
type Change struct {
	Path string
	Kind ChangeKind
}

// Scan compares every tracked vfile entry against the live working
// directory, hashing file content in parallel (bounded by errgroup's
// limit) to detect edits without relying on mtime alone, since mtime can
// be unreliable across checkouts and clocks (§4.6).
func (e *Engine) Scan() ([]Change, error) {
	rows, err := e.db.DB().Query(`SELECT pathname, hash, deleted, rid, chnged FROM localdb.vfile`)
	if err != nil {
		return nil, corecontext.Wrap(corecontext.KindDB, "query vfile for scan", err)
	}
	type tracked struct {
		path      string
		wantHash  string
		isDeleted bool
		rid       int64
		chnged    bool
	}
	var entries []tracked
	for rows.Next() {
		var t tracked
		var wantHash *string
		if err := rows.Scan(&t.path, &wantHash, &t.isDeleted, &t.rid, &t.chnged); err != nil {
			rows.Close()
			return nil, corecontext.Wrap(corecontext.KindDB, "scan vfile row", err)
		}
		if wantHash != nil {
			t.wantHash = *wantHash
		}
		entries = append(entries, t)
	}
	rows.Close()

	changes := make([]Change, len(entries))
	g := new(errgroup.Group)
	g.SetLimit(8)
	for i, t := range entries {
		i, t := i, t
		g.Go(func() error {
			kind, err := e.classify(t.path, t.wantHash, t.isDeleted, t.chnged && t.rid == 0)
			if err != nil {
				return err
			}
			changes[i] = Change{Path: t.path, Kind: kind}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return appendUntracked(e, changes)
}

func (e *Engine) classify(path, wantHash string, recordedDeleted, queuedNew bool) (ChangeKind, error) {
	full, err := e.resolve(path)
	if err != nil {
		return Unchanged, err
	}
	info, statErr := os.Lstat(full)
	exists := statErr == nil

	switch {
	case queuedNew && exists:
		return Added, nil
	case recordedDeleted && !exists:
		return Unchanged, nil
	case recordedDeleted && exists:
		return Added, nil
	case !recordedDeleted && !exists:
		return Missing, nil
	}

	if info.Mode()&os.ModeSymlink != 0 {
		return Unchanged, nil // symlink target comparison elided; treated as unchanged once present
	}
	if wantHash == "" {
		return Unchanged, nil // no prior probe hash recorded (e.g. empty file): trust presence alone
	}
	content, err := os.ReadFile(full)
	if err != nil {
		return Unchanged, corecontext.Wrap(corecontext.KindIO, "read working file", err)
	}
	if hashcodec.MD5Hex(content) != wantHash {
		return Edited, nil
	}
	return Unchanged, nil
}

// appendUntracked walks the working directory for files not present in
// vfile at all, reporting them as Added. Directories are walked, not
// queried, since an un-added file has no vfile row to drive a parallel
// scan from.
func appendUntracked(e *Engine, changes []Change) ([]Change, error) {
	tracked := make(map[string]bool, len(changes))
	for _, c := range changes {
		tracked[c.Path] = true
	}

	err := filepath.Walk(e.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == ".fslcore" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(e.root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if !tracked[rel] {
			changes = append(changes, Change{Path: rel, Kind: Added})
		}
		return nil
	})
	if err != nil {
		return nil, corecontext.Wrap(corecontext.KindIO, "walk working directory", err)
	}
	return changes, nil
}
