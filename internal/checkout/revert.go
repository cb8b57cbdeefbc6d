package checkout

import (
	"time"

	"github.com/fslcore/fsl/internal/corecontext"
)

// Revert restores path (or, if path is "", every file of the checked-out
// manifest) to its content as of the checked-out version, discarding
// local edits and clearing the changed, deleted and rename-origin fields
// of the vfile row stored under that path. Only files listed in the
// manifest are handled: a pending Add of a file the manifest lacks stays
// queued, and a pending Rename is not undone, because the renamed row is
// stored under its new path.
func (e *Engine) Revert(path string) (err error) {
	start := time.Now()
	defer func() { e.recordOperation("revert", start, err) }()

	vid, err := e.CheckedOutVersion()
	if err != nil {
		return err
	}
	if vid == 0 {
		return corecontext.New(corecontext.KindNotACheckout, "no checked-out version to revert to")
	}

	d, err := e.parseCheckedOutDeck(vid)
	if err != nil {
		return err
	}
	files, err := d.AllFiles()
	if err != nil {
		return corecontext.Wrap(corecontext.KindConsistency, "resolve checked-out file list", err)
	}

	for _, f := range files {
		if path != "" && f.Path != path {
			continue
		}
		if err := e.extractFile(f); err != nil {
			return err
		}
		if _, err := e.db.DB().Exec(
			`UPDATE localdb.vfile SET chnged = 0, deleted = 0, origname = NULL WHERE pathname = ?`, f.Path,
		); err != nil {
			return corecontext.Wrap(corecontext.KindDB, "clear vfile change flags", err)
		}
	}
	return nil
}
