package checkout

import (
	"os"

	"github.com/fslcore/fsl/internal/corecontext"
)

// Add marks path as scheduled for inclusion in the next commit. It is a
// working-directory-only operation: no blob is inserted until Commit
// runs, per §4.7's "queued, not immediate" add/remove semantics.
func (e *Engine) Add(path string) error {
	full, err := e.resolve(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(full); err != nil {
		return corecontext.Wrap(corecontext.KindNotFound, "add: file does not exist", err)
	}
	var exists int
	_ = e.db.DB().QueryRow(`SELECT COUNT(*) FROM localdb.vfile WHERE pathname = ?`, path).Scan(&exists)
	if exists > 0 {
		_, err := e.db.DB().Exec(`UPDATE localdb.vfile SET deleted = 0 WHERE pathname = ?`, path)
		if err != nil {
			return corecontext.Wrap(corecontext.KindDB, "un-delete vfile row", err)
		}
		return nil
	}
	vid, err := e.CheckedOutVersion()
	if err != nil {
		return err
	}
	_, err = e.db.DB().Exec(
		`INSERT INTO localdb.vfile(vid, pathname, chnged) VALUES (?, ?, 1)`, vid, path,
	)
	if err != nil {
		return corecontext.Wrap(corecontext.KindDB, "queue add", err)
	}
	return nil
}

// Remove marks path for removal from the next commit. If keepFile is
// false the working-directory copy is also deleted immediately.
func (e *Engine) Remove(path string, keepFile bool) error {
	res, err := e.db.DB().Exec(`UPDATE localdb.vfile SET deleted = 1 WHERE pathname = ?`, path)
	if err != nil {
		return corecontext.Wrap(corecontext.KindDB, "queue remove", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return corecontext.New(corecontext.KindNotFound, "remove: not a tracked file: "+path)
	}
	if !keepFile {
		full, rerr := e.resolve(path)
		if rerr != nil {
			return rerr
		}
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			return corecontext.Wrap(corecontext.KindIO, "remove working file", err)
		}
	}
	return nil
}

// Rename queues a path rename: the working file is moved on disk and the
// tracked vfile row is rewritten in place to newPath, with origname set
// to oldPath so the next commit's F-card records the rename, per §3.2's
// F-card old-name field.
func (e *Engine) Rename(oldPath, newPath string) error {
	oldFull, err := e.resolve(oldPath)
	if err != nil {
		return err
	}
	newFull, err := e.resolve(newPath)
	if err != nil {
		return err
	}
	if err := os.Rename(oldFull, newFull); err != nil {
		return corecontext.Wrap(corecontext.KindIO, "rename working file", err)
	}
	res, err := e.db.DB().Exec(
		`UPDATE localdb.vfile SET pathname = ?, origname = ?, chnged = 1, deleted = 0 WHERE pathname = ?`,
		newPath, oldPath, oldPath,
	)
	if err != nil {
		return corecontext.Wrap(corecontext.KindDB, "record rename", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return corecontext.New(corecontext.KindNotFound, "rename: not a tracked file: "+oldPath)
	}
	return nil
}
