package checkout

import (
	"os"
	"time"

	"github.com/fslcore/fsl/internal/corecontext"
	"github.com/fslcore/fsl/internal/deck"
)

// CommitOptions controls a Commit call's manifest contents.
type CommitOptions struct {
	User      string
	Comment   string
	Timestamp time.Time
	Branch    string // empty: stay on current branch
}

// Commit synthesizes a new checkin manifest from the live working
// directory state, inserts every changed blob, crosslinks the new
// manifest, and advances the checkout to it, all within a single
// transaction per §4.6's "all steps in one transaction" requirement. It
// reports KindNoop if Scan finds no Edited/Added/Removed/Missing entries.
func (e *Engine) Commit(opts CommitOptions) (rid int64, err error) {
	start := time.Now()
	defer func() { e.recordOperation("commit", start, err) }()

	changes, err := e.Scan()
	if err != nil {
		return 0, err
	}
	if !hasRealChange(changes) {
		return 0, corecontext.New(corecontext.KindNoop, "nothing to commit")
	}

	parentRid, err := e.CheckedOutVersion()
	if err != nil {
		return 0, err
	}

	d := deck.New(deck.TypeCheckin)
	ts := opts.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	if err := d.SetTimestamp(ts); err != nil {
		return 0, err
	}
	if err := d.SetUser(opts.User); err != nil {
		return 0, err
	}
	if err := d.SetComment(opts.Comment); err != nil {
		return 0, err
	}
	if parentRid != 0 {
		parentHash, herr := e.hashForRid(parentRid)
		if herr != nil {
			return 0, herr
		}
		if err := d.AddParent(parentHash); err != nil {
			return 0, err
		}
	}

	var newRid int64
	err = e.db.WithTransaction(func() error {
		files, ferr := e.currentFileList(changes)
		if ferr != nil {
			return ferr
		}
		for _, f := range files {
			if aerr := d.AddFile(f); aerr != nil {
				return aerr
			}
		}
		out, oerr := d.Output(true, true)
		if oerr != nil {
			return oerr
		}
		rid, _, perr := e.blobs.Put(out)
		if perr != nil {
			return perr
		}
		newRid = int64(rid)

		sess, serr := e.links.Begin()
		if serr != nil {
			return serr
		}
		if clerr := sess.Crosslink(newRid, d); clerr != nil {
			_ = sess.Abort()
			return clerr
		}
		if cerr := sess.Commit(); cerr != nil {
			return cerr
		}

		return e.Checkout(newRid, d)
	})
	if err != nil {
		return 0, err
	}
	return newRid, nil
}

func hasRealChange(changes []Change) bool {
	for _, c := range changes {
		if c.Kind != Unchanged {
			return true
		}
	}
	return false
}

// currentFileList builds the F-card list for the new manifest: unchanged
// and edited tracked files keep or refresh their hash, removed files are
// dropped, and newly added (untracked) files are hashed and inserted as
// fresh blobs so the manifest can reference them.
func (e *Engine) currentFileList(changes []Change) ([]deck.FCard, error) {
	byPath := make(map[string]Change, len(changes))
	for _, c := range changes {
		byPath[c.Path] = c
	}

	rows, err := e.db.DB().Query(`SELECT pathname, origname, deleted, isexe, islink FROM localdb.vfile`)
	if err != nil {
		return nil, corecontext.Wrap(corecontext.KindDB, "read vfile for commit", err)
	}
	var out []deck.FCard
	var pending []func() (deck.FCard, error)
	seen := make(map[string]bool)
	for rows.Next() {
		var path string
		var origname *string
		var deleted, isexe, islink int
		if err := rows.Scan(&path, &origname, &deleted, &isexe, &islink); err != nil {
			rows.Close()
			return nil, corecontext.Wrap(corecontext.KindDB, "scan vfile for commit", err)
		}
		seen[path] = true
		change := byPath[path]
		if change.Kind == Removed || deleted == 1 {
			continue // omitted entirely: a checkin deck's F-card absence means "not present"
		}
		oldName := ""
		if origname != nil {
			oldName = *origname
		}
		// fCardFor inserts blobs, so it runs only after rows has released
		// the store's single connection.
		pending = append(pending, func() (deck.FCard, error) {
			return e.fCardFor(path, isexe == 1, islink == 1, oldName)
		})
	}
	rows.Close()
	for _, p := range pending {
		f, ferr := p()
		if ferr != nil {
			return nil, ferr
		}
		out = append(out, f)
	}

	for _, c := range changes {
		if c.Kind == Added && !seen[c.Path] {
			f, ferr := e.fCardFor(c.Path, false, false, "")
			if ferr != nil {
				return nil, ferr
			}
			out = append(out, f)
		}
	}
	return out, nil
}

func (e *Engine) fCardFor(path string, isexe, islink bool, oldName string) (deck.FCard, error) {
	full, err := e.resolve(path)
	if err != nil {
		return deck.FCard{}, err
	}
	content, err := os.ReadFile(full)
	if err != nil {
		return deck.FCard{}, corecontext.Wrap(corecontext.KindIO, "read file for commit", err)
	}
	_, hash, err := e.blobs.Put(content)
	if err != nil {
		return deck.FCard{}, err
	}
	perm := deck.PermNone
	if isexe {
		perm = deck.PermExec
	}
	if islink {
		perm = deck.PermSymlink
	}
	return deck.FCard{Path: path, Hash: &hash, Perm: perm, OldName: oldName}, nil
}

func (e *Engine) hashForRid(rid int64) (string, error) {
	var hash string
	err := e.db.DB().QueryRow(`SELECT uuid FROM repository.blob WHERE rid = ?`, rid).Scan(&hash)
	if err != nil {
		return "", corecontext.Wrap(corecontext.KindDB, "resolve rid to hash", err)
	}
	return hash, nil
}
