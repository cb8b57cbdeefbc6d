// Package checkout implements the working-directory engine: the vfile
// tracking table, change scanning, and the checkout/update/commit/revert
// operations built on top of blobstore, deck, and crosslink (§4.6's
// checkout-side operations, §4.7).
package checkout

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/fslcore/fsl/internal/blobstore"
	"github.com/fslcore/fsl/internal/corecontext"
	"github.com/fslcore/fsl/internal/corestore"
	"github.com/fslcore/fsl/internal/crosslink"
	"github.com/fslcore/fsl/internal/deck"
	"github.com/fslcore/fsl/internal/hashcodec"
	"github.com/fslcore/fsl/internal/metrics"
)

// Engine is the working-directory counterpart to blobstore/crosslink: it
// owns the root path on disk and the vfile table describing what was last
// checked out there.
type Engine struct {
	db    *corestore.Store
	blobs *blobstore.Store
	links *crosslink.Engine
	log   zerolog.Logger

	root    string // absolute, cleaned working-directory root
	metrics *metrics.Metrics
	decks   corecontext.DeckCache
}

// SetMetrics wires an optional metrics sink; a nil argument disables
// instrumentation.
func (e *Engine) SetMetrics(m *metrics.Metrics) {
	e.metrics = m
}

// recordOperation is the common instrumentation point for every
// checkout-engine operation (checkout/commit/revert).
func (e *Engine) recordOperation(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if corecontext.Is(err, corecontext.KindNoop) {
			outcome = "noop"
		}
	}
	e.metrics.RecordCheckoutOperation(operation, outcome, time.Since(start).Seconds())
}

// New builds a checkout Engine rooted at root (the working-directory
// path, per §4.6's "rooted under" confinement requirement).
func New(db *corestore.Store, blobs *blobstore.Store, links *crosslink.Engine, ctx *corecontext.Context, root string) (*Engine, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, corecontext.Wrap(corecontext.KindIO, "resolve checkout root", err)
	}
	return &Engine{db: db, blobs: blobs, links: links, log: ctx.Sub("checkout"), root: abs, decks: ctx.DeckCache()}, nil
}

// parseCheckedOutDeck resolves vid's manifest blob to a parsed deck,
// consulting the context's parsed-deck cache (§3.4/§3.5) before falling
// back to blobstore.Get + deck.Parse.
func (e *Engine) parseCheckedOutDeck(vid int64) (*deck.Deck, error) {
	hash, ok, err := e.blobs.HashForRid(blobstore.Rid(vid))
	if err != nil {
		return nil, err
	}
	if ok && e.decks != nil {
		if cached, cerr := e.decks.Get(hash); cerr == nil {
			if d, ok := cached.(*deck.Deck); ok {
				return d, nil
			}
		}
	}

	raw, err := e.blobs.Get(blobstore.Rid(vid))
	if err != nil {
		return nil, err
	}
	d, err := deck.Parse(raw)
	if err != nil {
		return nil, corecontext.Wrap(corecontext.KindConsistency, "parse checked-out manifest", err)
	}
	if ok && e.decks != nil {
		e.decks.Put(hash, d)
	}
	return d, nil
}

// Root returns the checkout's absolute working-directory path.
func (e *Engine) Root() string { return e.root }

// resolve returns the absolute, confined path for a repository-relative
// path, rejecting any path that would escape the checkout root.
func (e *Engine) resolve(relPath string) (string, error) {
	clean := filepath.Clean(relPath)
	if clean == ".." || hasParentPrefix(clean) {
		return "", corecontext.New(corecontext.KindMisuse, "path escapes checkout root: "+relPath)
	}
	full := filepath.Join(e.root, clean)
	if full != e.root && !isWithin(e.root, full) {
		return "", corecontext.New(corecontext.KindMisuse, "path escapes checkout root: "+relPath)
	}
	return full, nil
}

func isWithin(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !hasParentPrefix(rel)
}

func hasParentPrefix(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}

// CheckedOutVersion returns the rid of the checkin currently recorded in
// vvar, or 0 if none (a freshly opened, empty checkout).
func (e *Engine) CheckedOutVersion() (int64, error) {
	var vid int64
	err := e.db.DB().QueryRow(`SELECT value FROM localdb.vvar WHERE name = 'checkout'`).Scan(&vid)
	if err != nil {
		return 0, nil
	}
	return vid, nil
}

func (e *Engine) setCheckedOutVersion(vid int64) error {
	_, err := e.db.DB().Exec(`INSERT OR REPLACE INTO localdb.vvar(name, value) VALUES ('checkout', ?)`, vid)
	if err != nil {
		return corecontext.Wrap(corecontext.KindDB, "update vvar checkout", err)
	}
	return nil
}

// Checkout extracts the full file content of the checkin deck d (rid)
// into the working directory, populates vfile from its F-card list, and
// records the new checked-out version. It is the "cold" path used for an
// initial checkout or a hard reset: working files are overwritten without
// merging local edits, and this package has no merge-aware update between
// two versions.
func (e *Engine) Checkout(rid int64, d *deck.Deck) (err error) {
	start := time.Now()
	defer func() { e.recordOperation("checkout", start, err) }()

	files, err := d.AllFiles()
	if err != nil {
		return corecontext.Wrap(corecontext.KindConsistency, "resolve checkin file list", err)
	}

	g := new(errgroup.Group)
	g.SetLimit(8)
	for _, f := range files {
		f := f
		g.Go(func() error { return e.extractFile(f) })
	}
	if err = g.Wait(); err != nil {
		return err
	}

	err = e.db.WithTransaction(func() error {
		if _, err := e.db.DB().Exec(`DELETE FROM localdb.vfile`); err != nil {
			return corecontext.Wrap(corecontext.KindDB, "clear vfile", err)
		}
		for _, f := range files {
			if err := e.insertVfile(rid, f); err != nil {
				return err
			}
		}
		return e.setCheckedOutVersion(rid)
	})
	return err
}

func (e *Engine) extractFile(f deck.FCard) error {
	if f.Hash == nil {
		return nil // deletion entries never appear in AllFiles' merged output
	}
	rid, ok, err := e.ridForHash(*f.Hash)
	if err != nil {
		return err
	}
	if !ok {
		return corecontext.New(corecontext.KindNotFound, "no blob for file hash "+*f.Hash)
	}
	content, err := e.blobs.Get(blobstore.Rid(rid))
	if err != nil {
		return err
	}

	full, err := e.resolve(f.Path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return corecontext.Wrap(corecontext.KindIO, "create parent directories", err)
	}
	mode := os.FileMode(0o644)
	if f.Perm == deck.PermExec {
		mode = 0o755
	}
	if f.Perm == deck.PermSymlink {
		return os.Symlink(content2string(content), full)
	}
	if err := os.WriteFile(full, content, mode); err != nil {
		return corecontext.Wrap(corecontext.KindIO, "write checkout file", err)
	}
	e.log.Debug().Str("path", f.Path).Msg("extracted file")
	return nil
}

func content2string(b []byte) string { return string(b) }

func (e *Engine) insertVfile(vid int64, f deck.FCard) error {
	var rid int64
	var probeHash string
	if f.Hash != nil {
		r, ok, err := e.ridForHash(*f.Hash)
		if err != nil {
			return err
		}
		if ok {
			rid = r
			if content, gerr := e.blobs.Get(blobstore.Rid(r)); gerr == nil {
				probeHash = hashcodec.MD5Hex(content)
			}
		}
	}
	isexe := boolToInt(f.Perm == deck.PermExec)
	islink := boolToInt(f.Perm == deck.PermSymlink)
	_, err := e.db.DB().Exec(
		`INSERT INTO localdb.vfile(vid, rid, mrid, pathname, isexe, islink, hash) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		vid, rid, rid, f.Path, isexe, islink, probeHash,
	)
	if err != nil {
		return corecontext.Wrap(corecontext.KindDB, "insert vfile row", err)
	}
	return nil
}

func (e *Engine) ridForHash(hash string) (int64, bool, error) {
	var rid int64
	err := e.db.DB().QueryRow(`SELECT rid FROM repository.blob WHERE uuid = ?`, hash).Scan(&rid)
	if err != nil {
		return 0, false, nil
	}
	return rid, true, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
