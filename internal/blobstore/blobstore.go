// Package blobstore implements content-addressed blob storage over
// corestore: Put/Get/Size, delta-compressed storage via deltacodec,
// phantom-blob bookkeeping for not-yet-received content, and the shun
// list (§4.2, §4.4).
package blobstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/fslcore/fsl/internal/corecontext"
	"github.com/fslcore/fsl/internal/corestore"
	"github.com/fslcore/fsl/internal/deltacodec"
	"github.com/fslcore/fsl/internal/hashcodec"
	"github.com/fslcore/fsl/internal/metrics"
)

// RemoteCache is the subset of cache/redis.Cache's blob methods this
// package depends on, kept as a narrow interface so blobstore never
// imports go-redis directly and can be exercised with a fake in tests.
type RemoteCache interface {
	GetBlob(ctx context.Context, hash string) ([]byte, error)
	PutBlob(ctx context.Context, hash string, content []byte) error
	Invalidate(ctx context.Context, hash string) error
}

// Store is the blob layer built on top of a corestore.Store's repository
// schema. A singleflight group collapses concurrent Get calls for
// the same rid so a burst of readers following one delta chain only pays
// the reconstruction cost once.
type Store struct {
	db     *corestore.Store
	log    zerolog.Logger
	policy hashcodec.Policy

	group   singleflight.Group
	metrics *metrics.Metrics
	remote  RemoteCache
}

// New wraps db for content-addressed blob access. policy controls which
// hash family new inserts use (§6.1's SHA1/SHA3-256 transition rule).
func New(db *corestore.Store, ctx *corecontext.Context, policy hashcodec.Policy) *Store {
	return &Store{db: db, log: ctx.Sub("blobstore"), policy: policy}
}

// SetMetrics wires an optional metrics sink; a nil argument disables
// instrumentation.
func (s *Store) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetRemoteCache wires an optional shared second-tier cache (§3.5,
// §4.5); a nil argument (the default) disables it and every blob read
// goes straight to the storage backend.
func (s *Store) SetRemoteCache(c RemoteCache) {
	s.remote = c
}

// Rid identifies a stored blob by its row id, the internal handle used
// throughout crosslink/checkout once a hash has been resolved.
type Rid int64

// Put stores content under its content hash, computing the hash according
// to the store's insert policy. If a blob with that hash already exists,
// Put is a no-op that returns the existing rid (content addressing means
// re-inserting identical bytes is never an error). Returns the hash too,
// since callers (deck.Save) need it for F/Z-card references.
func (s *Store) Put(content []byte) (Rid, string, error) {
	start := time.Now()
	outcome := "inserted"
	defer func() {
		s.metrics.RecordBlobOperation("put", outcome, time.Since(start).Seconds(), int64(len(content)))
	}()

	family := hashcodec.NewHashForInsert(s.policy, s.hasSeenSHA1())
	hasher, err := hashcodec.HashForFamily(family)
	if err != nil {
		outcome = "error"
		return 0, "", err
	}
	_, _ = hasher.Write(content)
	hash := hasher.HexSum()

	if s.isShunned(hash) {
		outcome = "shunned"
		return 0, "", corecontext.New(corecontext.KindAccess, "content hash is on the shun list: "+hash)
	}

	if rid, ok, err := s.lookupByHash(hash); err != nil {
		outcome = "error"
		return 0, "", err
	} else if ok {
		outcome = "deduplicated"
		return rid, hash, nil
	}

	compressed, err := hashcodec.CompressWithPrefix(content)
	if err != nil {
		outcome = "error"
		return 0, "", err
	}

	res, err := s.db.Prepare(`INSERT INTO repository.blob(size, uuid, content) VALUES (?, ?, ?)`)
	if err != nil {
		outcome = "error"
		return 0, "", err
	}
	r, err := res.Exec(len(content), hash, compressed)
	if err != nil {
		outcome = "error"
		return 0, "", corecontext.Wrap(corecontext.KindDB, "insert blob", err)
	}
	id, err := r.LastInsertId()
	if err != nil {
		outcome = "error"
		return 0, "", corecontext.Wrap(corecontext.KindDB, "read inserted rid", err)
	}

	s.clearPhantom(Rid(id))
	s.log.Debug().Int64("rid", id).Str("hash", hash).Int("size", len(content)).Msg("blob inserted")
	return Rid(id), hash, nil
}

// PutPhantom records that a blob with the given hash is referenced (e.g.
// by a parent's F-card) but has not yet been received, per §4.2's phantom
// tracking. Returns the placeholder rid.
func (s *Store) PutPhantom(hash string) (Rid, error) {
	if rid, ok, err := s.lookupByHash(hash); err != nil {
		return 0, err
	} else if ok {
		return rid, nil
	}
	res, err := s.db.Prepare(`INSERT INTO repository.blob(size, uuid, content) VALUES (-1, ?, NULL)`)
	if err != nil {
		return 0, err
	}
	r, err := res.Exec(hash)
	if err != nil {
		return 0, corecontext.Wrap(corecontext.KindDB, "insert phantom", err)
	}
	id, err := r.LastInsertId()
	if err != nil {
		return 0, corecontext.Wrap(corecontext.KindDB, "read phantom rid", err)
	}
	if _, err := s.db.DB().Exec(`INSERT INTO repository.phantom(rid) VALUES (?)`, id); err != nil {
		return 0, corecontext.Wrap(corecontext.KindDB, "mark phantom", err)
	}
	return Rid(id), nil
}

// IsPhantom reports whether rid's content has never been received.
func (s *Store) IsPhantom(rid Rid) (bool, error) {
	var n int
	err := s.db.DB().QueryRow(`SELECT COUNT(*) FROM repository.phantom WHERE rid = ?`, int64(rid)).Scan(&n)
	if err != nil {
		return false, corecontext.Wrap(corecontext.KindDB, "check phantom", err)
	}
	return n > 0, nil
}

func (s *Store) clearPhantom(rid Rid) {
	_, _ = s.db.DB().Exec(`DELETE FROM repository.phantom WHERE rid = ?`, int64(rid))
}

// Get materializes the full content for rid, reconstructing through a
// delta chain via deltacodec.Apply if this blob is stored as a delta.
func (s *Store) Get(rid Rid) ([]byte, error) {
	start := time.Now()
	out, err, _ := s.group.Do(ridKey(rid), func() (any, error) {
		return s.getCached(rid)
	})
	outcome := "ok"
	size := int64(0)
	if err != nil {
		outcome = "error"
	} else {
		size = int64(len(out.([]byte)))
	}
	s.metrics.RecordBlobOperation("get", outcome, time.Since(start).Seconds(), size)
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

// getCached consults the optional shared remote cache by content hash
// before falling back to reconstruction through the storage backend,
// filling the cache on a miss. With no remote cache configured it is
// exactly getUncached.
func (s *Store) getCached(rid Rid) ([]byte, error) {
	if s.remote == nil {
		return s.getUncached(rid)
	}
	hash, ok, err := s.HashForRid(rid)
	if err != nil || !ok {
		return s.getUncached(rid)
	}
	ctx := context.Background()
	if content, cerr := s.remote.GetBlob(ctx, hash); cerr == nil {
		return content, nil
	}
	content, err := s.getUncached(rid)
	if err != nil {
		return nil, err
	}
	if perr := s.remote.PutBlob(ctx, hash, content); perr != nil {
		s.log.Warn().Err(perr).Str("hash", hash).Msg("failed to populate remote cache")
	}
	return content, nil
}

// HashForRid resolves rid to its content hash, or (..., false, nil) if no
// blob is registered under that rid.
func (s *Store) HashForRid(rid Rid) (string, bool, error) {
	var hash string
	err := s.db.DB().QueryRow(`SELECT uuid FROM repository.blob WHERE rid = ?`, int64(rid)).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, corecontext.Wrap(corecontext.KindDB, "resolve rid to hash", err)
	}
	return hash, true, nil
}

func (s *Store) getUncached(rid Rid) ([]byte, error) {
	var content []byte
	var size int
	err := s.db.DB().QueryRow(`SELECT size, content FROM repository.blob WHERE rid = ?`, int64(rid)).Scan(&size, &content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, corecontext.New(corecontext.KindNotFound, "no such blob")
	}
	if err != nil {
		return nil, corecontext.Wrap(corecontext.KindDB, "read blob", err)
	}
	if size < 0 {
		return nil, corecontext.New(corecontext.KindPhantom, "blob content not yet received")
	}

	var srcid sql.NullInt64
	if qerr := s.db.DB().QueryRow(`SELECT srcid FROM repository.delta WHERE rid = ?`, int64(rid)).Scan(&srcid); qerr == nil {
		raw, derr := hashcodec.DecompressWithPrefix(content)
		if derr != nil {
			return nil, derr
		}
		source, serr := s.getUncached(Rid(srcid.Int64))
		if serr != nil {
			return nil, serr
		}
		applyStart := time.Now()
		result, aerr := deltacodec.Apply(source, raw)
		s.metrics.RecordDeltaApply(time.Since(applyStart).Seconds())
		return result, aerr
	}

	return hashcodec.DecompressWithPrefix(content)
}

// Size returns the logical (uncompressed) byte size of rid's content
// without materializing it, per §4.2's Size operation.
func (s *Store) Size(rid Rid) (int, error) {
	var size int
	err := s.db.DB().QueryRow(`SELECT size FROM repository.blob WHERE rid = ?`, int64(rid)).Scan(&size)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, corecontext.New(corecontext.KindNotFound, "no such blob")
	}
	if err != nil {
		return 0, corecontext.Wrap(corecontext.KindDB, "read blob size", err)
	}
	return size, nil
}

// Deltify rewrites rid's storage to be a delta against src, provided src
// is itself fully materialized (not a phantom and not already a delta of
// rid, which would create a cycle). Used by the repository reorganize
// path to shrink storage after many related checkins accumulate.
func (s *Store) Deltify(rid, src Rid) error {
	for cur := src; ; {
		if cur == rid {
			return corecontext.New(corecontext.KindConsistency, "deltify would create a delta cycle")
		}
		var next int64
		if err := s.db.DB().QueryRow(`SELECT srcid FROM repository.delta WHERE rid = ?`, int64(cur)).Scan(&next); err != nil {
			break
		}
		cur = Rid(next)
	}
	target, err := s.Get(rid)
	if err != nil {
		return err
	}
	source, err := s.Get(src)
	if err != nil {
		return err
	}
	createStart := time.Now()
	delta := deltacodec.Create(source, target)
	s.metrics.RecordDeltaCreate(time.Since(createStart).Seconds(), len(target), len(delta))
	compressed, err := hashcodec.CompressWithPrefix(delta)
	if err != nil {
		return err
	}

	return s.db.WithTransaction(func() error {
		if _, err := s.db.DB().Exec(`UPDATE repository.blob SET content = ? WHERE rid = ?`, compressed, int64(rid)); err != nil {
			return corecontext.Wrap(corecontext.KindDB, "store delta content", err)
		}
		if _, err := s.db.DB().Exec(`INSERT OR REPLACE INTO repository.delta(rid, srcid) VALUES (?, ?)`, int64(rid), int64(src)); err != nil {
			return corecontext.Wrap(corecontext.KindDB, "record delta edge", err)
		}
		return nil
	})
}

// Undeltify rewrites rid's storage back to a raw (non-delta) blob,
// reversing Deltify. Used before shunning or exporting a blob whose
// delta source might itself be removed.
func (s *Store) Undeltify(rid Rid) error {
	content, err := s.Get(rid)
	if err != nil {
		return err
	}
	compressed, err := hashcodec.CompressWithPrefix(content)
	if err != nil {
		return err
	}
	return s.db.WithTransaction(func() error {
		if _, err := s.db.DB().Exec(`UPDATE repository.blob SET content = ? WHERE rid = ?`, compressed, int64(rid)); err != nil {
			return corecontext.Wrap(corecontext.KindDB, "store raw content", err)
		}
		if _, err := s.db.DB().Exec(`DELETE FROM repository.delta WHERE rid = ?`, int64(rid)); err != nil {
			return corecontext.Wrap(corecontext.KindDB, "clear delta edge", err)
		}
		return nil
	})
}

// Shun adds hash to the shun list and removes any stored content for it,
// first rewriting every blob stored as a delta against it back to raw
// form, per §4.4: shunned artifacts are never re-accepted, even if offered
// again by a sync peer.
func (s *Store) Shun(hash, reason string) error {
	var dependents []Rid
	rows, err := s.db.DB().Query(`SELECT d.rid FROM repository.delta d JOIN repository.blob b ON b.rid = d.srcid WHERE b.uuid = ?`, hash)
	if err != nil {
		return corecontext.Wrap(corecontext.KindDB, "find deltas sourced from shunned blob", err)
	}
	for r := int64(0); rows.Next() && rows.Scan(&r) == nil; {
		dependents = append(dependents, Rid(r))
	}
	rows.Close()
	for _, r := range dependents {
		if err := s.Undeltify(r); err != nil {
			return err
		}
	}
	err = s.db.WithTransaction(func() error {
		if _, err := s.db.DB().Exec(`INSERT OR REPLACE INTO repository.shun(uuid, reason) VALUES (?, ?)`, hash, reason); err != nil {
			return corecontext.Wrap(corecontext.KindDB, "insert shun entry", err)
		}
		if _, err := s.db.DB().Exec(`UPDATE repository.blob SET content = NULL, size = -1 WHERE uuid = ?`, hash); err != nil {
			return corecontext.Wrap(corecontext.KindDB, "clear shunned content", err)
		}
		s.log.Warn().Str("hash", hash).Str("reason", reason).Msg("blob shunned")
		return nil
	})
	if err != nil {
		return err
	}
	if s.remote != nil {
		if ierr := s.remote.Invalidate(context.Background(), hash); ierr != nil {
			s.log.Warn().Err(ierr).Str("hash", hash).Msg("failed to invalidate remote cache entry for shunned blob")
		}
	}
	return nil
}

// hasSeenSHA1 reports whether the repository already contains at least
// one 40-character (SHA1) content hash, per PolicyAuto's continuity rule.
func (s *Store) hasSeenSHA1() bool {
	var n int
	_ = s.db.DB().QueryRow(`SELECT COUNT(*) FROM repository.blob WHERE length(uuid) = 40 LIMIT 1`).Scan(&n)
	return n > 0
}

func (s *Store) isShunned(hash string) bool {
	var n int
	_ = s.db.DB().QueryRow(`SELECT COUNT(*) FROM repository.shun WHERE uuid = ?`, hash).Scan(&n)
	return n > 0
}

func (s *Store) lookupByHash(hash string) (Rid, bool, error) {
	var rid int64
	err := s.db.DB().QueryRow(`SELECT rid FROM repository.blob WHERE uuid = ?`, hash).Scan(&rid)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, corecontext.Wrap(corecontext.KindDB, "lookup blob by hash", err)
	}
	return Rid(rid), true, nil
}

func ridKey(rid Rid) string {
	const digits = "0123456789"
	if rid == 0 {
		return "0"
	}
	n := int64(rid)
	var b []byte
	for n > 0 {
		b = append([]byte{digits[n%10]}, b...)
		n /= 10
	}
	return string(b)
}
