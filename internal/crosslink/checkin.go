package crosslink

import (
	"database/sql"
	"errors"

	"github.com/fslcore/fsl/internal/corecontext"
	"github.com/fslcore/fsl/internal/deck"
)

// recordEvent inserts the timeline row every artifact type contributes,
// per §4.6: one event row keyed by artifact rid, carrying the comment
// and user fields relevant to its type.
func (e *Engine) recordEvent(rid int64, d *deck.Deck) error {
	comment := d.Comment
	user := d.User
	etype := eventTypeOf(d.Type)
	mtime := timestampOf(d)

	_, err := e.db.DB().Exec(
		`INSERT INTO repository.event(type, mtime, objid, user, comment) VALUES (?, ?, ?, ?, ?)`,
		etype, mtime, rid, user, comment,
	)
	if err != nil {
		return corecontext.Wrap(corecontext.KindDB, "insert event row", err)
	}
	return nil
}

func eventTypeOf(t deck.Type) string {
	switch t {
	case deck.TypeCheckin:
		return "ci"
	case deck.TypeWiki:
		return "w"
	case deck.TypeTicket:
		return "t"
	case deck.TypeAttachment:
		return "a"
	case deck.TypeTechnote:
		return "e"
	case deck.TypeForumPost:
		return "f"
	default:
		return "g"
	}
}

func timestampOf(d *deck.Deck) float64 {
	if !d.HasD {
		return 0
	}
	return float64(d.Timestamp.Unix())
}

// crosslinkCheckin maintains plink (one row per parent edge, first parent
// marked primary) and mlink (one row per file in the checkin's full file
// list, with its interned filename, blob rid, permission and, for a
// rename, the previous name's fnid; the parent column is not filled),
// per §4.6. Leaves are not stored: Leaves derives them from plink.
func (e *Engine) crosslinkCheckin(rid int64, d *deck.Deck) error {
	for i, parentHash := range d.Parents {
		parentRid, err := e.ridForHash(parentHash)
		if err != nil {
			return err
		}
		if _, err := e.db.DB().Exec(
			`INSERT OR REPLACE INTO repository.plink(pid, cid, isprim, mtime) VALUES (?, ?, ?, ?)`,
			parentRid, rid, boolToInt(i == 0), timestampOf(d),
		); err != nil {
			return corecontext.Wrap(corecontext.KindDB, "insert plink", err)
		}
	}

	files, err := d.AllFiles()
	if err != nil {
		return corecontext.Wrap(corecontext.KindConsistency, "resolve checkin file list", err)
	}
	for _, f := range files {
		fnid, err := e.internFilename(f.Path)
		if err != nil {
			return err
		}
		var fid sql.NullInt64
		if f.Hash != nil {
			blobRid, err := e.ridForHash(*f.Hash)
			if err != nil {
				return err
			}
			fid = sql.NullInt64{Int64: blobRid, Valid: true}
		}
		var pfnid sql.NullInt64
		if f.OldName != "" {
			oldFnid, err := e.internFilename(f.OldName)
			if err != nil {
				return err
			}
			pfnid = sql.NullInt64{Int64: oldFnid, Valid: true}
		}
		if _, err := e.db.DB().Exec(
			`INSERT INTO repository.mlink(mid, fnid, fid, perm, pfnid) VALUES (?, ?, ?, ?, ?)`,
			rid, fnid, fid, int(f.Perm), pfnid,
		); err != nil {
			return corecontext.Wrap(corecontext.KindDB, "insert mlink", err)
		}
	}
	return nil
}

// crosslinkControl applies tag operations carried by a control artifact's
// T-cards to tagxref, per §4.6's propagation rule: a "propagating" tag
// (TagPropagate) applies to the tagged checkin and is inherited by every
// descendant until cancelled; a plain add/cancel applies only to the
// named checkin.
func (e *Engine) crosslinkControl(rid int64, d *deck.Deck) error {
	for _, t := range d.Tags {
		tagid, err := e.internTag(t.Name)
		if err != nil {
			return err
		}
		targetRid, err := e.ridForHash(t.Hash)
		if err != nil {
			return err
		}

		tagtype := 1 // add
		if t.Kind == deck.TagCancel {
			tagtype = 0
		} else if t.Kind == deck.TagPropagate {
			tagtype = 2
		}

		if _, err := e.db.DB().Exec(
			`INSERT OR REPLACE INTO repository.tagxref(tagid, tagtype, srcid, origid, value, mtime, rid) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			tagid, tagtype, rid, targetRid, t.Value, timestampOf(d), targetRid,
		); err != nil {
			return corecontext.Wrap(corecontext.KindDB, "insert tagxref", err)
		}

		if t.Kind == deck.TagPropagate {
			if err := e.propagateTag(tagid, targetRid, t.Value, timestampOf(d)); err != nil {
				return err
			}
		}
	}
	return nil
}

// propagateTag walks the plink child graph from origin, inserting a
// derived tagxref row (tagtype=2) for every descendant that does not
// already carry its own cancellation of the same tag, per §4.6.
func (e *Engine) propagateTag(tagid, origin int64, value string, mtime float64) error {
	visited := map[int64]bool{origin: true}
	queue := []int64{origin}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		rows, err := e.db.DB().Query(`SELECT cid FROM repository.plink WHERE pid = ?`, cur)
		if err != nil {
			return corecontext.Wrap(corecontext.KindDB, "walk plink children", err)
		}
		var children []int64
		for rows.Next() {
			var cid int64
			if err := rows.Scan(&cid); err != nil {
				rows.Close()
				return corecontext.Wrap(corecontext.KindDB, "scan plink child", err)
			}
			children = append(children, cid)
		}
		rows.Close()

		for _, cid := range children {
			if visited[cid] {
				continue
			}
			visited[cid] = true

			var cancelled int
			_ = e.db.DB().QueryRow(
				`SELECT COUNT(*) FROM repository.tagxref WHERE tagid = ? AND rid = ? AND tagtype = 0`,
				tagid, cid,
			).Scan(&cancelled)
			if cancelled > 0 {
				continue // this descendant cancels the tag; do not propagate further
			}

			if _, err := e.db.DB().Exec(
				`INSERT OR REPLACE INTO repository.tagxref(tagid, tagtype, srcid, origid, value, mtime, rid) VALUES (?, 2, ?, ?, ?, ?, ?)`,
				tagid, origin, origin, value, mtime, cid,
			); err != nil {
				return corecontext.Wrap(corecontext.KindDB, "insert propagated tagxref", err)
			}
			queue = append(queue, cid)
		}
	}
	return nil
}

func (e *Engine) ridForHash(hash string) (int64, error) {
	var rid int64
	err := e.db.DB().QueryRow(`SELECT rid FROM repository.blob WHERE uuid = ?`, hash).Scan(&rid)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, corecontext.New(corecontext.KindNotFound, "no blob for hash "+hash)
	}
	if err != nil {
		return 0, corecontext.Wrap(corecontext.KindDB, "resolve hash to rid", err)
	}
	return rid, nil
}

func (e *Engine) internFilename(name string) (int64, error) {
	var fnid int64
	err := e.db.DB().QueryRow(`SELECT fnid FROM repository.filename WHERE name = ?`, name).Scan(&fnid)
	if err == nil {
		return fnid, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, corecontext.Wrap(corecontext.KindDB, "lookup filename", err)
	}
	res, err := e.db.DB().Exec(`INSERT INTO repository.filename(name) VALUES (?)`, name)
	if err != nil {
		return 0, corecontext.Wrap(corecontext.KindDB, "intern filename", err)
	}
	return res.LastInsertId()
}

func (e *Engine) internTag(name string) (int64, error) {
	var tagid int64
	err := e.db.DB().QueryRow(`SELECT tagid FROM repository.tag WHERE tagname = ?`, name).Scan(&tagid)
	if err == nil {
		return tagid, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, corecontext.Wrap(corecontext.KindDB, "lookup tag", err)
	}
	res, err := e.db.DB().Exec(`INSERT INTO repository.tag(tagname) VALUES (?)`, name)
	if err != nil {
		return 0, corecontext.Wrap(corecontext.KindDB, "intern tag", err)
	}
	return res.LastInsertId()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
