package crosslink

import (
	"github.com/fslcore/fsl/internal/corecontext"
)

// TimelineEntry is one row of the derived event timeline.
type TimelineEntry struct {
	Rid     int64
	Type    string
	Mtime   float64
	User    string
	Comment string
}

// Timeline returns up to limit timeline rows ordered newest-first,
// reading the event table crosslinking maintains.
func (e *Engine) Timeline(limit int) ([]TimelineEntry, error) {
	rows, err := e.db.DB().Query(
		`SELECT objid, type, mtime, user, comment FROM repository.event ORDER BY mtime DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, corecontext.Wrap(corecontext.KindDB, "query timeline", err)
	}
	defer rows.Close()

	var out []TimelineEntry
	for rows.Next() {
		var t TimelineEntry
		if err := rows.Scan(&t.Rid, &t.Type, &t.Mtime, &t.User, &t.Comment); err != nil {
			return nil, corecontext.Wrap(corecontext.KindDB, "scan timeline row", err)
		}
		out = append(out, t)
	}
	return out, nil
}

// Leaves returns the rid of every checkin with no child plink row, i.e.
// every branch tip, per §4.6's derived leaf set.
func (e *Engine) Leaves() ([]int64, error) {
	rows, err := e.db.DB().Query(
		`SELECT b.rid FROM repository.blob b
		 JOIN repository.event ev ON ev.objid = b.rid AND ev.type = 'ci'
		 WHERE NOT EXISTS (SELECT 1 FROM repository.plink p WHERE p.pid = b.rid)`,
	)
	if err != nil {
		return nil, corecontext.Wrap(corecontext.KindDB, "query leaves", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var rid int64
		if err := rows.Scan(&rid); err != nil {
			return nil, corecontext.Wrap(corecontext.KindDB, "scan leaf rid", err)
		}
		out = append(out, rid)
	}
	return out, nil
}

// TagValue returns the effective (possibly propagated) value of tagName
// on checkin rid, or ("", false) if untagged there.
func (e *Engine) TagValue(rid int64, tagName string) (string, bool, error) {
	var value string
	err := e.db.DB().QueryRow(
		`SELECT tx.value FROM repository.tagxref tx
		 JOIN repository.tag t ON t.tagid = tx.tagid
		 WHERE t.tagname = ? AND tx.rid = ? AND tx.tagtype != 0
		 ORDER BY tx.mtime DESC LIMIT 1`,
		tagName, rid,
	).Scan(&value)
	if err != nil {
		return "", false, nil
	}
	return value, true, nil
}

// FilenameHistory returns the rid of every checkin that touched path,
// newest first, by joining mlink through the interned filename table.
func (e *Engine) FilenameHistory(path string) ([]int64, error) {
	rows, err := e.db.DB().Query(
		`SELECT ml.mid FROM repository.mlink ml
		 JOIN repository.filename fn ON fn.fnid = ml.fnid
		 JOIN repository.event ev ON ev.objid = ml.mid
		 WHERE fn.name = ? ORDER BY ev.mtime DESC`,
		path,
	)
	if err != nil {
		return nil, corecontext.Wrap(corecontext.KindDB, "query filename history", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var rid int64
		if err := rows.Scan(&rid); err != nil {
			return nil, corecontext.Wrap(corecontext.KindDB, "scan filename history row", err)
		}
		out = append(out, rid)
	}
	return out, nil
}
