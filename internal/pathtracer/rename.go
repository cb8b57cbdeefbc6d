package pathtracer

import "github.com/fslcore/fsl/internal/corecontext"

// RenameEvent records one file's identity change observed between two
// checkins: oldPath -> newPath, at the checkin (rid) the rename was
// committed in.
type RenameEvent struct {
	Rid     int64
	OldPath string
	NewPath string
}

// Renames walks the shortest path from an ancestor to a descendant
// checkin, following edges in the tracer's mode, and reports every F-card carrying a non-empty
// old-name field along the way, per §4.8's "filename rename history
// between two commits" scenario (S4).
func (t *Tracer) Renames(from, to int64) ([]RenameEvent, error) {
	path, err := t.Shortest(from, to)
	if err != nil {
		return nil, err
	}

	var out []RenameEvent
	for _, rid := range path.Rids {
		rows, err := t.db.Query(
			`SELECT fn.name, origin.name FROM repository.mlink ml
			 JOIN repository.filename fn ON fn.fnid = ml.fnid
			 JOIN repository.filename origin ON origin.fnid = ml.pfnid
			 WHERE ml.mid = ? AND ml.pfnid IS NOT NULL AND ml.pfnid != ml.fnid`,
			rid,
		)
		if err != nil {
			return nil, corecontext.Wrap(corecontext.KindDB, "query mlink renames", err)
		}
		for rows.Next() {
			var newPath, oldPath string
			if err := rows.Scan(&newPath, &oldPath); err != nil {
				rows.Close()
				return nil, corecontext.Wrap(corecontext.KindDB, "scan mlink rename", err)
			}
			out = append(out, RenameEvent{Rid: rid, OldPath: oldPath, NewPath: newPath})
		}
		rows.Close()
	}
	return out, nil
}
