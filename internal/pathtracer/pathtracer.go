// Package pathtracer computes shortest paths through the commit DAG
// (plink edges) using a priority-queue breadth-first search, supporting
// both undirected (ignore edge direction) and one-way (parent-to-child
// only) traversal modes, plus derivation of rename events between two
// checkins (§4.8, scenario S4).
package pathtracer

import (
	"container/heap"
	"database/sql"

	"github.com/fslcore/fsl/internal/corecontext"
)

// Mode selects which plink edges a Tracer may traverse.
type Mode int

const (
	// ModeOneWay only follows parent -> child edges, matching "is an
	// ancestor of" queries.
	ModeOneWay Mode = iota
	// ModeUndirected follows edges in either direction, used for
	// "distance between any two checkins" queries.
	ModeUndirected
)

// Tracer computes paths over the plink graph recorded by crosslink.
type Tracer struct {
	db   *sql.DB
	mode Mode
}

// New builds a Tracer reading plink edges from db in the given mode.
func New(db *sql.DB, mode Mode) *Tracer {
	return &Tracer{db: db, mode: mode}
}

// node is one entry in the BFS priority queue: dist is hop count from
// the start, used both as priority and as the returned path length.
type node struct {
	rid  int64
	dist int
}

type nodeHeap []node

func (h nodeHeap) Len() int            { return len(h) }
func (h nodeHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h nodeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x interface{}) { *h = append(*h, x.(node)) }
func (h *nodeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Path is the result of a successful Shortest query: the sequence of
// rids from from to to inclusive, and its length in hops.
type Path struct {
	Rids   []int64
	Length int
}

// Shortest finds the minimum-hop path between from and to, returning
// corecontext.KindNotFound if no path exists in the tracer's mode.
func (t *Tracer) Shortest(from, to int64) (*Path, error) {
	if from == to {
		return &Path{Rids: []int64{from}, Length: 0}, nil
	}

	dist := map[int64]int{from: 0}
	prev := map[int64]int64{}

	h := &nodeHeap{{rid: from, dist: 0}}
	heap.Init(h)

	for h.Len() > 0 {
		cur := heap.Pop(h).(node)
		if cur.dist > dist[cur.rid] {
			continue // stale entry, a shorter path to this node was already found
		}
		if cur.rid == to {
			return t.reconstruct(prev, from, to, cur.dist), nil
		}
		neighbors, err := t.neighbors(cur.rid)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbors {
			nd := cur.dist + 1
			if existing, ok := dist[n]; !ok || nd < existing {
				dist[n] = nd
				prev[n] = cur.rid
				heap.Push(h, node{rid: n, dist: nd})
			}
		}
	}
	return nil, corecontext.New(corecontext.KindNotFound, "no path between the given checkins")
}

func (t *Tracer) reconstruct(prev map[int64]int64, from, to int64, length int) *Path {
	rids := []int64{to}
	cur := to
	for cur != from {
		cur = prev[cur]
		rids = append([]int64{cur}, rids...)
	}
	return &Path{Rids: rids, Length: length}
}

func (t *Tracer) neighbors(rid int64) ([]int64, error) {
	query := `SELECT cid FROM repository.plink WHERE pid = ?`
	if t.mode == ModeUndirected {
		query = `SELECT cid FROM repository.plink WHERE pid = ? UNION SELECT pid FROM repository.plink WHERE cid = ?`
	}
	var rows *sql.Rows
	var err error
	if t.mode == ModeUndirected {
		rows, err = t.db.Query(query, rid, rid)
	} else {
		rows, err = t.db.Query(query, rid)
	}
	if err != nil {
		return nil, corecontext.Wrap(corecontext.KindDB, "query plink neighbors", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var n int64
		if err := rows.Scan(&n); err != nil {
			return nil, corecontext.Wrap(corecontext.KindDB, "scan plink neighbor", err)
		}
		out = append(out, n)
	}
	return out, nil
}

// Midpoint returns the rid nearest the midpoint of the shortest path
// between from and to, useful for bisecting a regression search.
func (t *Tracer) Midpoint(from, to int64) (int64, error) {
	p, err := t.Shortest(from, to)
	if err != nil {
		return 0, err
	}
	return p.Rids[len(p.Rids)/2], nil
}
