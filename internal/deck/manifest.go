package deck

import "sort"

// FindFile looks up path in this checkin deck's own (sorted) F-card list;
// on a miss it transparently loads the baseline manifest (if this is a
// delta manifest) and searches there, per §4.5. caseSensitive controls
// whether comparisons honor the repository case-sensitivity setting.
func (d *Deck) FindFile(path string, caseSensitive bool) (*FCard, error) {
	if f := searchFiles(d.Files, path, caseSensitive); f != nil {
		return f, nil
	}
	if !d.HasB {
		return nil, nil
	}
	base, err := d.Baseline_()
	if err != nil {
		return nil, err
	}
	if base == nil {
		return nil, nil
	}
	return searchFiles(base.Files, path, caseSensitive), nil
}

// Baseline_ resolves and caches this delta manifest's baseline deck via
// the installed loader. Named with a trailing underscore to avoid
// colliding with the Baseline hash field.
func (d *Deck) Baseline_() (*Deck, error) {
	if !d.HasB {
		return nil, nil
	}
	if d.baselineDeck != nil {
		return d.baselineDeck, nil
	}
	if d.loadBaseline == nil {
		return nil, errNotFound("baseline manifest " + d.Baseline + " has no resolver installed")
	}
	base, err := d.loadBaseline(d.Baseline)
	if err != nil {
		return nil, err
	}
	d.baselineDeck = base
	return base, nil
}

func searchFiles(files []FCard, path string, caseSensitive bool) *FCard {
	key := path
	if !caseSensitive {
		key = lower(path)
	}
	idx := sort.Search(len(files), func(i int) bool {
		c := files[i].Path
		if !caseSensitive {
			c = lower(c)
		}
		return c >= key
	})
	if idx < len(files) {
		c := files[idx].Path
		if !caseSensitive {
			c = lower(c)
		}
		if c == key {
			return &files[idx]
		}
	}
	return nil
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// AllFiles returns the effective, merged file list for this manifest: its
// own F-cards plus, for a delta manifest, any baseline entries not
// superseded (added, modified, or deleted) by this deck.
func (d *Deck) AllFiles() ([]FCard, error) {
	if !d.HasB {
		out := make([]FCard, len(d.Files))
		copy(out, d.Files)
		return out, nil
	}
	base, err := d.Baseline_()
	if err != nil {
		return nil, err
	}
	overrides := make(map[string]FCard, len(d.Files))
	for _, f := range d.Files {
		overrides[f.Path] = f
	}

	var out []FCard
	if base != nil {
		baseFiles, err := base.AllFiles()
		if err != nil {
			return nil, err
		}
		for _, f := range baseFiles {
			if ov, ok := overrides[f.Path]; ok {
				delete(overrides, f.Path)
				if ov.Hash != nil {
					out = append(out, ov)
				} // else: deletion, omit entirely
				continue
			}
			out = append(out, f)
		}
	}
	for _, f := range d.Files {
		if _, stillPending := overrides[f.Path]; stillPending && f.Hash != nil {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
