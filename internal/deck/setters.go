package deck

import (
	"sort"
	"time"
)

func (d *Deck) checkLegal(card CardKind) error {
	if legalityOf(d.Type, card) == forbidden {
		return errType("card " + string(card) + " is not permitted for artifact type " + d.Type.String())
	}
	return nil
}

// SetComment sets the C-card.
func (d *Deck) SetComment(c string) error {
	if err := d.checkLegal(CardC); err != nil {
		return err
	}
	d.Comment, d.HasC = c, true
	return nil
}

// SetTimestamp sets the D-card.
func (d *Deck) SetTimestamp(t time.Time) error {
	if err := d.checkLegal(CardD); err != nil {
		return err
	}
	d.Timestamp, d.HasD = t.UTC(), true
	return nil
}

// SetUser sets the U-card.
func (d *Deck) SetUser(u string) error {
	if err := d.checkLegal(CardU); err != nil {
		return err
	}
	d.User, d.HasU = u, true
	return nil
}

// SetBaseline sets the B-card, marking this checkin deck as a delta
// manifest.
func (d *Deck) SetBaseline(hash string) error {
	if d.Type != TypeCheckin {
		return errType("B-card only valid on checkin artifacts")
	}
	d.Baseline, d.HasB = hash, true
	return nil
}

// SetMimeType sets the N-card.
func (d *Deck) SetMimeType(m string) error {
	if err := d.checkLegal(CardN); err != nil {
		return err
	}
	d.MimeType, d.HasN = m, true
	return nil
}

// SetWikiName sets the L-card.
func (d *Deck) SetWikiName(name string) error {
	if err := d.checkLegal(CardL); err != nil {
		return err
	}
	d.WikiName, d.HasL = name, true
	return nil
}

// SetTitle sets the H-card.
func (d *Deck) SetTitle(title string) error {
	if err := d.checkLegal(CardH); err != nil {
		return err
	}
	d.Title, d.HasH = title, true
	return nil
}

// SetContent sets the W-card (sized content blob).
func (d *Deck) SetContent(content string) error {
	if err := d.checkLegal(CardW); err != nil {
		return err
	}
	d.Content, d.HasW = content, true
	return nil
}

// SetAttachTarget sets the A-card.
func (d *Deck) SetAttachTarget(target string) error {
	if err := d.checkLegal(CardA); err != nil {
		return err
	}
	d.Attach, d.HasA = target, true
	return nil
}

// SetTicketID sets the K-card.
func (d *Deck) SetTicketID(id string) error {
	if err := d.checkLegal(CardK); err != nil {
		return err
	}
	d.TicketID, d.HasK = id, true
	return nil
}

// SetInReplyTo sets the G-card.
func (d *Deck) SetInReplyTo(hash string) error {
	if err := d.checkLegal(CardG); err != nil {
		return err
	}
	d.InReplyTo, d.HasG = hash, true
	return nil
}

// SetEventID sets the E-card (technote event identifier).
func (d *Deck) SetEventID(id string) error {
	if err := d.checkLegal(CardE); err != nil {
		return err
	}
	d.EventID, d.HasE = id, true
	return nil
}

// AddFile appends (or, if path already present, replaces) an F-card entry.
// F-cards require a unique path (§4.5).
func (d *Deck) AddFile(f FCard) error {
	if err := d.checkLegal(CardF); err != nil {
		return err
	}
	if f.Path == "" {
		return errRange("F-card path must not be empty")
	}
	for i := range d.Files {
		if d.Files[i].Path == f.Path {
			d.Files[i] = f
			return nil
		}
	}
	d.Files = append(d.Files, f)
	return nil
}

// AddParent appends a P-card hash; the first one added is the primary
// parent and Output preserves the caller's order.
func (d *Deck) AddParent(hash string) error {
	if err := d.checkLegal(CardP); err != nil {
		return err
	}
	d.Parents = append(d.Parents, hash)
	return nil
}

// AddTag appends a T-card.
func (d *Deck) AddTag(t TCard) error {
	if err := d.checkLegal(CardT); err != nil {
		return err
	}
	d.Tags = append(d.Tags, t)
	return nil
}

// AddCherry appends a Q-card.
func (d *Deck) AddCherry(q QCard) error {
	if err := d.checkLegal(CardQ); err != nil {
		return err
	}
	d.Cherries = append(d.Cherries, q)
	return nil
}

// AddField appends a J-card (ticket field value).
func (d *Deck) AddField(j JCard) error {
	if err := d.checkLegal(CardJ); err != nil {
		return err
	}
	d.Fields = append(d.Fields, j)
	return nil
}

// AddMember appends an M-card (cluster member hash).
func (d *Deck) AddMember(hash string) error {
	if err := d.checkLegal(CardM); err != nil {
		return err
	}
	d.Members = append(d.Members, hash)
	return nil
}

// unshuffle sorts the list-valued cards that the wire format requires in
// sorted order (F, J, M, Q, T), leaving P-cards in caller order since the
// primary parent must stay first (§4.5).
func (d *Deck) unshuffle() {
	sort.Slice(d.Files, func(i, j int) bool { return d.Files[i].Path < d.Files[j].Path })
	sort.Slice(d.Fields, func(i, j int) bool { return d.Fields[i].Field < d.Fields[j].Field })
	sort.Strings(d.Members)
	sort.Slice(d.Cherries, func(i, j int) bool { return d.Cherries[i].Hash < d.Cherries[j].Hash })
	sort.Slice(d.Tags, func(i, j int) bool {
		if d.Tags[i].Name != d.Tags[j].Name {
			return d.Tags[i].Name < d.Tags[j].Name
		}
		return d.Tags[i].Hash < d.Tags[j].Hash
	})
}
