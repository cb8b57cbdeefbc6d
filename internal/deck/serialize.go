package deck

import (
	"fmt"
	"strings"
	"time"

	"github.com/fslcore/fsl/internal/hashcodec"
)

// permLetter returns the F-card permission suffix, or "" for PermNone.
func permLetter(p Perm) string {
	switch p {
	case PermExec:
		return " x"
	case PermSymlink:
		return " l"
	default:
		return ""
	}
}

// fCardContentStream concatenates, in canonical (sorted) order, the bytes
// the R-card checksums: each F-card's path, hash, and permission, per
// §3.2's "R-card equals the MD5 over the F-card content stream."
func fCardContentStream(files []FCard) []byte {
	var b strings.Builder
	for _, f := range files {
		b.WriteString(f.Path)
		if f.Hash != nil {
			b.WriteString(*f.Hash)
		}
		switch f.Perm {
		case PermExec:
			b.WriteString("x")
		case PermSymlink:
			b.WriteString("l")
		}
	}
	return []byte(b.String())
}

// Output serializes the deck to its canonical wire form: unshuffle, write
// cards in fixed order, optionally compute the R-card, append the Z-card.
// withRCard controls whether a checkin deck's R-card integrity checksum is
// (re)computed; verifyRequired, when true, fails if any required card for
// the deck's type is missing.
func (d *Deck) Output(withRCard, verifyRequired bool) ([]byte, error) {
	if verifyRequired {
		for _, c := range requiredCards(d.Type) {
			if !d.hasCard(c) {
				return nil, errType("missing required card " + string(c) + " for type " + d.Type.String())
			}
		}
	}

	d.unshuffle()

	if withRCard && d.Type == TypeCheckin {
		d.RCard = hashcodec.MD5Hex(fCardContentStream(d.Files))
		d.HasR = true
	}

	var b strings.Builder
	for _, kind := range cardOrder {
		if err := d.writeCard(&b, kind); err != nil {
			return nil, err
		}
	}

	body := b.String()
	hash := hashcodec.MD5Hex([]byte(body))
	d.ZCard = hash
	b.WriteString("Z ")
	b.WriteString(hash)
	b.WriteString("\n")

	return []byte(b.String()), nil
}

func (d *Deck) hasCard(c CardKind) bool {
	switch c {
	case CardA:
		return d.HasA
	case CardC:
		return d.HasC
	case CardD:
		return d.HasD
	case CardE:
		return d.HasE
	case CardF:
		return len(d.Files) > 0
	case CardH:
		return d.HasH
	case CardJ:
		return len(d.Fields) > 0
	case CardK:
		return d.HasK
	case CardL:
		return d.HasL
	case CardM:
		return len(d.Members) > 0
	case CardN:
		return d.HasN
	case CardP:
		return len(d.Parents) > 0
	case CardQ:
		return len(d.Cherries) > 0
	case CardR:
		return d.HasR
	case CardT:
		return len(d.Tags) > 0
	case CardU:
		return d.HasU
	case CardW:
		return d.HasW
	case CardZ:
		return true // written unconditionally by Output
	default:
		return false
	}
}

func (d *Deck) writeCard(b *strings.Builder, kind CardKind) error {
	switch kind {
	case CardA:
		if d.HasA {
			fmt.Fprintf(b, "A %s\n", hashcodec.Fossilize(d.Attach))
		}
	case CardB:
		if d.HasB {
			fmt.Fprintf(b, "B %s\n", d.Baseline)
		}
	case CardC:
		if d.HasC {
			fmt.Fprintf(b, "C %s\n", hashcodec.Fossilize(d.Comment))
		}
	case CardD:
		if d.HasD {
			fmt.Fprintf(b, "D %s\n", formatTimestamp(d.Timestamp))
		}
	case CardE:
		if d.HasE {
			fmt.Fprintf(b, "E %s\n", hashcodec.Fossilize(d.EventID))
		}
	case CardF:
		for _, f := range d.Files {
			writeFCard(b, f)
		}
	case CardH:
		if d.HasH {
			fmt.Fprintf(b, "H %s\n", hashcodec.Fossilize(d.Title))
		}
	case CardJ:
		for _, j := range d.Fields {
			name := j.Field
			if j.Append {
				name = "+" + name
			}
			fmt.Fprintf(b, "J %s %s\n", hashcodec.Fossilize(name), hashcodec.Fossilize(j.Value))
		}
	case CardK:
		if d.HasK {
			fmt.Fprintf(b, "K %s\n", d.TicketID)
		}
	case CardL:
		if d.HasL {
			fmt.Fprintf(b, "L %s\n", hashcodec.Fossilize(d.WikiName))
		}
	case CardM:
		for _, m := range d.Members {
			fmt.Fprintf(b, "M %s\n", m)
		}
	case CardN:
		if d.HasN {
			fmt.Fprintf(b, "N %s\n", hashcodec.Fossilize(d.MimeType))
		}
	case CardP:
		if len(d.Parents) > 0 {
			b.WriteString("P")
			for _, p := range d.Parents {
				b.WriteString(" " + p)
			}
			b.WriteString("\n")
		}
	case CardQ:
		for _, q := range d.Cherries {
			sign := "+"
			if q.Backout {
				sign = "-"
			}
			fmt.Fprintf(b, "Q %s%s\n", sign, q.Hash)
		}
	case CardR:
		if d.HasR {
			fmt.Fprintf(b, "R %s\n", d.RCard)
		}
	case CardT:
		for _, t := range d.Tags {
			writeTCard(b, t)
		}
	case CardU:
		if d.HasU {
			fmt.Fprintf(b, "U %s\n", hashcodec.Fossilize(d.User))
		}
	case CardW:
		if d.HasW {
			fmt.Fprintf(b, "W %d\n%s\n", len(d.Content), d.Content)
		}
	case CardZ:
		// Written by Output after hashing the preceding cards.
	}
	return nil
}

func writeFCard(b *strings.Builder, f FCard) {
	b.WriteString("F ")
	b.WriteString(hashcodec.Fossilize(f.Path))
	if f.Hash != nil {
		b.WriteString(" ")
		b.WriteString(*f.Hash)
		b.WriteString(permLetter(f.Perm))
		if f.OldName != "" {
			if f.Perm == PermNone {
				b.WriteString(" w")
			}
			b.WriteString(" ")
			b.WriteString(hashcodec.Fossilize(f.OldName))
		}
	}
	b.WriteString("\n")
}

func writeTCard(b *strings.Builder, t TCard) {
	sign := "+"
	switch t.Kind {
	case TagCancel:
		sign = "-"
	case TagPropagate:
		sign = "*"
	}
	fmt.Fprintf(b, "T %s%s %s", sign, hashcodec.Fossilize(t.Name), t.Hash)
	if t.Value != "" {
		fmt.Fprintf(b, " %s", hashcodec.Fossilize(t.Value))
	}
	b.WriteString("\n")
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000")
}
