package deck

import (
	"strconv"
	"strings"
	"time"

	"github.com/fslcore/fsl/internal/hashcodec"
)

// Probe performs the fast syntactic check that gates a full Parse: the
// buffer must be non-empty and its first byte must be a recognized card
// letter. The rest of the first line is not examined.
func Probe(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	c := CardKind(b[0])
	for _, known := range cardOrder {
		if c == known {
			return true
		}
	}
	return false
}

// Parse consumes a wire-format artifact buffer and produces a fully
// populated Deck, inferring its Type from the cards present. It reports a
// syntax error, a consistency error (Z-card hash mismatch), a range error,
// or a type error per §4.5's parse contract. On any error the returned
// deck must be discarded; the underlying bytes are untouched.
func Parse(b []byte) (*Deck, error) {
	if !Probe(b) {
		return nil, errSyntax("not a recognizable artifact: does not start with a card letter")
	}

	text := string(b)
	lines := splitLines(text)

	typ, err := inferType(lines)
	if err != nil {
		return nil, err
	}
	d := New(typ)
	d.raw = append([]byte(nil), b...)

	var zLineIdx = -1
	for i, line := range lines {
		if line == "" {
			continue
		}
		kind := CardKind(line[0])
		if kind == CardZ {
			zLineIdx = i
			break
		}
		if err := d.parseCardLine(kind, line, lines, &i); err != nil {
			return nil, err
		}
	}

	if zLineIdx < 0 {
		return nil, errSyntax("missing Z-card")
	}
	zFields := strings.SplitN(lines[zLineIdx], " ", 2)
	if len(zFields) != 2 {
		return nil, errSyntax("malformed Z-card")
	}
	wantHash := zFields[1]

	body := strings.Join(lines[:zLineIdx], "\n") + "\n"
	gotHash := hashcodec.MD5Hex([]byte(body))
	if gotHash != wantHash {
		return nil, errConsistency("Z-card hash mismatch")
	}
	d.ZCard = wantHash

	for _, c := range requiredCards(typ) {
		if !d.hasCard(c) {
			return nil, errType("artifact of type " + typ.String() + " missing required card " + string(c))
		}
	}

	return d, nil
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// inferType determines artifact type from the first card encountered that
// uniquely identifies one, per the closed card-legality table.
func inferType(lines []string) (Type, error) {
	for _, line := range lines {
		if line == "" {
			continue
		}
		switch CardKind(line[0]) {
		case CardK:
			return TypeTicket, nil
		case CardL:
			return TypeWiki, nil
		case CardA:
			return TypeAttachment, nil
		case CardM:
			return TypeCluster, nil
		case CardE:
			return TypeTechnote, nil
		case CardH:
			return TypeForumPost, nil
		case CardF, CardB:
			return TypeCheckin, nil
		}
	}
	// No type-discriminating card seen yet: scan for T-card (control) vs
	// W-card-only forum post vs bare checkin (no files, e.g. empty-repo
	// init commit).
	for _, line := range lines {
		if line == "" {
			continue
		}
		switch CardKind(line[0]) {
		case CardT:
			// A lone T-card set (no F/K/L/A/M/E) is a control artifact.
			return TypeControl, nil
		case CardW:
			return TypeForumPost, nil
		}
	}
	return TypeCheckin, nil
}

func (d *Deck) parseCardLine(kind CardKind, line string, lines []string, i *int) error {
	if legalityOf(d.Type, kind) == forbidden {
		return errType("card " + string(kind) + " forbidden for type " + d.Type.String())
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return errSyntax("empty card line")
	}
	rest := strings.TrimPrefix(line, string(rune(kind)))
	rest = strings.TrimPrefix(rest, " ")

	switch kind {
	case CardA:
		d.Attach, d.HasA = hashcodec.Defossilize(rest), true
	case CardC:
		d.Comment, d.HasC = hashcodec.Defossilize(rest), true
	case CardD:
		t, err := parseTimestamp(rest)
		if err != nil {
			return err
		}
		d.Timestamp, d.HasD = t, true
	case CardE:
		d.EventID, d.HasE = hashcodec.Defossilize(rest), true
	case CardF:
		f, err := parseFCard(fields)
		if err != nil {
			return err
		}
		d.Files = append(d.Files, f)
	case CardH:
		d.Title, d.HasH = hashcodec.Defossilize(rest), true
	case CardJ:
		if len(fields) < 2 {
			return errSyntax("malformed J-card")
		}
		name := hashcodec.Defossilize(fields[1])
		append_ := strings.HasPrefix(name, "+")
		if append_ {
			name = name[1:]
		}
		val := ""
		if len(fields) >= 3 {
			val = hashcodec.Defossilize(fields[2])
		}
		d.Fields = append(d.Fields, JCard{Append: append_, Field: name, Value: val})
	case CardK:
		if len(fields) < 2 {
			return errSyntax("malformed K-card")
		}
		d.TicketID, d.HasK = fields[1], true
	case CardL:
		d.WikiName, d.HasL = hashcodec.Defossilize(rest), true
	case CardM:
		if len(fields) < 2 {
			return errSyntax("malformed M-card")
		}
		d.Members = append(d.Members, fields[1])
	case CardN:
		d.MimeType, d.HasN = hashcodec.Defossilize(rest), true
	case CardP:
		d.Parents = append(d.Parents, fields[1:]...)
	case CardQ:
		if len(fields) < 2 || len(fields[1]) < 2 {
			return errSyntax("malformed Q-card")
		}
		q := QCard{Backout: fields[1][0] == '-', Hash: fields[1][1:]}
		d.Cherries = append(d.Cherries, q)
	case CardR:
		if len(fields) < 2 {
			return errSyntax("malformed R-card")
		}
		d.RCard, d.HasR = fields[1], true
	case CardT:
		t, err := parseTCard(fields)
		if err != nil {
			return err
		}
		d.Tags = append(d.Tags, t)
	case CardU:
		d.User, d.HasU = hashcodec.Defossilize(rest), true
	case CardW:
		if len(fields) < 2 {
			return errSyntax("malformed W-card")
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 0 {
			return errRange("invalid W-card size")
		}
		if *i+1 >= len(lines) {
			return errSyntax("W-card content truncated")
		}
		*i++
		content := lines[*i]
		if len(content) != n {
			return errRange("W-card content length mismatch")
		}
		d.Content, d.HasW = content, true
	case CardB:
		if len(fields) < 2 {
			return errSyntax("malformed B-card")
		}
		d.Baseline, d.HasB = fields[1], true
	default:
		return errSyntax("unrecognized card")
	}
	return nil
}

func parseFCard(fields []string) (FCard, error) {
	if len(fields) < 2 {
		return FCard{}, errSyntax("malformed F-card")
	}
	f := FCard{Path: hashcodec.Defossilize(fields[1])}
	if len(fields) == 2 {
		return f, nil // deletion: null hash
	}
	h := fields[2]
	f.Hash = &h
	idx := 3
	for idx < len(fields) {
		switch fields[idx] {
		case "x":
			f.Perm = PermExec
		case "l":
			f.Perm = PermSymlink
		case "w":
			// marker preceding an old-name field for a permission-only
			// rename; no-op here since OldName below captures the name.
		default:
			f.OldName = hashcodec.Defossilize(fields[idx])
		}
		idx++
	}
	return f, nil
}

func parseTCard(fields []string) (TCard, error) {
	if len(fields) < 3 {
		return TCard{}, errSyntax("malformed T-card")
	}
	nameField := fields[1]
	if len(nameField) < 1 {
		return TCard{}, errSyntax("malformed T-card tag name")
	}
	var kind TagKind
	switch nameField[0] {
	case '+':
		kind = TagAdd
	case '-':
		kind = TagCancel
	case '*':
		kind = TagPropagate
	default:
		return TCard{}, errSyntax("malformed T-card sign")
	}
	t := TCard{Kind: kind, Name: hashcodec.Defossilize(nameField[1:]), Hash: fields[2]}
	if len(fields) >= 4 {
		t.Value = hashcodec.Defossilize(fields[3])
	}
	return t, nil
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02T15:04:05.000", s)
	if err != nil {
		t, err = time.Parse("2006-01-02T15:04:05", s)
	}
	if err != nil {
		return time.Time{}, errRange("invalid D-card timestamp")
	}
	return t.UTC(), nil
}
