package deck

import "time"

// FCard is one F-card: a file entry in a checkin manifest.
type FCard struct {
	Path string
	// Hash is nil for a deletion (the null-hash case in a delta manifest).
	Hash    *string
	Perm    Perm
	OldName string // non-empty marks a rename from OldName to Path.
}

// Perm is a file's permission bits as recorded on an F-card.
type Perm int

const (
	PermNone Perm = iota
	PermExec
	PermSymlink
)

// TagKind identifies how a T-card applies its tag.
type TagKind int

const (
	TagAdd TagKind = iota // '+'
	TagCancel
	TagPropagate // '*'
)

// TCard is one T-card: a tag application.
type TCard struct {
	Kind  TagKind
	Name  string
	Hash  string // target artifact hash, or "*" for "this artifact".
	Value string // optional tag value; empty if none.
}

// QCard records a cherry-pick or backout marker.
type QCard struct {
	Backout bool // true = '-', false = '+'.
	Hash    string
}

// JCard is a ticket field-value assignment.
type JCard struct {
	Append bool // true when the field name begins with '+' (append mode)
	Field  string
	Value  string
}

// Deck is the in-memory, structured form of a parsed or to-be-serialized
// control artifact (§3.2).
type Deck struct {
	Type Type

	// Singleton cards.
	Comment   string
	HasC      bool
	Timestamp time.Time
	HasD      bool
	User      string
	HasU      bool
	Baseline  string // B-card: baseline manifest hash for delta manifests.
	HasB      bool
	MimeType  string
	HasN      bool
	EventID   string // E-card event id (technotes).
	HasE      bool
	WikiName  string // L-card.
	HasL      bool
	Title     string // H-card.
	HasH      bool
	Content   string // W-card sized blob content.
	HasW      bool
	Attach    string // A-card target name.
	HasA      bool
	TicketID  string // K-card.
	HasK      bool
	InReplyTo string // G-card.
	HasG      bool
	RCard     string // R-card: MD5 over F-card content, hex.
	HasR      bool
	ZCard     string // trailing hash, set by the serializer.

	// List-valued cards, kept in the order Adders append them; Output
	// sorts the ones the spec requires sorted (F, J, M, Q, T) and leaves
	// P (parents) in caller order since primary parent must stay first.
	Files    []FCard
	Parents  []string
	Tags     []TCard
	Cherries []QCard
	Fields   []JCard
	Members  []string // M-card cluster members.

	// raw is a copy of the exact bytes this deck was parsed from; it is
	// nil for a deck built in memory.
	raw []byte

	// baselineDeck is the lazily-loaded baseline manifest for a delta
	// manifest (§3.2, §4.5); ownership is one-shot, set by whatever loads
	// it on first F-card traversal that misses in Files.
	baselineDeck *Deck
	loadBaseline func(hash string) (*Deck, error)
}

// New creates an empty deck of the given type.
func New(typ Type) *Deck {
	return &Deck{Type: typ}
}

// IsDeltaManifest reports whether this checkin deck is a delta manifest
// (carries a B-card baseline reference) rather than a baseline manifest.
func (d *Deck) IsDeltaManifest() bool {
	return d.Type == TypeCheckin && d.HasB
}

// SetBaselineLoader installs the callback used to resolve this delta
// manifest's baseline by hash on first access, per §3.2's "lazily loads
// its baseline when its file list is traversed."
func (d *Deck) SetBaselineLoader(fn func(hash string) (*Deck, error)) {
	d.loadBaseline = fn
}
