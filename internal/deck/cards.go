// Package deck implements the parser, validator, and serializer for
// Fossil's structural control-artifact wire format (§3.2, §4.5).
package deck

// Type identifies the kind of artifact a Deck represents. Each type
// permits a fixed, closed subset of cards.
type Type int

const (
	TypeUnknown Type = iota
	TypeCheckin
	TypeCluster
	TypeControl
	TypeWiki
	TypeTicket
	TypeAttachment
	TypeTechnote
	TypeForumPost
)

func (t Type) String() string {
	switch t {
	case TypeCheckin:
		return "checkin"
	case TypeCluster:
		return "cluster"
	case TypeControl:
		return "control"
	case TypeWiki:
		return "wiki"
	case TypeTicket:
		return "ticket"
	case TypeAttachment:
		return "attachment"
	case TypeTechnote:
		return "technote"
	case TypeForumPost:
		return "forum-post"
	default:
		return "unknown"
	}
}

// CardKind is a single-letter card key from the wire format.
type CardKind byte

const (
	CardA CardKind = 'A' // attachment: target name
	CardB CardKind = 'B' // baseline manifest of a delta checkin
	CardC CardKind = 'C' // comment
	CardD CardKind = 'D' // timestamp
	CardE CardKind = 'E' // technote event id + timestamp
	CardF CardKind = 'F' // file entry
	CardG CardKind = 'G' // cluster member (legacy) / forum in-reply-to
	CardH CardKind = 'H' // wiki/forum title
	CardJ CardKind = 'J' // ticket field value
	CardK CardKind = 'K' // ticket id
	CardL CardKind = 'L' // wiki page name
	CardM CardKind = 'M' // cluster member hash / MIME type
	CardN CardKind = 'N' // mimetype / attachment name
	CardP CardKind = 'P' // parent hashes
	CardQ CardKind = 'Q' // cherrypick/backout
	CardR CardKind = 'R' // F-card content checksum
	CardT CardKind = 'T' // tag
	CardU CardKind = 'U' // user
	CardW CardKind = 'W' // wiki/forum/ticket content (sized blob)
	CardZ CardKind = 'Z' // trailing hash
)

// legality describes, per card, whether it is required, optional, or
// forbidden for a given artifact type. The table is intentionally closed:
// no type may be extended with ad-hoc cards at runtime.
type legality int

const (
	forbidden legality = iota
	optional
	required
)

// cardTable[type][card] gives the legality of card for type. Types and
// cards absent from a row default to forbidden.
var cardTable = map[Type]map[CardKind]legality{
	TypeCheckin: {
		CardB: optional,
		CardC: optional, CardD: required, CardE: forbidden,
		CardF: optional, CardN: optional, CardP: optional,
		CardQ: optional, CardR: optional, CardT: optional,
		CardU: required, CardZ: required,
	},
	TypeCluster: {
		CardM: required, CardZ: required,
	},
	TypeControl: {
		CardD: required, CardT: required, CardU: required, CardZ: required,
	},
	TypeWiki: {
		CardC: forbidden, CardD: required, CardL: required,
		CardN: optional, CardP: optional, CardU: required, CardW: required, CardZ: required,
	},
	TypeTicket: {
		CardD: required, CardJ: required, CardK: required, CardU: required, CardZ: required,
	},
	TypeAttachment: {
		CardA: required, CardC: optional, CardD: required, CardK: optional,
		CardN: required, CardU: required, CardZ: required,
	},
	TypeTechnote: {
		CardC: optional, CardD: required, CardE: required, CardG: optional,
		CardN: optional, CardP: optional, CardT: optional, CardU: required,
		CardW: optional, CardZ: required,
	},
	TypeForumPost: {
		CardD: required, CardG: optional, CardH: optional, CardN: optional,
		CardP: optional, CardU: required, CardW: required, CardZ: required,
	},
}

// legalityOf reports whether card is permitted for typ.
func legalityOf(typ Type, card CardKind) legality {
	row, ok := cardTable[typ]
	if !ok {
		return forbidden
	}
	if l, ok := row[card]; ok {
		return l
	}
	return forbidden
}

// requiredCards returns the cards typ requires, in no particular order.
func requiredCards(typ Type) []CardKind {
	var out []CardKind
	for c, l := range cardTable[typ] {
		if l == required {
			out = append(out, c)
		}
	}
	return out
}

// cardOrder is the fixed canonical card emission order (§3.2: "card order
// in the serialized form is lexicographic by card letter").
var cardOrder = []CardKind{
	CardA, CardB, CardC, CardD, CardE, CardF, CardG, CardH,
	CardJ, CardK, CardL, CardM, CardN, CardP, CardQ, CardR,
	CardT, CardU, CardW, CardZ,
}
