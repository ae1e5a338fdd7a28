package anki

import (
	"strconv"
	"strings"
)

// Card type values as stored by the host.
const (
	CardTypeNew        = 0
	CardTypeLearning   = 1
	CardTypeReview     = 2
	CardTypeRelearning = 3
)

// QueueSuspended marks a suspended card.
const QueueSuspended = -1

// Card is a read-only view of one host card.
type Card struct {
	ID        int64  `json:"cardId"`
	NoteID    int64  `json:"note"`
	Deck      string `json:"deckName"`
	ModelName string `json:"modelName"`
	Ord       int    `json:"ord"`
	Type      int    `json:"type"`
	Queue     int    `json:"queue"`
	Due       int    `json:"due"`
	Interval  int    `json:"interval"`
	Reps      int    `json:"reps"`
	Lapses    int    `json:"lapses"`
}

// IsReview reports whether the card has graduated to review scheduling.
func (c Card) IsReview() bool {
	return c.Type == CardTypeReview
}

// Suspended reports whether the card sits in the suspended queue.
func (c Card) Suspended() bool {
	return c.Queue == QueueSuspended
}

// Kind collapses the host card type to "new" or "review".
func (c Card) Kind() string {
	if c.Type == CardTypeNew {
		return "new"
	}
	return "review"
}

// Note is a read-only view of one host note.
type Note struct {
	ID         int64
	ModelName  string
	Fields     map[string]string
	FieldOrder []string
	Tags       []string
}

// Field returns the value of the named field, or "".
func (n Note) Field(name string) string {
	return n.Fields[name]
}

// FieldFold returns the first field whose name matches name ignoring case.
func (n Note) FieldFold(name string) (string, string, bool) {
	for _, field := range n.FieldOrder {
		if strings.EqualFold(field, name) {
			return field, n.Fields[field], true
		}
	}
	return "", "", false
}

// Model describes a note type.
type Model struct {
	Name      string
	Cloze     bool
	Fields    []string
	Templates []Template
}

// Template is one card template of a model.
type Template struct {
	Name  string
	Ord   int
	Front string
	Back  string
}

// TemplateFor returns the template used by a card with the given ordinal.
// Cloze models render every card from their first template.
func (m Model) TemplateFor(ord int) (Template, bool) {
	if m.Cloze && len(m.Templates) > 0 {
		return m.Templates[0], true
	}
	for _, tmpl := range m.Templates {
		if tmpl.Ord == ord {
			return tmpl, true
		}
	}
	return Template{}, false
}

// Query is a structured card search. Backends render it in their own terms.
type Query struct {
	Deck             string
	Tags             []string
	ExcludeSuspended bool
	ReviewOnly       bool
	NewOnly          bool
	// AnyTag ORs the tag predicates instead of ANDing them.
	AnyTag  bool
	CardIDs []int64
}

// AllDecks reports whether the deck predicate is absent.
func (q Query) AllDecks() bool {
	return IsAllDecks(q.Deck)
}

// IsAllDecks reports whether deck names the pseudo deck that matches
// every card.
func IsAllDecks(deck string) bool {
	d := strings.TrimSpace(deck)
	return d == "" || strings.EqualFold(d, "all") || d == "-none-"
}

// DeckMatches reports whether a card in deck name is selected by the deck
// predicate deck. Subdecks match their parents; case is ignored.
func DeckMatches(name, deck string) bool {
	if IsAllDecks(deck) {
		return true
	}
	target := strings.ToLower(strings.TrimSpace(deck))
	lower := strings.ToLower(name)
	return lower == target || strings.HasPrefix(lower, target+"::")
}

// MatchTags reports whether a note carrying noteTags satisfies the tag
// predicates want. Hierarchical children match their parent tag.
func MatchTags(noteTags, want []string, anyTag bool) bool {
	active := 0
	for _, w := range want {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		active++
		hit := false
		for _, t := range noteTags {
			if strings.EqualFold(t, w) || strings.HasPrefix(strings.ToLower(t), strings.ToLower(w)+"::") {
				hit = true
				break
			}
		}
		if anyTag && hit {
			return true
		}
		if !anyTag && !hit {
			return false
		}
	}
	return !anyTag || active == 0
}

// String renders the query in the host's search syntax.
func (q Query) String() string {
	var parts []string
	if !q.AllDecks() {
		parts = append(parts, `deck:"`+escapeSearch(strings.TrimSpace(q.Deck))+`"`)
	}
	var tagParts []string
	for _, tag := range q.Tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		tagParts = append(tagParts, `tag:"`+escapeSearch(tag)+`"`)
	}
	switch {
	case len(tagParts) > 1 && q.AnyTag:
		parts = append(parts, "("+strings.Join(tagParts, " OR ")+")")
	default:
		parts = append(parts, tagParts...)
	}
	if q.ExcludeSuspended {
		parts = append(parts, "-is:suspended")
	}
	if q.ReviewOnly {
		parts = append(parts, "is:review")
	}
	if q.NewOnly {
		parts = append(parts, "is:new")
	}
	if len(q.CardIDs) > 0 {
		ids := make([]string, len(q.CardIDs))
		for i, id := range q.CardIDs {
			ids[i] = strconv.FormatInt(id, 10)
		}
		parts = append(parts, "cid:"+strings.Join(ids, ","))
	}
	return strings.Join(parts, " ")
}

// searchEscaper escapes the characters Anki's search syntax treats specially
// inside a quoted term, so deck and tag names match literally.
var searchEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `*`, `\*`, `_`, `\_`)

func escapeSearch(s string) string {
	return searchEscaper.Replace(s)
}
