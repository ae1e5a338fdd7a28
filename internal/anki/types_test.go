package anki

import "testing"

func TestQueryString(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		want string
	}{
		{"empty", Query{}, ""},
		{"all decks pseudo name", Query{Deck: "All", Tags: []string{"geo"}}, `tag:"geo"`},
		{"none pseudo name", Query{Deck: "-none-"}, ""},
		{"deck and tags", Query{Deck: "World::Capitals", Tags: []string{"geo", " ", "eu"}}, `deck:"World::Capitals" tag:"geo" tag:"eu"`},
		{"any tag", Query{Tags: []string{"a", "b"}, AnyTag: true}, `(tag:"a" OR tag:"b")`},
		{"flags", Query{Deck: "D", ExcludeSuspended: true, ReviewOnly: true}, `deck:"D" -is:suspended is:review`},
		{"new only", Query{NewOnly: true, ExcludeSuspended: true}, `-is:suspended is:new`},
		{"card ids", Query{CardIDs: []int64{3, 1}}, `cid:3,1`},
		{"quotes escaped", Query{Deck: `say "hi"`}, `deck:"say \"hi\""`},
		{"underscore escaped", Query{Deck: "my_deck"}, `deck:"my\_deck"`},
		{"wildcard escaped", Query{Deck: "Geo*", Tags: []string{"a*b"}}, `deck:"Geo\*" tag:"a\*b"`},
		{"backslash escaped", Query{Deck: `C:\notes\`}, `deck:"C:\\notes\\"`},
		{"backslash before quote", Query{Tags: []string{`x\"y`}}, `tag:"x\\\"y"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.String(); got != tt.want {
				t.Fatalf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCardKind(t *testing.T) {
	if (Card{Type: CardTypeNew}).Kind() != "new" {
		t.Fatalf("new card kind mismatch")
	}
	for _, typ := range []int{CardTypeLearning, CardTypeReview, CardTypeRelearning} {
		if (Card{Type: typ}).Kind() != "review" {
			t.Fatalf("type %d kind = %q, want review", typ, (Card{Type: typ}).Kind())
		}
	}
	if !(Card{Queue: QueueSuspended}).Suspended() {
		t.Fatalf("Suspended() = false for queue -1")
	}
}

func TestModelTemplateFor(t *testing.T) {
	basic := Model{Templates: []Template{{Name: "Card 1", Ord: 0}, {Name: "Card 2", Ord: 1}}}
	if tmpl, ok := basic.TemplateFor(1); !ok || tmpl.Name != "Card 2" {
		t.Fatalf("TemplateFor(1) = %#v, %v", tmpl, ok)
	}
	if _, ok := basic.TemplateFor(5); ok {
		t.Fatalf("TemplateFor(5) found a template, want none")
	}
	cloze := Model{Cloze: true, Templates: []Template{{Name: "Cloze", Ord: 0}}}
	if tmpl, ok := cloze.TemplateFor(3); !ok || tmpl.Name != "Cloze" {
		t.Fatalf("cloze TemplateFor(3) = %#v, %v", tmpl, ok)
	}
}

func TestNoteFieldFold(t *testing.T) {
	n := Note{Fields: map[string]string{"Text": "t", "extra": "e"}, FieldOrder: []string{"Text", "extra"}}
	name, value, ok := n.FieldFold("Extra")
	if !ok || name != "extra" || value != "e" {
		t.Fatalf("FieldFold = %q %q %v", name, value, ok)
	}
	if _, _, ok := n.FieldFold("missing"); ok {
		t.Fatalf("FieldFold(missing) ok = true")
	}
}

func TestDeckMatches(t *testing.T) {
	tests := []struct {
		name, deck string
		want       bool
	}{
		{"Geo", "geo", true},
		{"Geo::Capitals", "Geo", true},
		{"Geology", "Geo", false},
		{"Anything", "all", true},
		{"Geo", "Geo::Capitals", false},
	}
	for _, tt := range tests {
		if got := DeckMatches(tt.name, tt.deck); got != tt.want {
			t.Fatalf("DeckMatches(%q, %q) = %v, want %v", tt.name, tt.deck, got, tt.want)
		}
	}
}

func TestMatchTags(t *testing.T) {
	note := []string{"Geo::Europe", "hard"}
	tests := []struct {
		name   string
		want   []string
		anyTag bool
		match  bool
	}{
		{"no predicates", nil, false, true},
		{"no predicates any", nil, true, true},
		{"parent tag", []string{"geo"}, false, true},
		{"all required", []string{"geo", "easy"}, false, false},
		{"any of", []string{"easy", "HARD"}, true, true},
		{"none of", []string{"easy", "history"}, true, false},
		{"prefix is not a parent", []string{"ha"}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchTags(note, tt.want, tt.anyTag); got != tt.match {
				t.Fatalf("MatchTags(%v) = %v, want %v", tt.want, got, tt.match)
			}
		})
	}
}
