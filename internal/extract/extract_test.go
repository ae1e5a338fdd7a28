package extract

import (
	"reflect"
	"testing"

	"github.com/five82/cranky/internal/anki"
)

func note(fields ...string) anki.Note {
	n := anki.Note{Fields: map[string]string{}}
	for i := 0; i+1 < len(fields); i += 2 {
		n.Fields[fields[i]] = fields[i+1]
		n.FieldOrder = append(n.FieldOrder, fields[i])
	}
	return n
}

func TestParseTemplate_AnswerFieldsExcludeFront(t *testing.T) {
	info := ParseTemplate("{{A}} {{B}}", "{{FrontSide}}<hr id=answer>{{A}} {{C}}")
	if info.Cloze {
		t.Fatalf("Cloze = true for a basic template")
	}
	if !reflect.DeepEqual(info.QuestionFields, []string{"A", "B"}) {
		t.Fatalf("QuestionFields = %v, want [A B]", info.QuestionFields)
	}
	if !reflect.DeepEqual(info.AnswerFields, []string{"C"}) {
		t.Fatalf("AnswerFields = %v, want [C]", info.AnswerFields)
	}
}

func TestParseTemplate_FiltersSectionsAndSpecials(t *testing.T) {
	front := "{{#Hint}}{{hint:Hint}}{{/Hint}}{{^Audio}}none{{/Audio}}{{text:Word}} {{Tags}} {{Deck}}"
	back := "{{FrontSide}}{{type:Meaning}}{{tts en_US:Word}}{{Card}}{{ Example }}"
	info := ParseTemplate(front, back)
	if !reflect.DeepEqual(info.QuestionFields, []string{"Hint", "Word"}) {
		t.Fatalf("QuestionFields = %v, want [Hint Word]", info.QuestionFields)
	}
	if !reflect.DeepEqual(info.AnswerFields, []string{"Meaning", "Example"}) {
		t.Fatalf("AnswerFields = %v, want [Meaning Example]", info.AnswerFields)
	}
}

func TestParseTemplate_Cloze(t *testing.T) {
	info := ParseTemplate("{{cloze:Text}}", "{{cloze:Text}}<br>{{Back Extra}}")
	if !info.Cloze || info.ClozeField != "Text" {
		t.Fatalf("info = %#v, want cloze on Text", info)
	}
	if !reflect.DeepEqual(info.AnswerFields, []string{"Back Extra"}) {
		t.Fatalf("AnswerFields = %v", info.AnswerFields)
	}
}

func TestExtract_Basic(t *testing.T) {
	info := ParseTemplate("{{Front}}", "{{FrontSide}}<hr>{{Back}}{{Notes}}{{Source}}")
	n := note("Front", "<b>Capital</b> of France?", "Back", "Paris", "Notes", "", "Source", "<div>Atlas</div>")
	res := Extract(n, info)
	if res.Cloze {
		t.Fatalf("Cloze = true")
	}
	if res.Front() != "Capital of France?" {
		t.Fatalf("Front = %q", res.Front())
	}
	if res.Back() != "Paris\n\nAtlas" {
		t.Fatalf("Back = %q, want %q", res.Back(), "Paris\n\nAtlas")
	}
	if len(res.Answers) != 2 {
		t.Fatalf("Answers = %v, want empty field skipped", res.Answers)
	}
}

func TestExtract_FirstQuestionFieldPresentInNote(t *testing.T) {
	info := ParseTemplate("{{Missing}}{{Word}}{{Reading}}", "{{Meaning}}")
	res := Extract(note("Word", "犬", "Reading", "いぬ", "Meaning", "dog"), info)
	if res.Front() != "犬" || res.Back() != "dog" {
		t.Fatalf("Front/Back = %q/%q", res.Front(), res.Back())
	}
}

func TestExtract_ClozeWithExtra(t *testing.T) {
	info := ParseTemplate("{{cloze:Text}}", "{{cloze:Text}}<br>{{Extra}}")
	n := note("Text", "{{c1::Basalt::rock}} is <i>volcanic</i>", "extra", "Cools quickly")
	res := Extract(n, info)
	if !res.Cloze {
		t.Fatalf("Cloze = false")
	}
	if res.Front() != "Basalt is volcanic" {
		t.Fatalf("Front = %q", res.Front())
	}
	if res.Back() != "Basalt is volcanic\n\nCools quickly" {
		t.Fatalf("Back = %q", res.Back())
	}
}

func TestExtract_ClozeFallsBackToRichestField(t *testing.T) {
	info := ParseTemplate("{{cloze:Text}}", "{{cloze:Text}}")
	n := note(
		"Text", "{{c1::Tokyo}} is the capital",
		"Extra", "<br>",
		"Short", "Japan",
		"Long", "<ul><li>Population 14M</li></ul>",
	)
	res := Extract(n, info)
	want := "Tokyo is the capital\n\n• Population 14M"
	if res.Back() != want {
		t.Fatalf("Back = %q, want %q", res.Back(), want)
	}
}

func TestExtract_ClozeNoOtherContent(t *testing.T) {
	info := ParseTemplate("{{cloze:Text}}", "{{cloze:Text}}")
	res := Extract(note("Text", "{{c1::only}}"), info)
	if res.Front() != "only" || res.Back() != "only" {
		t.Fatalf("Front/Back = %q/%q", res.Front(), res.Back())
	}
}

func TestCache_MemoizesPerTemplate(t *testing.T) {
	c := NewCache()
	model := anki.Model{
		Name: "Basic (and reversed)",
		Templates: []anki.Template{
			{Name: "Card 1", Ord: 0, Front: "{{Front}}", Back: "{{Back}}"},
			{Name: "Card 2", Ord: 1, Front: "{{Back}}", Back: "{{Front}}"},
		},
	}
	first, ok := c.Lookup(model, 0)
	if !ok || first.QuestionFields[0] != "Front" {
		t.Fatalf("Lookup(0) = %#v, %v", first, ok)
	}
	second, _ := c.Lookup(model, 1)
	if second.QuestionFields[0] != "Back" {
		t.Fatalf("Lookup(1) = %#v", second)
	}
	c.Lookup(model, 0)
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	if _, ok := c.Lookup(model, 7); ok {
		t.Fatalf("Lookup(7) ok = true")
	}
}

func TestCache_ClozeModelWithoutClozeFilter(t *testing.T) {
	c := NewCache()
	model := anki.Model{Name: "Odd Cloze", Cloze: true, Templates: []anki.Template{{Name: "Cloze", Front: "{{Text}}", Back: "{{Text}}{{Extra}}"}}}
	info, ok := c.Lookup(model, 2)
	if !ok || !info.Cloze || info.ClozeField != "Text" {
		t.Fatalf("Lookup = %#v, %v", info, ok)
	}
}
