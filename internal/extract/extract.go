package extract

import (
	"strings"

	"github.com/five82/cranky/internal/anki"
	"github.com/five82/cranky/internal/textclean"
)

// extraField is the conventional name of a cloze note's answer-side field.
const extraField = "Extra"

// Result holds the raw markup chosen for each side of a card.
type Result struct {
	Question string
	Answers  []string
	Cloze    bool
}

// Extract picks question and answer markup from note according to info.
func Extract(note anki.Note, info Info) Result {
	if info.Cloze {
		return extractCloze(note, info)
	}
	res := Result{}
	for _, name := range info.QuestionFields {
		if value, ok := note.Fields[name]; ok {
			res.Question = value
			break
		}
	}
	for _, name := range info.AnswerFields {
		value := note.Fields[name]
		if textclean.Clean(value) == "" {
			continue
		}
		res.Answers = append(res.Answers, value)
	}
	return res
}

func extractCloze(note anki.Note, info Info) Result {
	question := textclean.StripClozes(note.Fields[info.ClozeField])
	res := Result{Question: question, Answers: []string{question}, Cloze: true}

	extraName, extra, ok := note.FieldFold(extraField)
	if ok && textclean.Clean(extra) != "" {
		res.Answers = append(res.Answers, extra)
	}
	if res.Back() != res.Front() {
		return res
	}

	// Nothing beyond the cloze text: fall back to the fullest other field.
	best, bestLen := "", 0
	for _, name := range note.FieldOrder {
		if name == info.ClozeField || (ok && name == extraName) {
			continue
		}
		value := textclean.StripClozes(note.Fields[name])
		if n := textclean.RuneCount(value); n > bestLen {
			best, bestLen = value, n
		}
	}
	if bestLen > 0 {
		res.Answers = append(res.Answers, best)
	}
	return res
}

// Front returns the cleaned question text.
func (r Result) Front() string {
	return textclean.Clean(r.Question)
}

// Back returns the cleaned answers separated by blank lines.
func (r Result) Back() string {
	parts := make([]string, 0, len(r.Answers))
	for _, answer := range r.Answers {
		if cleaned := textclean.Clean(answer); cleaned != "" {
			parts = append(parts, cleaned)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Markup returns every raw field value the result drew from, for media
// scanning.
func (r Result) Markup() []string {
	out := make([]string, 0, 1+len(r.Answers))
	out = append(out, r.Question)
	out = append(out, r.Answers...)
	return out
}
