// Package extract derives the question and answer text of a note from the
// card template that renders it.
package extract

import (
	"regexp"
	"strings"
	"sync"

	"github.com/five82/cranky/internal/anki"
)

var refPattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// Fields the host fills in itself; they never name note content.
var specialFields = map[string]bool{
	"frontside": true,
	"tags":      true,
	"deck":      true,
	"subdeck":   true,
	"card":      true,
	"cardflag":  true,
	"type":      true,
}

// Info is what a template says about a note's fields.
type Info struct {
	Cloze          bool
	ClozeField     string
	QuestionFields []string
	AnswerFields   []string
}

// ParseTemplate inspects the front and back markup of a card template.
// Answer fields are those the back references and the front does not, in
// back-template order.
func ParseTemplate(front, back string) Info {
	var info Info
	frontRefs, clozeField := fieldRefs(front)
	if clozeField != "" {
		info.Cloze = true
		info.ClozeField = clozeField
	}
	info.QuestionFields = frontRefs

	inFront := make(map[string]bool, len(frontRefs))
	for _, name := range frontRefs {
		inFront[name] = true
	}
	backRefs, _ := fieldRefs(back)
	for _, name := range backRefs {
		if !inFront[name] {
			info.AnswerFields = append(info.AnswerFields, name)
		}
	}
	return info
}

// fieldRefs lists the distinct fields substituted by markup, in order, and
// the field wrapped by the cloze filter if any.
func fieldRefs(markup string) ([]string, string) {
	var (
		refs  []string
		cloze string
		seen  = make(map[string]bool)
	)
	for _, m := range refPattern.FindAllStringSubmatch(markup, -1) {
		inner := strings.TrimSpace(m[1])
		if inner == "" {
			continue
		}
		switch inner[0] {
		case '#', '^', '/', '!':
			continue
		}
		parts := strings.Split(inner, ":")
		name := strings.TrimSpace(parts[len(parts)-1])
		if name == "" || specialFields[strings.ToLower(name)] {
			continue
		}
		for _, filter := range parts[:len(parts)-1] {
			if strings.EqualFold(strings.TrimSpace(filter), "cloze") && cloze == "" {
				cloze = name
			}
		}
		if !seen[name] {
			seen[name] = true
			refs = append(refs, name)
		}
	}
	return refs, cloze
}

// Cache memoizes template parsing for the duration of one export run.
type Cache struct {
	mu    sync.Mutex
	infos map[string]Info
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{infos: make(map[string]Info)}
}

// Lookup returns the Info for the template that renders a card with the
// given ordinal. ok is false when the model has no such template.
func (c *Cache) Lookup(model anki.Model, ord int) (Info, bool) {
	tmpl, ok := model.TemplateFor(ord)
	if !ok {
		return Info{}, false
	}
	key := model.Name + "\x00" + tmpl.Name

	c.mu.Lock()
	defer c.mu.Unlock()
	if info, ok := c.infos[key]; ok {
		return info, true
	}
	info := ParseTemplate(tmpl.Front, tmpl.Back)
	if model.Cloze && !info.Cloze {
		// A cloze note type whose front only shows the field through a
		// custom filter still quizzes that field.
		info.Cloze = true
		if len(info.QuestionFields) > 0 {
			info.ClozeField = info.QuestionFields[0]
		}
	}
	c.infos[key] = info
	return info, true
}

// Len reports how many templates have been parsed.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.infos)
}
