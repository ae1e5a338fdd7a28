// Package textclean turns note field markup into the plain text sent to the
// palace service.
package textclean

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"
)

var (
	clozePattern   = regexp.MustCompile(`(?s)\{\{c\d+::(.*?)(?:::.*?)?\}\}`)
	blockPattern   = regexp.MustCompile(`(?is)<(style|script)\b[^>]*>.*?</(style|script)\s*>`)
	liOpenPattern  = regexp.MustCompile(`(?i)<li\b[^>]*>`)
	liClosePattern = regexp.MustCompile(`(?i)</li\s*>`)
	listPattern    = regexp.MustCompile(`(?i)</?(ul|ol)\b[^>]*>`)
	brPattern      = regexp.MustCompile(`(?i)<br\s*/?>`)
	divPattern     = regexp.MustCompile(`(?i)</?(div|p)\b[^>]*>`)
	soundPattern   = regexp.MustCompile(`\[sound:[^\]]*\]`)
	newlines       = regexp.MustCompile(`\n{3,}`)
	tagPattern     = regexp.MustCompile(`<(/?)([A-Za-z][^\s/>]*)`)

	strict = bluemonday.StrictPolicy()
)

// elements are the tag names Clean treats as markup. Anything else that
// looks like a tag, such as List<String>, is kept as text.
var elements = map[atom.Atom]bool{
	atom.A: true, atom.Abbr: true, atom.Address: true, atom.Area: true, atom.Article: true,
	atom.Aside: true, atom.Audio: true, atom.B: true, atom.Base: true, atom.Bdi: true,
	atom.Bdo: true, atom.Big: true, atom.Blockquote: true, atom.Body: true, atom.Br: true,
	atom.Button: true, atom.Canvas: true, atom.Caption: true, atom.Center: true, atom.Cite: true,
	atom.Code: true, atom.Col: true, atom.Colgroup: true, atom.Dd: true, atom.Del: true,
	atom.Details: true, atom.Dfn: true, atom.Dialog: true, atom.Div: true, atom.Dl: true,
	atom.Dt: true, atom.Em: true, atom.Embed: true, atom.Fieldset: true, atom.Figcaption: true,
	atom.Figure: true, atom.Font: true, atom.Footer: true, atom.Form: true, atom.H1: true,
	atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Head: true, atom.Header: true, atom.Hgroup: true, atom.Hr: true, atom.Html: true,
	atom.I: true, atom.Iframe: true, atom.Img: true, atom.Input: true, atom.Ins: true,
	atom.Kbd: true, atom.Label: true, atom.Legend: true, atom.Li: true, atom.Link: true,
	atom.Main: true, atom.Mark: true, atom.Math: true, atom.Menu: true, atom.Meta: true,
	atom.Meter: true, atom.Nav: true, atom.Noscript: true, atom.Ol: true, atom.Optgroup: true,
	atom.Option: true, atom.Output: true, atom.P: true, atom.Param: true, atom.Picture: true,
	atom.Pre: true, atom.Progress: true, atom.Q: true, atom.Rp: true, atom.Rt: true,
	atom.Ruby: true, atom.S: true, atom.Samp: true, atom.Script: true, atom.Section: true,
	atom.Select: true, atom.Small: true, atom.Source: true, atom.Span: true, atom.Strike: true,
	atom.Strong: true, atom.Style: true, atom.Sub: true, atom.Summary: true, atom.Sup: true,
	atom.Svg: true, atom.Table: true, atom.Tbody: true, atom.Td: true, atom.Template: true,
	atom.Textarea: true, atom.Tfoot: true, atom.Th: true, atom.Thead: true, atom.Tr: true,
	atom.Track: true, atom.Tt: true, atom.U: true, atom.Ul: true, atom.Var: true,
	atom.Video: true, atom.Wbr: true,
}

// Bullet prefixes every list item in cleaned text.
const Bullet = "• "

// StripClozes removes {{cN::text::hint}} wrappers, keeping text.
func StripClozes(s string) string {
	for {
		next := clozePattern.ReplaceAllString(s, "$1")
		if next == s {
			return next
		}
		s = next
	}
}

// Clean strips markup from s while keeping list items and line breaks.
// The result is a fixed point: Clean(Clean(s)) == Clean(s). Every pass
// that changes its input makes it shorter, so the loop ends.
func Clean(s string) string {
	for {
		next := cleanOnce(s)
		if next == s {
			return next
		}
		s = next
	}
}

func cleanOnce(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = blockPattern.ReplaceAllString(s, "")
	s = soundPattern.ReplaceAllString(s, "")
	s = liOpenPattern.ReplaceAllString(s, "\n"+Bullet)
	s = liClosePattern.ReplaceAllString(s, "")
	s = listPattern.ReplaceAllString(s, "\n")
	s = brPattern.ReplaceAllString(s, "\n")
	s = divPattern.ReplaceAllString(s, "\n")
	s = escapeUnknownTags(s)

	// The strict policy drops every remaining tag and re-escapes the text,
	// so a single unescape afterwards decodes both layers.
	s = html.UnescapeString(strict.Sanitize(s))
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r", "\n")
	s = newlines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// escapeUnknownTags escapes the "<" of tag-like text whose name is not an
// HTML element, so the sanitizer keeps it.
func escapeUnknownTags(s string) string {
	return tagPattern.ReplaceAllStringFunc(s, func(tag string) string {
		name := strings.TrimPrefix(tag[1:], "/")
		if elements[atom.Lookup([]byte(strings.ToLower(name)))] {
			return tag
		}
		return "&lt;" + tag[1:]
	})
}

// RuneCount reports the length of s after cleaning. Field ranking uses it
// to find the richest field of a note.
func RuneCount(s string) int {
	return len([]rune(Clean(s)))
}
