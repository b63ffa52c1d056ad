package htmlproc

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	// Inline footnote markers: (1), [2], and the page marker ⦗ص: 12⦘.
	parenMarkerRe   = regexp.MustCompile(`\([0-9\x{0660}-\x{0669}]+\)`)
	bracketMarkerRe = regexp.MustCompile(`\[[0-9\x{0660}-\x{0669}]+\]`)
	pageMarkerRe    = regexp.MustCompile(`\x{2997}\s*ص:\s*[0-9\x{0660}-\x{0669}]+\s*\x{2998}`)

	multiBlankRe = regexp.MustCompile(`\n{3,}`)
	spaceRunRe   = regexp.MustCompile(`[ \t]+`)
)

// NormalizeDigits converts Arabic-Indic and Extended Arabic-Indic digits to
// ASCII.
func NormalizeDigits(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 0x0660 && r <= 0x0669:
			return '0' + (r - 0x0660)
		case r >= 0x06F0 && r <= 0x06F9:
			return '0' + (r - 0x06F0)
		}
		return r
	}, s)
}

// StripMarkers removes inline footnote and page markers from cleaned text.
func StripMarkers(s string) string {
	s = parenMarkerRe.ReplaceAllString(s, "")
	s = bracketMarkerRe.ReplaceAllString(s, "")
	s = pageMarkerRe.ReplaceAllString(s, "")
	return s
}

// CleanNode renders a parsed HTML node to markdown-like plain text:
// footnote divs, superscripts, and page heads are dropped; title spans are
// wrapped in **…**; block elements become paragraph breaks.
func CleanNode(n *html.Node) string {
	var b strings.Builder
	cleanInto(&b, n)
	return tidyText(b.String())
}

// CleanFragment parses an HTML fragment and cleans it. Used by the chunker
// on segment HTML, with the same rules the page processor applies; page runs
// are joined with the inter-page spacing rule so a sentence cut across a
// page boundary flows back together.
func CleanFragment(fragment string) string {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), nil)
	if err != nil {
		// A fragment that will not parse is treated as text.
		return tidyText(fragment)
	}
	var j pageJoiner
	for _, n := range nodes {
		j.walk(n)
	}
	j.flush()
	return JoinPages(j.pages)
}

// pageJoiner splits a fragment into per-page runs so JoinPages can decide
// each junction. A segment can start mid-page, so content before the first
// page div forms its own run.
type pageJoiner struct {
	pages []string
	cur   strings.Builder
}

func (j *pageJoiner) flush() {
	if text := tidyText(j.cur.String()); text != "" {
		j.pages = append(j.pages, text)
	}
	j.cur.Reset()
}

func (j *pageJoiner) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		j.cur.WriteString(n.Data)
		return
	case html.ElementNode:
		if skipElement(n) {
			return
		}
		if isPageText(n) {
			j.flush()
			var b strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				cleanInto(&b, c)
			}
			if text := tidyText(b.String()); text != "" {
				j.pages = append(j.pages, text)
			}
			return
		}
		if isTitleSpan(n) {
			j.cur.WriteString("\n\n**")
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				cleanInto(&j.cur, c)
			}
			j.cur.WriteString("**\n\n")
			return
		}
		if isBlock(n.Data) {
			j.cur.WriteString("\n\n")
		}
		if n.Data == "br" {
			j.cur.WriteString("\n")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		j.walk(c)
	}
	if n.Type == html.ElementNode && isBlock(n.Data) {
		j.cur.WriteString("\n\n")
	}
}

func isPageText(n *html.Node) bool {
	return n.Data == "div" && strings.Contains(attr(n, "class"), "PageText")
}

func cleanInto(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if skipElement(n) {
			return
		}
		if isTitleSpan(n) {
			b.WriteString("\n\n**")
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				cleanInto(b, c)
			}
			b.WriteString("**\n\n")
			return
		}
		if isBlock(n.Data) {
			b.WriteString("\n\n")
		}
		if n.Data == "br" {
			b.WriteString("\n")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		cleanInto(b, c)
	}
	if n.Type == html.ElementNode && isBlock(n.Data) {
		b.WriteString("\n\n")
	}
}

// skipElement drops footnotes, superscripts, and page heads.
func skipElement(n *html.Node) bool {
	if n.Data == "sup" {
		return true
	}
	class := attr(n, "class")
	if n.Data == "div" && strings.Contains(class, "footnote") {
		return true
	}
	if strings.Contains(class, "PageHead") {
		return true
	}
	return false
}

func isTitleSpan(n *html.Node) bool {
	return n.Data == "span" && attr(n, "data-type") == "title"
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "li":
		return true
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// tidyText strips markers and collapses whitespace while preserving
// paragraph breaks.
func tidyText(s string) string {
	s = StripMarkers(s)
	s = spaceRunRe.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = multiBlankRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// terminalPunctuation are the runes and sequences that end a page cleanly.
var terminalPunctuation = []string{".", "؟", "?", "!", "***", "»", "]", `"`}

// JoinPages concatenates consecutive page texts using the spacing rule: a
// paragraph break after terminal punctuation or before a non-letter start,
// a single space otherwise.
func JoinPages(pages []string) string {
	var b strings.Builder
	prev := ""
	for _, p := range pages {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			if endsTerminal(prev) || startsNonLetter(p) {
				b.WriteString("\n\n")
			} else {
				b.WriteString(" ")
			}
		}
		b.WriteString(p)
		prev = p
	}
	return b.String()
}

func endsTerminal(s string) bool {
	s = strings.TrimSpace(s)
	for _, t := range terminalPunctuation {
		if strings.HasSuffix(s, t) {
			return true
		}
	}
	return false
}

func startsNonLetter(s string) bool {
	for _, r := range s {
		isArabic := r >= 0x0621 && r <= 0x064A
		isASCII := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		return !isArabic && !isASCII
	}
	return false
}
