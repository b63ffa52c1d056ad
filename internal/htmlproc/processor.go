// Package htmlproc converts the extractor's raw HTML pages into cleaned
// plain text, a per-part page index, and the book's metadata document.
package htmlproc

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/aosman25/islam-ai/internal/extractor"
	"github.com/aosman25/islam-ai/internal/types"
)

// pageNumRe matches the page-number span text after digit normalization.
var pageNumRe = regexp.MustCompile(`ص:\s*(\d+)`)

// BookIdentity carries the catalogue identity the processor stamps onto the
// metadata document.
type BookIdentity struct {
	BookID          int64
	BookName        string
	Author          string
	Category        string
	TableOfContents []types.TocEntry
}

// Process walks the ordered HTML pages and builds the metadata document.
// Returns an error when no content pages are found.
func Process(files []extractor.File, identity BookIdentity) (*types.BookMetadata, error) {
	doc := &types.BookMetadata{
		BookID:          identity.BookID,
		BookName:        identity.BookName,
		Author:          identity.Author,
		Category:        identity.Category,
		Parts:           []string{},
		Pages:           make(map[string][]types.Page),
		TableOfContents: identity.TableOfContents,
	}

	seenParts := make(map[string]bool)
	biblioDone := false
	pageID := 0

	for _, file := range files {
		root, err := htmlquery.Parse(strings.NewReader(string(file.Content)))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file.Name, err)
		}

		pageNodes := htmlquery.Find(root, `//div[contains(@class,"PageText")]`)
		if len(pageNodes) == 0 {
			// Whole file is a candidate non-content page (preface, colophon).
			if !biblioDone {
				biblioDone = harvestBiblio(doc, CleanNode(root))
			}
			continue
		}

		for _, node := range pageNodes {
			partTitle, pageNum, ok := pageHead(node)
			if !ok {
				if !biblioDone {
					biblioDone = harvestBiblio(doc, CleanNode(node))
				}
				continue
			}

			pageID++
			page := types.Page{
				PageID:      pageID,
				PageNum:     pageNum,
				PartTitle:   partTitle,
				CleanedText: CleanNode(node),
				DisplayElem: renderNode(node),
			}

			if !seenParts[partTitle] {
				seenParts[partTitle] = true
				doc.Parts = append(doc.Parts, partTitle)
			}
			doc.Pages[partTitle] = append(doc.Pages[partTitle], page)
		}
	}

	if pageID == 0 {
		return nil, fmt.Errorf("book %d: HTML contains no content pages", identity.BookID)
	}
	return doc, nil
}

// pageHead extracts the part title and printed page number from a page's
// head element. A page without a parseable page number is not content.
func pageHead(node *html.Node) (partTitle string, pageNum int, ok bool) {
	head := htmlquery.FindOne(node, `.//div[contains(@class,"PageHead")]`)
	if head == nil {
		return "", 0, false
	}

	numSpan := htmlquery.FindOne(head, `.//span[contains(@class,"PageNumber")]`)
	if numSpan == nil {
		return "", 0, false
	}
	m := pageNumRe.FindStringSubmatch(NormalizeDigits(htmlquery.InnerText(numSpan)))
	if m == nil {
		return "", 0, false
	}
	pageNum, err := strconv.Atoi(m[1])
	if err != nil {
		return "", 0, false
	}

	if partSpan := htmlquery.FindOne(head, `.//span[contains(@class,"PartName")]`); partSpan != nil {
		partTitle = strings.TrimSpace(htmlquery.InnerText(partSpan))
	}
	return partTitle, pageNum, true
}

// harvestBiblio applies recognized bibliographic fields from a non-content
// page. Returns true once any field was found: only the first qualifying
// page contributes.
func harvestBiblio(doc *types.BookMetadata, text string) bool {
	fields := parseBiblio(text)
	if len(fields) == 0 {
		return false
	}
	for key, value := range fields {
		switch key {
		case "editor":
			doc.Editor = value
		case "edition":
			doc.Edition = value
		case "publisher":
			doc.Publisher = value
		case "num_volumes":
			doc.NumVolumes = value
		case "num_pages":
			doc.NumPages = value
		case "shamela_pub_date":
			doc.ShamelaPubDate = value
		case "author_full":
			doc.AuthorFull = value
		}
	}
	return true
}

func renderNode(n *html.Node) string {
	var b strings.Builder
	if err := html.Render(&b, n); err != nil {
		return ""
	}
	return b.String()
}

// PartHTML joins a part's raw page HTML with newlines, the form the chunker
// consumes when it looks for ToC markers.
func PartHTML(pages []types.Page) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = p.DisplayElem
	}
	return strings.Join(parts, "\n")
}
