// Package extract pulls readable article text out of an HTML page.
//
// Strategies are tried in order and the first one yielding more than
// MinContentChars characters wins: the <article> element, a JSON-LD
// articleBody, common main-content containers, common news/blog containers,
// the page's paragraphs, and finally the cleaned body text.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	MinContentChars   = 100
	minParagraphChars = 20
)

var ErrNoContent = errors.New("no substantial text content found")

// Result is the extracted article text and the strategy that produced it.
type Result struct {
	Text   string
	Method string
}

var (
	mainSelectors = []string{
		"main article",
		`main [role="main"]`,
		`[role="main"]`,
		"main",
		".article-content",
		".post-content",
		".entry-content",
		".content-body",
		".article-body",
		".story-body",
		".post-body",
		".content",
		"#content",
		".main-content",
	}

	newsSelectors = []string{
		".article-text",
		".article-content-body",
		".post-text",
		".entry-text",
		".story-content",
		".news-content",
		".blog-content",
		".content-wrapper",
		".text-content",
	}

	boilerplateParagraph = regexp.MustCompile(`(?i)^(subscribe|follow|share|comment|advertisement)`)
	navigationLine       = regexp.MustCompile(`(?m)^.*?(Home|Menu|Navigation).*?\n`)
	footerLine           = regexp.MustCompile(`(?m)^.*?(Footer|Copyright).*$`)
	horizontalSpace      = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	blankLines           = regexp.MustCompile(`\n{3,}`)
)

// FromHTML parses r and returns the article text.
func FromHTML(r io.Reader) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Result{}, fmt.Errorf("create document from reader: %w", err)
	}
	return FromDocument(doc)
}

// FromDocument runs the strategies against an already parsed document. The
// document is modified: scripts and styles are removed.
func FromDocument(doc *goquery.Document) (Result, error) {
	articleBodies := jsonLDArticleBodies(doc)

	doc.Find("script, style, noscript, template").Remove()
	doc.Find("br").Each(func(_ int, br *goquery.Selection) {
		br.ReplaceWithHtml("\n")
	})
	doc.Find("p, div, li, h1, h2, h3, h4, h5, h6, section, article, header, footer, blockquote, tr").AfterHtml("\n")

	if text := innerText(doc.Find("article").First()); long(text) {
		return Result{Text: text, Method: "article tag"}, nil
	}

	for _, body := range articleBodies {
		if text := cleanText(body); long(text) {
			return Result{Text: text, Method: "JSON-LD structured data"}, nil
		}
	}

	for _, selector := range mainSelectors {
		if text := innerText(doc.Find(selector).First()); long(text) {
			return Result{Text: text, Method: "selector: " + selector}, nil
		}
	}

	for _, selector := range newsSelectors {
		if text := innerText(doc.Find(selector).First()); long(text) {
			return Result{Text: text, Method: "news selector: " + selector}, nil
		}
	}

	if text := paragraphText(doc); long(text) {
		return Result{Text: text, Method: "paragraph extraction"}, nil
	}

	body := innerText(doc.Find("body"))
	if long(body) {
		cleaned := navigationLine.ReplaceAllString(body, "")
		cleaned = strings.TrimSpace(footerLine.ReplaceAllString(cleaned, ""))
		if long(cleaned) {
			return Result{Text: cleaned, Method: "body text (cleaned)"}, nil
		}
	}

	return Result{Method: "none"}, ErrNoContent
}

func paragraphText(doc *goquery.Document) string {
	var parts []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := innerText(p)
		if utf8.RuneCountInString(text) <= minParagraphChars {
			return
		}
		if boilerplateParagraph.MatchString(text) {
			return
		}
		parts = append(parts, text)
	})
	return strings.Join(parts, "\n\n")
}

// jsonLDArticleBodies collects articleBody values from JSON-LD scripts,
// including objects nested in arrays and @graph lists.
func jsonLDArticleBodies(doc *goquery.Document) []string {
	var bodies []string
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return
		}
		bodies = append(bodies, collectArticleBodies(data)...)
	})
	return bodies
}

func collectArticleBodies(data any) []string {
	switch v := data.(type) {
	case []any:
		var out []string
		for _, item := range v {
			out = append(out, collectArticleBodies(item)...)
		}
		return out
	case map[string]any:
		var out []string
		if body, ok := v["articleBody"].(string); ok {
			out = append(out, body)
		}
		if graph, ok := v["@graph"]; ok {
			out = append(out, collectArticleBodies(graph)...)
		}
		return out
	default:
		return nil
	}
}

func innerText(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	return cleanText(s.Text())
}

// cleanText collapses horizontal whitespace, trims every line and limits
// blank runs to one empty line.
func cleanText(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
	}
	joined := strings.Join(lines, "\n")
	return strings.TrimSpace(blankLines.ReplaceAllString(joined, "\n\n"))
}

func long(text string) bool {
	return utf8.RuneCountInString(text) > MinContentChars
}
