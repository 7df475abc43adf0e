// Package detail turns a bill's detail page into plain legal text.
//
// Fetch and extraction failures are values, not errors: a Page or Content
// carries a Failure kind, and callers switch on it instead of comparing
// sentinel strings.
package detail

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ContentSelector addresses the bill summary container on likms detail pages.
const ContentSelector = "div#summaryContentDiv"

type Failure int

const (
	OK Failure = iota
	NoLink
	FetchFailed
	FetchError
	ContentMissing
)

// String returns the text the legacy tables used for each failure.
func (f Failure) String() string {
	switch f {
	case OK:
		return "ok"
	case NoLink:
		return "상세 링크 없음"
	case FetchFailed:
		return "크롤링 실패"
	case FetchError:
		return "크롤링 오류"
	case ContentMissing:
		return "내용 없음"
	default:
		return "unknown"
	}
}

// Label is a stable ASCII name for metrics and logs.
func (f Failure) Label() string {
	switch f {
	case OK:
		return "ok"
	case NoLink:
		return "no_link"
	case FetchFailed:
		return "fetch_failed"
	case FetchError:
		return "fetch_error"
	case ContentMissing:
		return "content_missing"
	default:
		return "unknown"
	}
}

// Page is the raw result of fetching a detail URL.
type Page struct {
	HTML    []byte
	Failure Failure
}

func FailedPage(f Failure) Page {
	return Page{Failure: f}
}

// Content is extracted plain text, or the reason there is none.
type Content struct {
	Text    string
	Failure Failure
}

// Usable reports whether the content is worth sending to the LLM.
func (c Content) Usable() bool {
	return c.Failure == OK && strings.TrimSpace(c.Text) != ""
}

func (c Content) String() string {
	if c.Failure != OK {
		return c.Failure.String()
	}
	return c.Text
}

var whitespace = regexp.MustCompile(`\s+`)

// Extract parses html and returns the whitespace-collapsed text of the
// content container. It does no I/O.
func Extract(html []byte) Content {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return Content{Failure: ContentMissing}
	}

	sel := doc.Find(ContentSelector).First()
	if sel.Length() == 0 {
		return Content{Failure: ContentMissing}
	}

	text := whitespace.ReplaceAllString(sel.Text(), " ")
	return Content{Text: strings.TrimSpace(text)}
}

// FromPage extracts a fetched page, passing fetch failures through.
func FromPage(p Page) Content {
	if p.Failure != OK {
		return Content{Failure: p.Failure}
	}
	return Extract(p.HTML)
}
