// Package pagedom extracts a model.PageRecord from raw or rendered
// HTML using a goquery DOM, in place of the hand-rolled regex scan
// the lite path's primitives would otherwise require. The same
// extractor backs both the lite and browser renderers; they differ
// only in the ExtractOptions passed in.
package pagedom

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/use-agent/agentweb/apperr"
	"github.com/use-agent/agentweb/model"
)

// ExtractOptions captures the rule differences between the lite and
// browser renderers (spec §4.D: "same shape, rule differences").
type ExtractOptions struct {
	// DedupLinks suppresses links that share an absolutized href.
	// True for the lite path; false for the browser path, where live
	// DOM ordering carries meaning.
	DedupLinks bool
	// LinkCap bounds the number of emitted links. 0 means unbounded.
	LinkCap int
	// TextCap bounds textContent length. 5000 for lite, 50000 for browser.
	TextCap int
	// MetaOriginalCase preserves the case of "name=" meta keys
	// instead of lowercasing them. False for lite, true for browser.
	MetaOriginalCase bool
}

const (
	headingTextCap = 200
	linkTextCap    = 120
	imageCap       = 50
	tableCap       = 10
	selectOptionCap = 20
)

var mainContentClassRe = regexp.MustCompile(`(?i)content|main|article`)

// blockTags are the elements whose text is split into its own
// paragraph rather than run together with its siblings'. Matches
// chunk.go's blank-line paragraph split (spec §4.E clause 3).
var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"li": true, "blockquote": true, "pre": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"tr": true, "figure": true, "figcaption": true,
}

// Extract parses rawHTML into a PageRecord. finalURL is the URL used
// to absolutize relative hrefs/srcs and recorded as PageRecord.URL.
func Extract(rawHTML, finalURL string, opts ExtractOptions) (*model.PageRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, apperr.New(apperr.Parse, "parsing HTML document", err)
	}

	base, err := url.Parse(finalURL)
	if err != nil {
		return nil, apperr.New(apperr.Parse, "parsing final URL", err)
	}

	rec := &model.PageRecord{
		URL:  finalURL,
		Meta: make(map[string]string),
	}

	rec.Title = strings.TrimSpace(doc.Find("title").First().Text())
	extractMeta(doc, rec, opts)
	extractHeadings(doc, rec)
	extractLinks(doc, rec, base, opts)
	extractForms(doc, rec)
	extractImages(doc, rec, base)
	extractTables(doc, rec)
	extractMainText(doc, rec, opts)

	rec.ComputeStats()
	return rec, nil
}

func extractMeta(doc *goquery.Document, rec *model.PageRecord, opts ExtractOptions) {
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content, hasContent := s.Attr("content")
		if !hasContent {
			return
		}
		if name, ok := s.Attr("name"); ok {
			key := name
			if !opts.MetaOriginalCase {
				key = strings.ToLower(key)
			}
			rec.Meta[key] = content
			return
		}
		if prop, ok := s.Attr("property"); ok {
			rec.Meta[prop] = content
		}
	})
}

func extractHeadings(doc *goquery.Document, rec *model.PageRecord) {
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		level := int(s.Get(0).Data[1] - '0')
		rec.Headings = append(rec.Headings, model.Heading{
			Level: level,
			Text:  truncate(text, headingTextCap),
		})
	})
}

func extractLinks(doc *goquery.Document, rec *model.PageRecord, base *url.URL, opts ExtractOptions) {
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if opts.LinkCap > 0 && len(rec.Links) >= opts.LinkCap {
			return
		}
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "#") {
			return
		}
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		abs := absolutize(base, href)
		if opts.DedupLinks {
			if seen[abs] {
				return
			}
			seen[abs] = true
		}
		rec.Links = append(rec.Links, model.Link{
			Text: truncate(text, linkTextCap),
			Href: abs,
		})
	})
}

func extractForms(doc *goquery.Document, rec *model.PageRecord) {
	doc.Find("form").Each(func(_ int, form *goquery.Selection) {
		action, _ := form.Attr("action")
		method := strings.ToUpper(strings.TrimSpace(attrOr(form, "method", "GET")))
		if method == "" {
			method = "GET"
		}
		f := model.Form{Action: action, Method: method}

		form.Find("input, textarea, select").Each(func(_ int, el *goquery.Selection) {
			tag := goquery.NodeName(el)
			name, _ := el.Attr("name")
			switch tag {
			case "input":
				typ := attrOr(el, "type", "text")
				if strings.EqualFold(typ, "hidden") {
					return
				}
				f.Fields = append(f.Fields, model.FormField{
					Kind:        model.FieldInput,
					Type:        typ,
					Name:        name,
					Placeholder: attrOr(el, "placeholder", ""),
					Required:    hasAttr(el, "required"),
				})
			case "textarea":
				f.Fields = append(f.Fields, model.FormField{
					Kind:        model.FieldTextarea,
					Name:        name,
					Placeholder: attrOr(el, "placeholder", ""),
					Required:    hasAttr(el, "required"),
				})
			case "select":
				var options []string
				el.Find("option").EachWithBreak(func(i int, opt *goquery.Selection) bool {
					if i >= selectOptionCap {
						return false
					}
					options = append(options, strings.TrimSpace(opt.Text()))
					return true
				})
				f.Fields = append(f.Fields, model.FormField{
					Kind:    model.FieldSelect,
					Name:    name,
					Options: options,
				})
			}
		})
		rec.Forms = append(rec.Forms, f)
	})
}

func extractImages(doc *goquery.Document, rec *model.PageRecord, base *url.URL) {
	doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(rec.Images) >= imageCap {
			return false
		}
		src, ok := s.Attr("src")
		if !ok || strings.TrimSpace(src) == "" {
			return true
		}
		rec.Images = append(rec.Images, model.Image{
			Src:    absolutize(base, src),
			Alt:    attrOr(s, "alt", ""),
			Width:  attrOr(s, "width", ""),
			Height: attrOr(s, "height", ""),
		})
		return true
	})
}

func extractTables(doc *goquery.Document, rec *model.PageRecord) {
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		if len(rec.Tables) >= tableCap {
			return false
		}
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var row model.TableRow
			tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
				row = append(row, strings.TrimSpace(cell.Text()))
			})
			if len(row) > 0 {
				rec.Tables = append(rec.Tables, row)
			}
		})
		return true
	})
}

func extractMainText(doc *goquery.Document, rec *model.PageRecord, opts ExtractOptions) {
	var target *goquery.Selection
	if main := doc.Find("main").First(); main.Length() > 0 {
		target = main
	} else if article := doc.Find("article").First(); article.Length() > 0 {
		target = article
	} else {
		target = findMainByClassOrID(doc)
	}
	if target == nil || target.Length() == 0 {
		target = doc.Find("body").First()
	}

	clone := target.Clone()
	clone.Find("script, style, nav, footer, header").Remove()
	text := strings.Join(blockText(clone), "\n\n")
	rec.TextContent = truncate(text, opts.TextCap)
}

// blockText walks s's children, collecting the inline text run
// together under each block-level boundary as its own entry so
// callers can rejoin them with blank lines instead of collapsing a
// whole subtree into a single run of words.
func blockText(s *goquery.Selection) []string {
	var blocks []string
	var inline strings.Builder

	flush := func() {
		text := strings.Join(strings.Fields(inline.String()), " ")
		if text != "" {
			blocks = append(blocks, text)
		}
		inline.Reset()
	}

	s.Contents().Each(func(_ int, child *goquery.Selection) {
		node := child.Get(0)
		if node == nil {
			return
		}
		switch node.Type {
		case html.TextNode:
			inline.WriteString(node.Data)
			inline.WriteString(" ")
		case html.ElementNode:
			if blockTags[node.Data] {
				flush()
				blocks = append(blocks, blockText(child)...)
			} else {
				inline.WriteString(strings.Join(strings.Fields(child.Text()), " "))
				inline.WriteString(" ")
			}
		}
	})
	flush()
	return blocks
}

func findMainByClassOrID(doc *goquery.Document) *goquery.Selection {
	var found *goquery.Selection
	doc.Find("div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		if mainContentClassRe.MatchString(class) || mainContentClassRe.MatchString(id) {
			found = s
			return false
		}
		return true
	})
	return found
}

func attrOr(s *goquery.Selection, name, fallback string) string {
	if v, ok := s.Attr(name); ok {
		return v
	}
	return fallback
}

func hasAttr(s *goquery.Selection, name string) bool {
	_, ok := s.Attr(name)
	return ok
}

func absolutize(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}
