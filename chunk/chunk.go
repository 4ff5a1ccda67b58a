// Package chunk decomposes a PageRecord into scored, typed chunks
// suitable for inclusion in a language-model prompt, and supports
// keyword-weighted retrieval against a query.
package chunk

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/use-agent/agentweb/model"
)

// Options configures chunkPage.
type Options struct {
	MaxChunkSize int
	MinScore     int
	IncludeNav   bool
}

// DefaultOptions returns the spec's default chunking options.
func DefaultOptions() Options {
	return Options{MaxChunkSize: 800, MinScore: -1, IncludeNav: false}
}

func (o Options) withDefaults() Options {
	if o.MaxChunkSize <= 0 {
		o.MaxChunkSize = 800
	}
	return o
}

var (
	blankLineRe     = regexp.MustCompile(`\n\s*\n`)
	urlRe           = regexp.MustCompile(`https?://\S+`)
	sentenceBreakRe = regexp.MustCompile(`[.!?]\s+[A-Z]`)
	codeMarkerRe    = regexp.MustCompile("```|`|\\bconst\\b|\\bfunction\\b|\\bimport\\b")
	navWordRe       = regexp.MustCompile(`(?i)^(home|menu|search|login|sign in|sign up|subscribe|newsletter|cookie|privacy|terms)\b`)
	copyrightRe     = regexp.MustCompile(`(?i)copyright|all rights reserved|powered by`)
	howToRe         = regexp.MustCompile(`(?i)how to|step|guide|tutorial|example|note:|warning:|important:`)
	calloutRe       = regexp.MustCompile(`(?i)^(note|warning|tip|important|caution|info):`)
	skipLinkPrefix  = regexp.MustCompile(`(?i)^(home|menu|back|next|prev|more|see all)`)
)

// ChunkPage implements chunkPage(page, opts) -> ordered sequence of Chunk.
func ChunkPage(page *model.PageRecord, opts Options) []model.Chunk {
	opts = opts.withDefaults()
	var chunks []model.Chunk
	id := 0
	next := func() int { v := id; id++; return v }

	chunks = append(chunks, summaryChunk(page, next()))

	if len(page.Headings) > 0 {
		chunks = append(chunks, tocChunk(page, next()))
	}

	chunks = append(chunks, paragraphChunks(page, opts, &id)...)

	for _, form := range page.Forms {
		chunks = append(chunks, formChunk(form, next()))
	}

	if hasNotableLinks(page) {
		chunks = append(chunks, *linksChunk(page, next()))
	}

	filtered := chunks[:0]
	for _, c := range chunks {
		if c.Score >= opts.MinScore {
			filtered = append(filtered, c)
		}
	}
	chunks = filtered

	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Score > chunks[j].Score })
	return chunks
}

func summaryChunk(page *model.PageRecord, id int) model.Chunk {
	desc := page.Meta["description"]
	if desc == "" {
		desc = page.Meta["og:description"]
	}
	text := fmt.Sprintf(
		"%s\n%s\n%s\nheadings=%d links=%d forms=%d images=%d tables=%d textLength=%d",
		page.Title, desc, page.URL,
		page.Stats.HeadingCount, page.Stats.LinkCount, page.Stats.FormCount,
		page.Stats.ImageCount, page.Stats.TableCount, page.Stats.TextLength,
	)
	return model.Chunk{ID: id, Type: model.ChunkSummary, Score: 10, Text: text}
}

func tocChunk(page *model.PageRecord, id int) model.Chunk {
	var sb strings.Builder
	for _, h := range page.Headings {
		sb.WriteString(strings.Repeat("  ", h.Level-1))
		sb.WriteString(h.Text)
		sb.WriteString("\n")
	}
	return model.Chunk{ID: id, Type: model.ChunkTOC, Score: 5, Text: strings.TrimRight(sb.String(), "\n")}
}

func paragraphChunks(page *model.PageRecord, opts Options, idPtr *int) []model.Chunk {
	var out []model.Chunk
	var currentSection *string

	paragraphs := blankLineRe.Split(page.TextContent, -1)
	for _, raw := range paragraphs {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}

		if heading := matchingHeading(text, page.Headings); heading != "" {
			h := heading
			currentSection = &h
			continue
		}

		density := linkDensity(text)
		if !opts.IncludeNav && density > 0.5 {
			continue
		}

		underHeading := currentSection != nil
		score := paragraphScore(text, density, underHeading)
		typ := detectType(text, "")

		if len(text) > opts.MaxChunkSize {
			out = append(out, splitOversizedParagraph(text, typ, score, currentSection, opts.MaxChunkSize, idPtr)...)
			continue
		}

		ch := model.Chunk{
			ID:      nextID(idPtr),
			Type:    typ,
			Section: currentSection,
			Text:    text,
			Score:   score,
		}
		out = append(out, ch)
	}
	return out
}

func nextID(idPtr *int) int {
	v := *idPtr
	*idPtr++
	return v
}

func matchingHeading(text string, headings []model.Heading) string {
	lower := strings.ToLower(text)
	for _, h := range headings {
		hl := strings.ToLower(h.Text)
		if lower == hl || strings.HasPrefix(hl, lower) {
			return h.Text
		}
	}
	return ""
}

func linkDensity(text string) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}
	urls := len(urlRe.FindAllString(text, -1))
	return float64(urls) / float64(len(words))
}

// paragraphScore implements the scoring rules in spec §4.E.
func paragraphScore(text string, density float64, underHeading bool) int {
	score := 0
	length := len(text)

	switch {
	case length >= 50 && length <= 500:
		score += 2
	case length > 500 && length <= 2000:
		score += 1
	case length < 20:
		score -= 2
	}

	if strings.ContainsAny(text, "0123456789") {
		score++
	}
	if codeMarkerRe.MatchString(text) {
		score += 2
	}
	if navWordRe.MatchString(text) {
		score -= 3
	}
	if copyrightRe.MatchString(text) {
		score -= 2
	}
	if density > 0.7 {
		score -= 2
	}
	if underHeading {
		score++
	}
	if howToRe.MatchString(text) {
		score += 2
	}
	return score
}

func detectType(text, tag string) model.ChunkType {
	switch tag {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return model.ChunkHeading
	case "li":
		return model.ChunkListItem
	case "td", "th":
		return model.ChunkTableCell
	}

	trimmed := strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") ||
		strings.HasPrefix(trimmed, "$ ") || strings.HasPrefix(trimmed, "> "):
		return model.ChunkCode
	case strings.HasPrefix(trimmed, "•") || strings.HasPrefix(trimmed, "-") || strings.HasPrefix(trimmed, "*"):
		return model.ChunkListItem
	case calloutRe.MatchString(trimmed):
		return model.ChunkCallout
	case isLinkText(trimmed):
		return model.ChunkLink
	case len(trimmed) < 50 && !strings.ContainsAny(trimmed, ".!?"):
		return model.ChunkLabel
	default:
		return model.ChunkParagraph
	}
}

func isLinkText(text string) bool {
	if !urlRe.MatchString(text) {
		return false
	}
	return len(strings.Fields(text)) < 5
}

func splitOversizedParagraph(text string, typ model.ChunkType, score int, section *string, maxSize int, idPtr *int) []model.Chunk {
	sentences := splitSentences(text)
	var groups []string
	var current strings.Builder
	for _, s := range sentences {
		if len(strings.TrimSpace(s)) < 10 {
			continue
		}
		if current.Len() > 0 && current.Len()+len(s) > maxSize {
			groups = append(groups, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(s)
	}
	if current.Len() > 0 {
		groups = append(groups, current.String())
	}

	out := make([]model.Chunk, 0, len(groups))
	for i, g := range groups {
		out = append(out, model.Chunk{
			ID:      nextID(idPtr),
			Type:    typ,
			Section: section,
			Text:    strings.TrimSpace(g),
			Score:   score,
			Meta:    map[string]interface{}{"partial": true, "part": i},
		})
	}
	return out
}

func splitSentences(text string) []string {
	var sentences []string
	last := 0
	for _, loc := range sentenceBreakRe.FindAllStringIndex(text, -1) {
		breakAt := loc[0] + 1 // keep the punctuation, split before the following whitespace+capital
		sentences = append(sentences, text[last:breakAt])
		last = breakAt
	}
	if last < len(text) {
		sentences = append(sentences, text[last:])
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}
	return sentences
}

func formChunk(form model.Form, id int) model.Chunk {
	var sb strings.Builder
	fmt.Fprintf(&sb, "method=%s action=%s\n", form.Method, form.Action)
	for _, f := range form.Fields {
		fmt.Fprintf(&sb, "%s: %s\n", f.Kind, f.Name)
	}
	return model.Chunk{ID: id, Type: model.ChunkForm, Score: 7, Text: strings.TrimRight(sb.String(), "\n")}
}

func notableLinks(page *model.PageRecord) []model.Link {
	var notable []model.Link
	for _, l := range page.Links {
		n := len(l.Text)
		if n < 4 || n > 79 {
			continue
		}
		if skipLinkPrefix.MatchString(l.Text) {
			continue
		}
		notable = append(notable, l)
		if len(notable) >= 20 {
			break
		}
	}
	return notable
}

func hasNotableLinks(page *model.PageRecord) bool {
	return len(notableLinks(page)) > 0
}

func linksChunk(page *model.PageRecord, id int) *model.Chunk {
	notable := notableLinks(page)
	if len(notable) == 0 {
		return nil
	}

	var sb strings.Builder
	for _, l := range notable {
		fmt.Fprintf(&sb, "%s: %s\n", l.Text, l.Href)
	}
	return &model.Chunk{ID: id, Type: model.ChunkLinks, Score: 3, Text: strings.TrimRight(sb.String(), "\n")}
}
