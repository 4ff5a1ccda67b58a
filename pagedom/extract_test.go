package pagedom

import (
	"strings"
	"testing"
)

func liteOpts() ExtractOptions {
	return ExtractOptions{DedupLinks: true, TextCap: 5000, MetaOriginalCase: false}
}

func browserOpts() ExtractOptions {
	return ExtractOptions{DedupLinks: false, LinkCap: 100, TextCap: 50000, MetaOriginalCase: true}
}

func TestExtractTitleAndMeta(t *testing.T) {
	html := `<html><head><title> Hello World </title>
	<meta name="Description" content="a page"/>
	<meta property="og:title" content="OG Title"/>
	</head><body></body></html>`

	rec, err := Extract(html, "https://example.com/", liteOpts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Title != "Hello World" {
		t.Errorf("title = %q, want %q", rec.Title, "Hello World")
	}
	if rec.Meta["description"] != "a page" {
		t.Errorf("meta[description] = %q", rec.Meta["description"])
	}
	if rec.Meta["og:title"] != "OG Title" {
		t.Errorf("meta[og:title] = %q", rec.Meta["og:title"])
	}
}

func TestExtractHeadings(t *testing.T) {
	html := `<html><body><h1>Title</h1><h2>Sub</h2><h3></h3></body></html>`
	rec, err := Extract(html, "https://example.com/", liteOpts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.Headings) != 2 {
		t.Fatalf("headings = %v, want 2 entries", rec.Headings)
	}
	if rec.Headings[0].Level != 1 || rec.Headings[0].Text != "Title" {
		t.Errorf("headings[0] = %+v", rec.Headings[0])
	}
	if rec.Headings[1].Level != 2 || rec.Headings[1].Text != "Sub" {
		t.Errorf("headings[1] = %+v", rec.Headings[1])
	}
	if rec.Stats.HeadingCount != len(rec.Headings) {
		t.Errorf("stats.headingCount mismatch")
	}
}

func TestExtractLinksDedupAndExclusions(t *testing.T) {
	html := `<html><body>
	<a href="/a">A</a>
	<a href="/a">A again</a>
	<a href="javascript:void(0)">js</a>
	<a href="#frag">frag</a>
	<a href=""></a>
	</body></html>`
	rec, err := Extract(html, "https://example.com/base/", liteOpts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.Links) != 1 {
		t.Fatalf("links = %v, want 1", rec.Links)
	}
	if rec.Links[0].Href != "https://example.com/a" {
		t.Errorf("links[0].href = %q", rec.Links[0].Href)
	}
}

func TestExtractLinksBrowserCapNoDedup(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < 150; i++ {
		sb.WriteString(`<a href="/a">A</a>`)
	}
	sb.WriteString("</body></html>")
	rec, err := Extract(sb.String(), "https://example.com/", browserOpts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.Links) != 100 {
		t.Fatalf("links = %d, want 100", len(rec.Links))
	}
}

func TestExtractFormsFieldKinds(t *testing.T) {
	html := `<form action="/submit" method="post">
	<input type="text" name="q" placeholder="search" required>
	<input type="hidden" name="csrf" value="x">
	<textarea name="msg"></textarea>
	<select name="color"><option>Red</option><option>Blue</option></select>
	</form>`
	rec, err := Extract(html, "https://example.com/", liteOpts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.Forms) != 1 {
		t.Fatalf("forms = %v", rec.Forms)
	}
	f := rec.Forms[0]
	if f.Method != "POST" || f.Action != "/submit" {
		t.Errorf("form = %+v", f)
	}
	if len(f.Fields) != 3 {
		t.Fatalf("fields = %+v, want 3 (hidden excluded)", f.Fields)
	}
	if f.Fields[0].Kind != "input" || !f.Fields[0].Required {
		t.Errorf("fields[0] = %+v", f.Fields[0])
	}
	if f.Fields[2].Kind != "select" || len(f.Fields[2].Options) != 2 {
		t.Errorf("fields[2] = %+v", f.Fields[2])
	}
}

func TestExtractMainContentFallbackChain(t *testing.T) {
	html := `<html><body>
	<nav>skip me</nav>
	<div class="site-content"><p>Real content here.</p></div>
	<footer>skip footer</footer>
	</body></html>`
	rec, err := Extract(html, "https://example.com/", liteOpts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.TextContent, "Real content here.") {
		t.Errorf("textContent = %q", rec.TextContent)
	}
	if strings.Contains(rec.TextContent, "skip") {
		t.Errorf("textContent should not include nav/footer text: %q", rec.TextContent)
	}
}

func TestExtractMainTextPreservesParagraphBoundaries(t *testing.T) {
	html := `<html><body><article>
	<p>First paragraph.</p>
	<p>Second paragraph.</p>
	</article></body></html>`
	rec, err := Extract(html, "https://example.com/", liteOpts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.TextContent, "First paragraph.\n\nSecond paragraph.") {
		t.Errorf("textContent = %q, want paragraphs separated by a blank line", rec.TextContent)
	}
}

func TestExtractTextContentCap(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<html><body><article>")
	for i := 0; i < 2000; i++ {
		sb.WriteString("word ")
	}
	sb.WriteString("</article></body></html>")
	rec, err := Extract(sb.String(), "https://example.com/", liteOpts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.TextContent) > 5000 {
		t.Errorf("textContent length = %d, want <= 5000", len(rec.TextContent))
	}
}

func TestExtractStatsInvariant(t *testing.T) {
	html := `<html><body><h1>H</h1><a href="/a">A</a><img src="/i.png"><table><tr><td>1</td></tr></table></body></html>`
	rec, err := Extract(html, "https://example.com/", liteOpts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Stats.HeadingCount != len(rec.Headings) ||
		rec.Stats.LinkCount != len(rec.Links) ||
		rec.Stats.ImageCount != len(rec.Images) ||
		rec.Stats.TableCount != len(rec.Tables) ||
		rec.Stats.TextLength != len(rec.TextContent) {
		t.Errorf("stats %+v does not match array lengths", rec.Stats)
	}
}
