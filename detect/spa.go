// Package detect scores raw HTML to decide whether client-side
// script execution is likely required to see a page's real content.
package detect

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/use-agent/agentweb/htmlutil"
	"github.com/use-agent/agentweb/model"
)

type signal struct {
	name   string
	weight int
	reason string
	match  func(raw string, visibleRatio float64, htmlBytes int) bool
}

var (
	emptyRootDivRe   = regexp.MustCompile(`<div[^>]*\bid=["']root["'][^>]*>\s*</div>`)
	emptyAppDivRe    = regexp.MustCompile(`<div[^>]*\bid=["']app["'][^>]*>\s*</div>`)
	nextIDRe         = regexp.MustCompile(`<div[^>]*\bid=["']__next["']`)
	appRootTagRe     = regexp.MustCompile(`<app-root[\s>]`)
	reactRootAttrRe  = regexp.MustCompile(`\bdata-reactroot\b`)
	vueAppAttrRe     = regexp.MustCompile(`\bdata-vue-app\b`)
	ngVersionAttrRe  = regexp.MustCompile(`\bng-version=`)
	nuxtTokenRe      = regexp.MustCompile(`__nuxt`)
	nextDataRe       = regexp.MustCompile(`window\.__NEXT_DATA__`)
	initialStateRe   = regexp.MustCompile(`window\.__INITIAL_STATE__`)
	svelteClassRe    = regexp.MustCompile(`\bclass=["'][^"']*\bsvelte-`)
	emberAppClassRe  = regexp.MustCompile(`\bclass=["'][^"']*\bember-application\b`)
	scriptBytesRe    = regexp.MustCompile(`(?is)<script\b[^>]*>(.*?)</script>`)
	loadingClassRe   = regexp.MustCompile(`(?i)\bclass=["'][^"']*\b(loading|skeleton|spinner)\b`)
	loadingAriaRe    = regexp.MustCompile(`(?i)aria-label=["']loading["']`)
	paragraphRe      = regexp.MustCompile(`(?is)<p[^>]*>(.*?)</p>`)
	headingTagRe     = regexp.MustCompile(`(?i)<h[1-6][\s>]`)
	metaGeneratorRe  = regexp.MustCompile(`(?is)<meta[^>]*name=["']generator["'][^>]*content=["']([^"']*)["']`)
	ldJSONRe         = regexp.MustCompile(`(?i)application/ld\+json`)
)

// DetectSPA scores rawHTML and reports whether it is likely a
// client-rendered single-page application.
func DetectSPA(rawHTML string) *model.DetectionReport {
	score := 0
	var reasons []string

	htmlBytes := len(rawHTML)
	ratio := textToHTMLRatio(rawHTML)
	scriptRatio := scriptByteRatio(rawHTML)

	add := func(weight int, fired bool, reason string) {
		if fired {
			score += weight
			reasons = append(reasons, reason)
		}
	}

	add(4, emptyRootDivRe.MatchString(rawHTML), "React root div (empty)")
	add(4, emptyAppDivRe.MatchString(rawHTML), "App root div (empty)")
	add(3, nextIDRe.MatchString(rawHTML), "Next.js __next container")
	add(4, appRootTagRe.MatchString(rawHTML), "Angular app-root")
	add(3, reactRootAttrRe.MatchString(rawHTML), "React data-reactroot attribute")
	add(4, vueAppAttrRe.MatchString(rawHTML), "Vue data-vue-app attribute")
	add(3, ngVersionAttrRe.MatchString(rawHTML), "Angular ng-version attribute")
	add(2, nuxtTokenRe.MatchString(rawHTML), "Nuxt __nuxt token")
	add(3, nextDataRe.MatchString(rawHTML), "Next.js __NEXT_DATA__")
	add(2, initialStateRe.MatchString(rawHTML), "Redux-style __INITIAL_STATE__")
	add(2, svelteClassRe.MatchString(rawHTML), "Svelte class prefix")
	add(3, emberAppClassRe.MatchString(rawHTML), "Ember application class")

	if ratio < 0.05 && htmlBytes > 5*1024 {
		add(4, true, "very low text/HTML ratio on a large document")
	} else {
		add(2, ratio < 0.10 && htmlBytes > 10*1024, "low text/HTML ratio on a large document")
	}

	add(2, scriptRatio > 0.50, "script bytes dominate the document")
	add(2, countLoadingSignals(rawHTML) >= 2, "loading/skeleton/spinner indicators")

	headingCount := len(headingTagRe.FindAllString(rawHTML, -1))
	substantialParagraphs := countSubstantialParagraphs(rawHTML)
	add(3, headingCount == 0 && substantialParagraphs < 3 && htmlBytes > 20*1024,
		"no headings and little substantial text on a large document")

	if m := metaGeneratorRe.FindStringSubmatch(rawHTML); m != nil {
		gen := m[1]
		add(2, strings.Contains(gen, "React") || strings.Contains(gen, "Next.js"), "meta generator names a JS framework")
	}

	ldPresent := ldJSONRe.MatchString(rawHTML)
	if ldPresent && ratio > 0.15 {
		score -= 2
		reasons = append(reasons, "structured data present with healthy text ratio")
	}

	report := &model.DetectionReport{
		IsSPA:   score >= 4,
		Score:   score,
		Reasons: reasons,
	}
	switch {
	case score >= 8:
		report.Confidence = model.ConfidenceHigh
	case score >= 4:
		report.Confidence = model.ConfidenceMedium
	default:
		report.Confidence = model.ConfidenceLow
	}
	return report
}

func countLoadingSignals(raw string) int {
	count := len(loadingClassRe.FindAllString(raw, -1))
	if loadingAriaRe.MatchString(raw) {
		count++
	}
	return count
}

func countSubstantialParagraphs(raw string) int {
	count := 0
	for _, m := range paragraphRe.FindAllStringSubmatch(raw, -1) {
		if len(htmlutil.StripTags(m[1])) >= 20 {
			count++
		}
	}
	return count
}

func scriptByteRatio(raw string) float64 {
	total := 0
	for _, m := range scriptBytesRe.FindAllStringSubmatch(raw, -1) {
		total += len(m[1])
	}
	if len(raw) == 0 {
		return 0
	}
	return float64(total) / float64(len(raw))
}

// textToHTMLRatio computes visible-text bytes over total HTML bytes,
// after removing script/style blocks and all remaining tags, using a
// tokenizer rather than a second pass of regexes so malformed markup
// does not skew the count.
func textToHTMLRatio(raw string) float64 {
	if len(raw) == 0 {
		return 0
	}
	text := visibleText(raw)
	return float64(len(text)) / float64(len(raw))
}

func visibleText(raw string) string {
	tok := html.NewTokenizer(strings.NewReader(raw))
	var sb strings.Builder
	skipDepth := 0
	for {
		tt := tok.Next()
		if tt == html.ErrorToken {
			break
		}
		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name := tok.Token().Data
			if name == "script" || name == "style" {
				if tt == html.StartTagToken {
					skipDepth++
				}
			}
		case html.EndTagToken:
			name := tok.Token().Data
			if (name == "script" || name == "style") && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				sb.WriteString(tok.Token().Data)
			}
		}
	}
	return strings.TrimSpace(sb.String())
}
