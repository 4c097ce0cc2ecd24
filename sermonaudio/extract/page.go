package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const DefaultTitle = "Untitled"

var (
	siteSuffixPattern = regexp.MustCompile(`(?i)\s*\|\s*SermonAudio.*$`)
	ownerTitlePattern = regexp.MustCompile(`\|\s*(.+?)\s*\|\s*SermonAudio`)
	titleClassPattern = regexp.MustCompile(`(?i)title`)
	seriesHrefPattern = regexp.MustCompile(`/series/\d+`)
)

// A Strategy reads one candidate value from a parsed page. It reports false
// when the page has nothing usable for it.
type Strategy func(doc *goquery.Document) (string, bool)

// TitleStrategies are tried in order until one succeeds.
var TitleStrategies = []Strategy{
	PrimaryHeading,
	OGTitle,
	DocumentTitle,
	FirstHeading,
	TitleClass,
}

// OwnerNameStrategies resolve a broadcaster, speaker or series display name.
var OwnerNameStrategies = []Strategy{
	OwnerHeading,
	OwnerTitle,
	DocumentTitle,
}

// First runs strategies in order and returns the first value found.
func First(doc *goquery.Document, strategies []Strategy) (string, bool) {
	for _, s := range strategies {
		if v, ok := s(doc); ok {
			return v, true
		}
	}

	return "", false
}

// Title is the sermon title of a sermon page, DefaultTitle when none is found.
func Title(doc *goquery.Document) string {
	if v, ok := First(doc, TitleStrategies); ok {
		return v
	}

	return DefaultTitle
}

func PrimaryHeading(doc *goquery.Document) (string, bool) {
	return nonEmpty(doc.Find(`h1.title, .sermon-title, [itemprop="headline"]`).First().Text())
}

func OGTitle(doc *goquery.Document) (string, bool) {
	v, _ := doc.Find(`meta[property="og:title"]`).First().Attr("content")
	return nonEmpty(v)
}

// DocumentTitle is the <title> text without its site suffix.
func DocumentTitle(doc *goquery.Document) (string, bool) {
	return nonEmpty(StripSiteSuffix(doc.Find("title").First().Text()))
}

func FirstHeading(doc *goquery.Document) (string, bool) {
	return nonEmpty(doc.Find("h1").First().Text())
}

func TitleClass(doc *goquery.Document) (string, bool) {
	var out string
	doc.Find("[class]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		if !titleClassPattern.MatchString(class) {
			return true
		}
		if v, ok := nonEmpty(s.Text()); ok {
			out = v
			return false
		}

		return true
	})

	return nonEmpty(out)
}

// OwnerHeading is the first heading with the hashtag-like prefix some owner
// pages carry removed.
func OwnerHeading(doc *goquery.Document) (string, bool) {
	v, ok := FirstHeading(doc)
	if !ok {
		return "", false
	}

	return nonEmpty(strings.TrimPrefix(v, "#"))
}

// OwnerTitle reads the middle part of titles shaped "Sermons | <name> | SermonAudio".
func OwnerTitle(doc *goquery.Document) (string, bool) {
	m := ownerTitlePattern.FindStringSubmatch(doc.Find("title").First().Text())
	if nil == m {
		return "", false
	}

	return nonEmpty(m[1])
}

// Series is the title of the series a sermon page links to, nil when the
// page links to none.
func Series(doc *goquery.Document) *string {
	var out *string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if !seriesHrefPattern.MatchString(href) {
			return true
		}
		if v, ok := nonEmpty(s.Text()); ok {
			out = &v
		}

		return false
	})

	return out
}

func StripSiteSuffix(s string) string {
	return strings.TrimSpace(siteSuffixPattern.ReplaceAllString(s, ""))
}

func nonEmpty(s string) (string, bool) {
	s = strings.Join(strings.Fields(s), " ")
	return s, s != ""
}
