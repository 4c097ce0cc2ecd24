package httputil

import (
	"fmt"
	"net/http"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// ParseHTML decodes the response body to UTF-8 according to its declared or
// sniffed charset and parses it.
func ParseHTML(resp *http.Response) (*goquery.Document, error) {
	r, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if nil != err {
		return nil, fmt.Errorf("failed to detect page charset: %v", err)
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if nil != err {
		return nil, fmt.Errorf("failed to parse page: %v", err)
	}

	return doc, nil
}
