package patents

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/net/html"

	pdlhttp "github.com/handiism/patent-downloader/internal/http"
	"github.com/handiism/patent-downloader/internal/model"
)

// DefaultBaseURL is the Google Patents site root.
const DefaultBaseURL = "https://patents.google.com"

// pdfMetaName is the <meta name> carrying the document link.
const pdfMetaName = "citation_pdf_url"

// PageFetcher fetches an HTML page. *http.Client from this module satisfies it.
type PageFetcher interface {
	GetString(ctx context.Context, url string) (string, error)
}

// Resolver finds the PDF link of a patent on its Google Patents page.
//
// Google Patents embeds the scan link in the page head:
//
//	<meta name="citation_pdf_url" content="https://patentimages.storage.googleapis.com/.../US9842120.pdf">
//
// Resolve returns "" with a nil error when the page does not exist or has no
// such tag. Network failures are returned as errors.
//
// Example usage:
//
//	r := NewResolver(client, DefaultBaseURL)
//	url, err := r.Resolve(ctx, id)
//	if err == nil && url == "" {
//	    // no document for this patent
//	}
type Resolver struct {
	pages   PageFetcher
	baseURL string
}

// NewResolver creates a Resolver. An empty baseURL means DefaultBaseURL.
func NewResolver(pages PageFetcher, baseURL string) *Resolver {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Resolver{
		pages:   pages,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// PageURL returns the page looked up for id.
func (r *Resolver) PageURL(id model.Identifier) string {
	return r.baseURL + "/patent/" + id.Compact()
}

// Resolve returns the document URL for id, or "" if there is none.
func (r *Resolver) Resolve(ctx context.Context, id model.Identifier) (string, error) {
	page, err := r.pages.GetString(ctx, r.PageURL(id))
	if err != nil {
		var se *pdlhttp.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return "", nil
		}
		return "", fmt.Errorf("fetch page for %s: %w", id.Compact(), err)
	}

	return ExtractPDFURL(page)
}

// ExtractPDFURL returns the content of the first citation_pdf_url meta tag.
//
// Only the first tag is used if a page carries several.
func ExtractPDFURL(page string) (string, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}

	return findMeta(doc), nil
}

func findMeta(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "meta" && attr(n, "name") == pdfMetaName {
		return strings.TrimSpace(attr(n, "content"))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findMeta(c); found != "" {
			return found
		}
	}
	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
