// Package patents resolves patent identifiers to downloadable document URLs.
//
// The only source supported is Google Patents. Each patent has a page at
// https://patents.google.com/patent/<compact form> whose head carries a
// citation_pdf_url meta tag pointing at the scanned PDF.
//
// # Resolving
//
//	r := patents.NewResolver(client, patents.DefaultBaseURL)
//	url, err := r.Resolve(ctx, id)
//
// When the site changes its markup, ExtractPDFURL is the place to update.
package patents
