// Package http provides the HTTP client used to look up and fetch patent documents.
//
// The Client in this package handles:
//   - User-Agent headers
//   - Optional request timeouts (none by default)
//   - File downloads streamed to disk with progress tracking
//   - Typed errors for non-2xx responses
//
// # Basic Usage
//
//	client := http.NewClient(http.DefaultOptions())
//
//	// Fetch HTML page
//	page, err := client.GetString(ctx, "https://patents.google.com/patent/US9842120")
//
//	// Download file
//	err = client.DownloadFile(ctx, pdfURL, "/docs/US9842120.pdf", nil)
//
// # Status Errors
//
// Responses outside 2xx come back as *StatusError:
//
//	var se *http.StatusError
//	if errors.As(err, &se) && se.Code == 404 {
//	    // not found
//	}
package http
