// File: internal/browser/driver.go

// Package browser drives a real Chrome instance over CDP. It exposes a small
// page surface (navigate, locate, click, type, read) that the workflow layer
// composes; everything UI-specific lives in the caller's probe chains.
package browser

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/cdp"
)

// Element is a handle to a located DOM node. Handles are only valid for the
// page state they were resolved against; re-resolve after navigation or
// significant DOM churn.
type Element struct {
	Node *cdp.Node
	// Probe records which probe located the node, for logs.
	Probe Probe
}

// Driver is the full page surface used by the workflow layer. It extends
// Source with the mutating operations.
type Driver interface {
	Source

	// Navigate loads the URL and waits for the document to become ready.
	Navigate(ctx context.Context, url string) error
	// Click clicks the element. With force set, the click is dispatched
	// through the DOM directly instead of synthesized mouse events, which
	// reaches elements that overlays obscure.
	Click(ctx context.Context, el *Element, force bool) error
	// Fill focuses the element, clears it and types text into it.
	Fill(ctx context.Context, el *Element, text string) error
	// PressKey dispatches a key (use the kb package constants) to the
	// focused element.
	PressKey(ctx context.Context, key string) error
	// ReadText returns the element's rendered text content.
	ReadText(ctx context.Context, el *Element) (string, error)
	// UploadFiles sets local file paths on a file input matching selector.
	UploadFiles(ctx context.Context, selector string, paths []string) error
	// Screenshot captures the viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	// AllowDownloads directs browser downloads into dir.
	AllowDownloads(ctx context.Context, dir string) error
	// CurrentURL returns the page's current location.
	CurrentURL(ctx context.Context) (string, error)
	// Evaluate runs a JavaScript expression, optionally unmarshaling the
	// result into res.
	Evaluate(ctx context.Context, script string, res interface{}) error
	// Sleep pauses, respecting context cancellation.
	Sleep(ctx context.Context, d time.Duration) error
	// Close tears down the tab and the browser process.
	Close() error
}
