// File: internal/browser/chrome.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/nlm-cli/internal/config"
)

// ChromeDriver implements Driver on top of chromedp. One ChromeDriver owns
// one browser process (or one remote CDP connection) and one tab.
type ChromeDriver struct {
	ctx    context.Context
	cancel context.CancelFunc

	allocCancel context.CancelFunc

	cfg    config.BrowserConfig
	logger *zap.Logger
}

var _ Driver = (*ChromeDriver)(nil)

// NewChromeDriver launches Chrome against the given profile directory, or
// attaches to a remote browser when cfg.CDPURL is set. The returned driver is
// ready for navigation.
func NewChromeDriver(ctx context.Context, cfg config.BrowserConfig, profileDir string, logger *zap.Logger) (*ChromeDriver, error) {
	log := logger.Named("browser")

	var allocCtx context.Context
	var allocCancel context.CancelFunc

	if cfg.CDPURL != "" {
		log.Info("Attaching to remote browser", zap.String("cdp_url", cfg.CDPURL))
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, cfg.CDPURL)
	} else {
		opts, err := execOptions(cfg, profileDir)
		if err != nil {
			return nil, err
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	}

	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		log.Debug(fmt.Sprintf(format, args...))
	}))

	d := &ChromeDriver{
		ctx:         tabCtx,
		cancel:      tabCancel,
		allocCancel: allocCancel,
		cfg:         cfg,
		logger:      log,
	}

	// Force target creation so startup failures surface here, not on the
	// first workflow step.
	startCtx, startCancel := context.WithTimeout(tabCtx, 60*time.Second)
	defer startCancel()
	if err := chromedp.Run(startCtx); err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return d, nil
}

// execOptions translates the browser config into chromedp allocator options.
func execOptions(cfg config.BrowserConfig, profileDir string) ([]chromedp.ExecAllocatorOption, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
	)

	if cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	if profileDir != "" {
		opts = append(opts, chromedp.UserDataDir(profileDir))
	}

	execPath := cfg.ExecPath
	if execPath == "" {
		var err error
		execPath, err = LocateExecutable(cfg.Engine)
		if err != nil {
			return nil, err
		}
	}
	opts = append(opts, chromedp.ExecPath(execPath))

	// Extra flags from config, both boolean and key=value forms.
	for _, arg := range cfg.Args {
		arg = strings.TrimPrefix(arg, "--")
		if key, value, ok := strings.Cut(arg, "="); ok {
			opts = append(opts, chromedp.Flag(key, value))
		} else {
			opts = append(opts, chromedp.Flag(arg, true))
		}
	}
	return opts, nil
}

// runActions executes chromedp actions on the tab, honoring the caller's
// context alongside the tab's lifetime.
func (d *ChromeDriver) runActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := combineContext(d.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// combineContext derives a context from primary that is additionally
// canceled when secondary is done. chromedp actions must run on the tab
// context (it carries the target), so caller deadlines are grafted on.
func combineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)
	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combined.Done():
		}
	}()
	return combined, cancel
}

// Navigate loads the URL and waits for the document body to be ready.
func (d *ChromeDriver) Navigate(ctx context.Context, url string) error {
	d.logger.Debug("Navigating", zap.String("url", url))

	timeout := d.cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := d.runActions(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		if navCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("navigation to %s timed out after %s: %w", url, timeout, err)
		}
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// Candidates returns every element matching the probe. It does not wait for
// elements to appear; polling is the caller's concern.
func (d *ChromeDriver) Candidates(ctx context.Context, probe Probe) ([]*Element, error) {
	var sel string
	var opt chromedp.QueryOption

	switch probe.Kind {
	case ProbeCSS:
		sel, opt = probe.Value, chromedp.ByQueryAll
	case ProbeXPath:
		sel, opt = probe.Value, chromedp.BySearch
	case ProbeText:
		tag, substr, ok := strings.Cut(probe.Value, "|")
		if !ok {
			return nil, fmt.Errorf("malformed text probe %q", probe.Value)
		}
		sel = fmt.Sprintf(`//%s[contains(normalize-space(.), %s)]`, tag, XPathLiteral(substr))
		opt = chromedp.BySearch
	default:
		return nil, fmt.Errorf("unknown probe kind %q", probe.Kind)
	}

	var nodes []*cdp.Node
	lookupCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := d.runActions(lookupCtx, chromedp.Nodes(sel, &nodes, opt, chromedp.AtLeast(0))); err != nil {
		return nil, err
	}

	els := make([]*Element, 0, len(nodes))
	for _, n := range nodes {
		els = append(els, &Element{Node: n, Probe: probe})
	}
	return els, nil
}

// XPathLiteral quotes a string for embedding in an XPath expression.
// Strings containing both quote kinds need concat().
func XPathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	for i, p := range parts {
		parts[i] = `"` + p + `"`
	}
	return "concat(" + strings.Join(parts, `, '"', `) + ")"
}

// IsVisible reports whether the element has a rendered box with non-zero
// area. Detached or display:none nodes have no box model.
func (d *ChromeDriver) IsVisible(ctx context.Context, el *Element) (bool, error) {
	var visible bool
	err := d.runActions(ctx, chromedp.ActionFunc(func(c context.Context) error {
		box, err := dom.GetBoxModel().WithNodeID(el.Node.NodeID).Do(c)
		if err != nil {
			// No box model means not rendered; that is an answer, not a
			// failure.
			return nil
		}
		visible = box.Width > 0 && box.Height > 0
		return nil
	}))
	return visible, err
}

// Click clicks the element. Forced clicks dispatch element.click() through
// the DOM, bypassing hit testing.
func (d *ChromeDriver) Click(ctx context.Context, el *Element, force bool) error {
	clickCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if force {
		return d.runActions(clickCtx, d.callOnNode(el, `function() { this.click(); }`))
	}
	return d.runActions(clickCtx,
		chromedp.ScrollIntoView([]cdp.NodeID{el.Node.NodeID}, chromedp.ByNodeID),
		chromedp.MouseClickNode(el.Node),
	)
}

// Fill focuses the element, clears any existing content and types text.
func (d *ChromeDriver) Fill(ctx context.Context, el *Element, text string) error {
	timeout := 15*time.Second + time.Duration(len(text)/100)*time.Second
	fillCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ids := []cdp.NodeID{el.Node.NodeID}
	return d.runActions(fillCtx,
		chromedp.ScrollIntoView(ids, chromedp.ByNodeID),
		chromedp.Focus(ids, chromedp.ByNodeID),
		d.callOnNode(el, `function() {
			if ('value' in this) { this.value = ''; }
			else { this.textContent = ''; }
		}`),
		chromedp.SendKeys(ids, text, chromedp.ByNodeID),
	)
}

// PressKey dispatches a key press to the focused element.
func (d *ChromeDriver) PressKey(ctx context.Context, key string) error {
	keyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return d.runActions(keyCtx, chromedp.KeyEvent(key))
}

// ReadText returns the element's rendered text.
func (d *ChromeDriver) ReadText(ctx context.Context, el *Element) (string, error) {
	var text string
	readCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	err := d.runActions(readCtx, chromedp.Text([]cdp.NodeID{el.Node.NodeID}, &text, chromedp.ByNodeID))
	return text, err
}

// UploadFiles sets local paths on the file input matching selector.
func (d *ChromeDriver) UploadFiles(ctx context.Context, selector string, paths []string) error {
	upCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return d.runActions(upCtx, chromedp.SetUploadFiles(selector, paths, chromedp.ByQuery))
}

// Screenshot captures the viewport as PNG.
func (d *ChromeDriver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	shotCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := d.runActions(shotCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

// AllowDownloads directs browser downloads into dir.
func (d *ChromeDriver) AllowDownloads(ctx context.Context, dir string) error {
	return d.runActions(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(dir).
			Do(ctx)
	}))
}

// CurrentURL returns the page's current location.
func (d *ChromeDriver) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	err := d.runActions(ctx, chromedp.Location(&loc))
	return loc, err
}

// Evaluate runs a JavaScript expression in the page.
func (d *ChromeDriver) Evaluate(ctx context.Context, script string, res interface{}) error {
	return d.runActions(ctx, chromedp.Evaluate(script, res))
}

// Sleep pauses for d, returning early if the context is canceled.
func (d *ChromeDriver) Sleep(ctx context.Context, dur time.Duration) error {
	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Close tears down the tab and browser.
func (d *ChromeDriver) Close() error {
	d.cancel()
	d.allocCancel()
	return nil
}

// callOnNode builds an action that resolves the node to a JS object and
// invokes fnDecl with the node as `this`.
func (d *ChromeDriver) callOnNode(el *Element, fnDecl string) chromedp.Action {
	return chromedp.ActionFunc(func(c context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(el.Node.NodeID).Do(c)
		if err != nil {
			return fmt.Errorf("failed to resolve node: %w", err)
		}
		_, exp, err := cdpruntime.CallFunctionOn(fnDecl).WithObjectID(obj.ObjectID).Do(c)
		if err != nil {
			return err
		}
		if exp != nil {
			return exp
		}
		return nil
	})
}
