// File: internal/browser/probe.go
package browser

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/nlm-cli/api/schemas"
)

// ProbeKind selects the lookup strategy for a probe.
type ProbeKind string

const (
	// ProbeCSS matches elements with a CSS selector.
	ProbeCSS ProbeKind = "css"
	// ProbeXPath matches elements with an XPath expression.
	ProbeXPath ProbeKind = "xpath"
	// ProbeText matches elements of a tag whose rendered text contains the
	// given substring. Value is "tag|substring".
	ProbeText ProbeKind = "text"
)

// Probe is a single strategy for locating one logical UI element.
type Probe struct {
	Kind  ProbeKind
	Value string
	// Desc explains what this probe is looking for, for logs and errors.
	Desc string
}

// Chain is an ordered list of probes for one logical element. Probes are
// tried in order and the first probe with a visible match wins; the order
// encodes preference, most specific first.
type Chain struct {
	// Name identifies the logical element (e.g. "chat_input").
	Name   string
	Probes []Probe
}

// CSS builds a CSS probe.
func CSS(selector, desc string) Probe {
	return Probe{Kind: ProbeCSS, Value: selector, Desc: desc}
}

// XPath builds an XPath probe.
func XPath(expr, desc string) Probe {
	return Probe{Kind: ProbeXPath, Value: expr, Desc: desc}
}

// Text builds a text-content probe for the given tag.
func Text(tag, substring, desc string) Probe {
	return Probe{Kind: ProbeText, Value: tag + "|" + substring, Desc: desc}
}

// Source is the minimal page surface the evaluator needs. *ChromeDriver
// implements it; tests supply fakes.
type Source interface {
	// Candidates returns every element matching the probe, visible or not.
	Candidates(ctx context.Context, probe Probe) ([]*Element, error)
	// IsVisible reports whether the element currently has a rendered box.
	IsVisible(ctx context.Context, el *Element) (bool, error)
}

// ResolveChain evaluates the chain against the page and returns the first
// visible candidate of the first probe that yields one. Lookup errors on
// individual probes are logged and treated as no-match, so a chain degrades
// gracefully across page variants. Returns schemas.ErrProbeNotFound when the
// whole chain is exhausted.
func ResolveChain(ctx context.Context, src Source, chain Chain, logger *zap.Logger) (*Element, error) {
	for i, probe := range chain.Probes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		candidates, err := src.Candidates(ctx, probe)
		if err != nil {
			logger.Debug("Probe lookup failed",
				zap.String("chain", chain.Name),
				zap.Int("probe", i),
				zap.String("desc", probe.Desc),
				zap.Error(err))
			continue
		}

		for _, el := range candidates {
			visible, err := src.IsVisible(ctx, el)
			if err != nil {
				continue
			}
			if visible {
				logger.Debug("Probe resolved",
					zap.String("chain", chain.Name),
					zap.Int("probe", i),
					zap.String("desc", probe.Desc))
				return el, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s (%d probes tried)", schemas.ErrProbeNotFound, chain.Name, len(chain.Probes))
}

// ResolveAny resolves the first chain that produces a visible element,
// returning the element and the winning chain's name. Used where a page can
// be in one of several modes.
func ResolveAny(ctx context.Context, src Source, chains []Chain, logger *zap.Logger) (*Element, string, error) {
	for _, chain := range chains {
		el, err := ResolveChain(ctx, src, chain, logger)
		if err == nil {
			return el, chain.Name, nil
		}
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
	}
	return nil, "", fmt.Errorf("%w: none of %d chains matched", schemas.ErrProbeNotFound, len(chains))
}
