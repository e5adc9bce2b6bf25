// Package popup drives one product check: extract the product from the active
// page, look it up in the comparison API, and show the results.
package popup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/byteowlz/dropcheck/internal/extractor"
	"github.com/byteowlz/dropcheck/internal/host"
	"github.com/byteowlz/dropcheck/internal/render"
	"github.com/byteowlz/dropcheck/internal/search"
)

const (
	StatusExtracting = "trying to find the product title and price..."
	StatusNoTitle    = "could not find the title... are you on etsy, amazon or ebay?"
	StatusQuerying   = "Querying dropship API..."
	StatusResults    = "Results:"
)

// State is where a check ended up.
type State string

const (
	StateIdle       State = "idle"
	StateExtracting State = "extracting"
	StateQuerying   State = "querying"
	StateRendered   State = "rendered"
	StateStatus     State = "status"
)

// Outcome describes a finished check.
type Outcome struct {
	State   State
	Product extractor.ProductInfo
	Cards   []render.Card
	// Err is set when the check ended on an error status.
	Err error
}

type Controller struct {
	host      host.Host
	searcher  search.Searcher
	surface   render.Surface
	extractor *extractor.Extractor
	logger    *slog.Logger
}

func NewController(h host.Host, s search.Searcher, surface render.Surface, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{
		host:      h,
		searcher:  s,
		surface:   surface,
		extractor: extractor.New(logger),
		logger:    logger,
	}
}

// Check runs one full check. Every failure ends in a status message on the
// surface; the returned Outcome says which one.
func (c *Controller) Check(ctx context.Context) (out Outcome) {
	out.State = StateIdle
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%v", r)
			c.logger.Error("check panicked", "error", err)
			out = c.fail(out, err)
		}
	}()

	c.surface.SetStatus(StatusExtracting)
	out.State = StateExtracting

	out.Product = c.productInfo(ctx)
	if out.Product.Title == "" {
		c.surface.SetStatus(StatusNoTitle)
		out.State = StateStatus
		return out
	}
	c.logger.Info("product found", "title", out.Product.Title, "has_price", out.Product.HasPrice())

	c.surface.SetStatus(StatusQuerying)
	out.State = StateQuerying

	res, err := c.searcher.Search(ctx, out.Product.Title)
	if err != nil {
		c.logger.Error("search failed", "error", err)
		return c.fail(out, err)
	}

	if len(res.Items) == 0 {
		status := res.Status
		if status == "" {
			status = search.StatusNoResults
		}
		c.surface.SetStatus(status)
		out.State = StateStatus
		return out
	}

	c.surface.SetStatus(StatusResults)
	out.Cards = render.BuildCards(res.Items, out.Product.Price)
	c.surface.Render(out.Cards)
	out.State = StateRendered
	c.logger.Info("results rendered", "count", len(out.Cards))
	return out
}

// productInfo asks the host to run the extractor in the active tab.
// Host failures degrade to an empty product, the same as a page with no title.
func (c *Controller) productInfo(ctx context.Context) extractor.ProductInfo {
	tab, err := c.host.ActiveTab(ctx)
	if err != nil {
		c.logger.Warn("no active tab", "error", err)
		return extractor.ProductInfo{}
	}

	info, err := c.host.Execute(ctx, tab, c.extractor.Extract)
	if err != nil {
		c.logger.Warn("extraction script failed", "url", tab.URL, "error", err)
		return extractor.ProductInfo{}
	}
	return info
}

func (c *Controller) fail(out Outcome, err error) Outcome {
	c.surface.SetStatus("error: " + err.Error())
	out.State = StateStatus
	out.Err = err
	out.Cards = nil
	return out
}

var ErrNoSuchCard = errors.New("no such result")

// Open follows the click-through link of the n-th card (1-based).
func (c *Controller) Open(ctx context.Context, cards []render.Card, n int) error {
	if n < 1 || n > len(cards) {
		return fmt.Errorf("%w: %d (have %d)", ErrNoSuchCard, n, len(cards))
	}
	link := cards[n-1].URL
	c.logger.Debug("opening result", "n", n, "url", link)
	return c.host.OpenTab(ctx, link)
}
