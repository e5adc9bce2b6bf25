package host

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/pkg/browser"
)

// Opener opens a result link for the user.
type Opener interface {
	Open(ctx context.Context, rawURL string) error
}

// SystemOpener hands the link to the desktop's default browser.
// The launcher runs to completion and is not tied to ctx, so cancelling the
// check afterwards does not kill it.
type SystemOpener struct{}

func (SystemOpener) Open(ctx context.Context, rawURL string) error {
	if err := validateLink(rawURL); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := browser.OpenURL(rawURL); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

// PrintOpener writes the link instead of launching anything.
type PrintOpener struct {
	W io.Writer
}

func (p PrintOpener) Open(ctx context.Context, rawURL string) error {
	if err := validateLink(rawURL); err != nil {
		return err
	}
	_, err := fmt.Fprintln(p.W, rawURL)
	return err
}

func validateLink(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid link %q: %w", rawURL, err)
	}
	if s := strings.ToLower(u.Scheme); (s != "http" && s != "https") || u.Host == "" {
		return fmt.Errorf("refusing to open non-web link %q", rawURL)
	}
	return nil
}
