package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/byteowlz/dropcheck/internal/config"
	"github.com/byteowlz/dropcheck/internal/fetcher"
	"github.com/byteowlz/dropcheck/internal/host"
	"github.com/byteowlz/dropcheck/internal/popup"
	"github.com/byteowlz/dropcheck/internal/render"
	"github.com/byteowlz/dropcheck/internal/search"
	"github.com/byteowlz/dropcheck/internal/server"
	"github.com/byteowlz/dropcheck/pkg/dropcheck"
)

// Exit codes for granular error handling
const (
	ExitSuccess      = 0
	ExitNetworkError = 1
	ExitProcessError = 2
	ExitInvalidInput = 3
	ExitConfigError  = 4
	ExitNoResults    = 5 // the check ended on a status instead of results
)

var (
	cfgFile         string
	file            string
	pageURL         string
	javascript      string
	browserCookies  string
	outputFormat    string
	openResult      int
	printLinks      bool
	includeMetadata bool
	apiHost         string
	timeout         int
	verbose         bool
	quiet           bool
	serveAddr       string
)

const version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:   "dropcheck [url]",
	Short: "Compare a product page's price against dropshipping listings",
	Long: `dropcheck reads the product title and price from an Amazon, eBay, Etsy
or generic shop page, looks the title up on a price-comparison API and lists
the matching offers with how much you would save.`,
	Args:          cobra.MaximumNArgs(1),
	Version:       version,
	RunE:          run,
	SilenceErrors: true,
	SilenceUsage:  true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve product checks over HTTP for the browser extension",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(ExitInvalidInput)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Launcher chatter must not mix with results on stdout.
	browser.Stdout = os.Stderr

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/dropcheck/config.toml)")
	rootCmd.PersistentFlags().StringVar(&apiHost, "api-host", "", "price-comparison API base URL")
	rootCmd.PersistentFlags().IntVar(&timeout, "timeout", 30, "API and page timeout in seconds")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress and log output")

	// Input flags
	rootCmd.Flags().StringVarP(&file, "file", "f", "", "read the product page from a saved HTML file (- for stdin)")
	rootCmd.Flags().StringVar(&pageURL, "page-url", "", "URL the saved page was loaded from (sets the site rules)")

	// Page loading flags
	rootCmd.Flags().StringVar(&javascript, "javascript", "never", "render the page in headless Chrome (auto|always|never)")
	rootCmd.Flags().StringVarP(&browserCookies, "browser", "b", "none", "send cookies from this browser (none|auto|chrome|firefox|safari|zen)")

	// Output flags
	rootCmd.Flags().StringVar(&outputFormat, "format", "text", "output format (text|markdown|json)")
	rootCmd.Flags().BoolVar(&includeMetadata, "include-metadata", false, "include page metadata in output")
	rootCmd.Flags().IntVar(&openResult, "open", 0, "open result N in the system browser")
	rootCmd.Flags().BoolVar(&printLinks, "print-link", false, "with --open, print the link instead of launching a browser")

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// initConfig creates an example config on first run, like most XDG tools do.
func initConfig() {
	if cfgFile != "" {
		return
	}
	configPath, err := config.DefaultPath()
	if err != nil {
		return
	}
	if _, err := os.Stat(configPath); !os.IsNotExist(err) {
		return
	}
	if err := config.Default().CreateExampleConfig(configPath); err == nil && !quiet {
		fmt.Fprintf(os.Stderr, "Created config file: %s\n", configPath)
	}
}

// loadConfig reads the config and applies flags that were set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("api-host") {
		cfg.API.Host = apiHost
	}
	if flags.Changed("timeout") {
		cfg.API.Timeout = timeout
		cfg.Fetch.Timeout = timeout
	}
	if flags.Changed("javascript") {
		cfg.Fetch.JavaScript = javascript
	}
	if flags.Changed("browser") {
		cfg.Browser.Cookies = browserCookies
	}
	if flags.Changed("format") {
		cfg.Output.Format = strings.ToLower(outputFormat)
	}
	if flags.Changed("include-metadata") {
		cfg.Output.IncludeMetadata = includeMetadata
	}

	return cfg, cfg.Validate()
}

func newLogger(cfg *config.Config) *slog.Logger {
	logging := cfg.Logging
	switch {
	case quiet:
		logging.Level = "error"
	case verbose:
		logging.Level = "debug"
	}
	return logging.NewLogger(os.Stderr)
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return exitError(ExitConfigError, "failed to load config: %v", err)
	}
	logger := newLogger(cfg)

	opts := dropcheck.CheckOptions{
		URL:             pageURL,
		File:            file,
		Mode:            fetcher.ParseFetchMode(cfg.Fetch.JavaScript),
		IncludeMetadata: cfg.Output.IncludeMetadata,
		Open:            openResult,
	}
	if len(args) == 1 {
		if pageURL != "" {
			return exitError(ExitInvalidInput, "give the page URL either as an argument or with --page-url, not both")
		}
		opts.URL = strings.TrimSpace(args[0])
	}
	if opts.URL == "" && opts.File == "" {
		return exitError(ExitInvalidInput, "no product page given: pass a URL or --file")
	}
	if opts.URL != "" && !isValidURL(opts.URL) {
		return exitError(ExitInvalidInput, "not a web page URL: %s", opts.URL)
	}
	if openResult < 0 {
		return exitError(ExitInvalidInput, "--open takes a result number starting at 1")
	}
	if !quiet {
		opts.Surface = render.ProgressSurface{W: os.Stderr}
	}

	checker := dropcheck.New(cfg, logger)
	if printLinks {
		checker.SetOpener(host.PrintOpener{W: os.Stdout})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := checker.Check(ctx, opts)
	if res != nil {
		if werr := render.Write(os.Stdout, cfg.Output.Format, res.Header, res.Snapshot); werr != nil {
			return exitError(ExitProcessError, "failed to write output: %v", werr)
		}
		logger.Debug("check finished", "state", res.Outcome.State, "duration", res.ProcessingTime.Round(time.Millisecond))
	}
	if err != nil {
		if errors.Is(err, dropcheck.ErrNoPage) || errors.Is(err, popup.ErrNoSuchCard) {
			return exitError(ExitInvalidInput, "%v", err)
		}
		return exitError(ExitProcessError, "%v", err)
	}

	return outcomeExit(res.Outcome)
}

// outcomeExit maps how the check ended onto the exit status.
func outcomeExit(out popup.Outcome) error {
	switch {
	case out.State == popup.StateRendered:
		return nil
	case out.Err != nil:
		var apiErr *search.APIError
		if errors.As(out.Err, &apiErr) || isNetworkError(out.Err) {
			return &exitErr{code: ExitNetworkError}
		}
		return &exitErr{code: ExitProcessError}
	default:
		return &exitErr{code: ExitNoResults}
	}
}

func isNetworkError(err error) bool {
	errStr := err.Error()
	return strings.Contains(errStr, "request to") || strings.Contains(errStr, "dial") || strings.Contains(errStr, "timeout")
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return exitError(ExitConfigError, "failed to load config: %v", err)
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(dropcheck.New(cfg, logger), cfg.Server, logger)
	if err := srv.ListenAndServe(ctx); err != nil {
		return exitError(ExitNetworkError, "server error: %v", err)
	}
	return nil
}

func isValidURL(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string {
	return e.msg
}

func exitError(code int, format string, args ...any) *exitErr {
	msg := fmt.Sprintf(format, args...)
	if msg != "" && !quiet {
		fmt.Fprintf(os.Stderr, "%s\n", msg)
	}
	return &exitErr{code: code, msg: msg}
}
