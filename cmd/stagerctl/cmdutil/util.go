// Package cmdutil provides shared utilities for stagerctl commands.
package cmdutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/stager/internal/cli/credentials"
	"github.com/marmos91/stager/internal/cli/output"
	"github.com/marmos91/stager/internal/cli/prompt"
	"github.com/marmos91/stager/pkg/apiclient"
)

// Environment variables consulted when no flag is given.
const (
	EnvServer = "STAGER_SERVER"
	EnvToken  = "STAGER_TOKEN"
)

// Flags stores global flag values accessible by subcommands.
var Flags = &GlobalFlags{}

// GlobalFlags holds the global flag values.
type GlobalFlags struct {
	ServerURL string
	Token     string
	Output    string
	NoColor   bool
	Verbose   bool
}

// ResolveTarget returns the server URL and token to use. Flags win over the
// environment, which wins over the current context. The token may be empty
// when the server runs without authentication.
func ResolveTarget() (serverURL, token string, err error) {
	serverURL = firstNonEmpty(Flags.ServerURL, os.Getenv(EnvServer))
	token = firstNonEmpty(Flags.Token, os.Getenv(EnvToken))
	if serverURL != "" && token != "" {
		return serverURL, token, nil
	}

	store, err := credentials.NewStore()
	if err != nil {
		return "", "", fmt.Errorf("failed to initialize credential store: %w", err)
	}
	ctx, err := store.GetCurrentContext()
	switch {
	case errors.Is(err, credentials.ErrNoCurrentContext):
		if serverURL == "" {
			return "", "", fmt.Errorf("no server configured. Pass --server or run 'stagerctl context set'")
		}
		return serverURL, token, nil
	case err != nil:
		return "", "", err
	}

	if serverURL == "" {
		serverURL = ctx.ServerURL
	}
	if token == "" {
		if ctx.IsExpired() {
			return "", "", fmt.Errorf("token of context '%s' has expired. Issue a new one with 'stager token' and run 'stagerctl context set'",
				store.GetCurrentContextName())
		}
		token = ctx.Token
	}
	if serverURL == "" {
		return "", "", fmt.Errorf("context '%s' has no server URL", store.GetCurrentContextName())
	}
	return serverURL, token, nil
}

// GetClient returns an API client for the resolved server.
func GetClient() (*apiclient.Client, error) {
	serverURL, token, err := ResolveTarget()
	if err != nil {
		return nil, err
	}
	client := apiclient.New(serverURL)
	if token != "" {
		client = client.WithToken(token)
	}
	return client, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// GetOutputFormatParsed returns the parsed output format.
func GetOutputFormatParsed() (output.Format, error) {
	return output.ParseFormat(Flags.Output)
}

// IsColorDisabled returns whether color output is disabled.
func IsColorDisabled() bool {
	return Flags.NoColor
}

// PrintOutput prints data in the specified format (JSON, YAML, or table).
// For table format, it displays emptyMsg if data is empty, otherwise uses the tableRenderer.
func PrintOutput(w io.Writer, data any, isEmpty bool, emptyMsg string, tableRenderer output.TableRenderer) error {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(w, data)
	case output.FormatYAML:
		return output.PrintYAML(w, data)
	default:
		if isEmpty {
			_, _ = fmt.Fprintln(w, emptyMsg)
			return nil
		}
		return output.PrintTable(w, tableRenderer)
	}
}

// PrintResource prints a resource in the specified format.
// For table format, it uses the provided tableRenderer.
func PrintResource(w io.Writer, data any, tableRenderer output.TableRenderer) error {
	return PrintOutput(w, data, false, "", tableRenderer)
}

// PrintSuccess prints a success message if the output format is table.
func PrintSuccess(msg string) {
	format, err := GetOutputFormatParsed()
	if err != nil || format != output.FormatTable {
		return
	}
	output.NewPrinter(os.Stdout, format, !IsColorDisabled()).Success(msg)
}

// PrintWarning prints a warning if the output format is table.
func PrintWarning(msg string) {
	format, err := GetOutputFormatParsed()
	if err != nil || format != output.FormatTable {
		return
	}
	output.NewPrinter(os.Stdout, format, !IsColorDisabled()).Warning(msg)
}

// UpdateResult is the outcome of a bulk state change: the ids that were
// requested and those that actually moved.
type UpdateResult struct {
	Requested []string `json:"requested" yaml:"requested"`
	Updated   []string `json:"updated" yaml:"updated"`
}

// Skipped returns the requested ids that did not move.
func (r UpdateResult) Skipped() []string {
	moved := make(map[string]struct{}, len(r.Updated))
	for _, id := range r.Updated {
		moved[id] = struct{}{}
	}
	var skipped []string
	for _, id := range r.Requested {
		if _, ok := moved[id]; !ok {
			skipped = append(skipped, id)
		}
	}
	return skipped
}

// PrintUpdate reports a bulk state change. Ids that were not eligible are
// listed as a warning in table format.
func PrintUpdate(w io.Writer, noun, verb string, result UpdateResult) error {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return err
	}
	switch format {
	case output.FormatJSON:
		return output.PrintJSON(w, result)
	case output.FormatYAML:
		return output.PrintYAML(w, result)
	}

	PrintSuccess(fmt.Sprintf("%d of %d %s %s", len(result.Updated), len(result.Requested), noun, verb))
	if skipped := result.Skipped(); len(skipped) > 0 {
		PrintWarning("not eligible: " + strings.Join(skipped, ", "))
	}
	return nil
}

// RunDeleteWithConfirmation prompts for confirmation (unless force is true) and runs deleteFn.
func RunDeleteWithConfirmation(resourceType, name string, force bool, deleteFn func() error) error {
	confirmed, err := prompt.ConfirmWithForce(fmt.Sprintf("Delete %s '%s'?", resourceType, name), force)
	if err != nil {
		return HandleAbort(err)
	}
	if !confirmed {
		fmt.Println("Aborted.")
		return nil
	}

	if err := deleteFn(); err != nil {
		return err
	}

	PrintSuccess(fmt.Sprintf("%s '%s' deleted successfully", resourceType, name))
	return nil
}

// ParseCommaSeparatedList parses a comma-separated string into a slice of trimmed strings.
func ParseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	var result []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}

// EmptyOr returns the value if not empty, otherwise returns the fallback.
// Useful for table display where empty fields should show "-".
func EmptyOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// FormatTime renders a timestamp for table output, "-" when unset.
func FormatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

// HandleAbort checks if error is an abort (Ctrl+C) and prints a message.
// Returns nil for abort (user cancelled), otherwise returns the original error.
func HandleAbort(err error) error {
	if prompt.IsAborted(err) {
		fmt.Println("\nAborted.")
		return nil
	}
	return err
}

// WindowFlags are the paging flags shared by list commands.
type WindowFlags struct {
	Limit int
	Newer string
	Older string
	Desc  bool
}

// Register adds the window flags to cmd.
func (f *WindowFlags) Register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "Maximum number of entries (0 = no limit)")
	cmd.Flags().StringVar(&f.Newer, "newer", "", "Only entries submitted after this time (RFC3339 or a duration such as 2h)")
	cmd.Flags().StringVar(&f.Older, "older", "", "Only entries submitted before this time (RFC3339 or a duration such as 2h)")
	cmd.Flags().BoolVar(&f.Desc, "desc", false, "Newest first")
}

// Window converts the flags to an API listing window.
func (f *WindowFlags) Window() (apiclient.Window, error) {
	if f.Limit < 0 {
		return apiclient.Window{}, fmt.Errorf("--limit must not be negative")
	}
	w := apiclient.Window{Limit: f.Limit, Descending: f.Desc}
	var err error
	if w.Newer, err = ParseTimeBound(f.Newer, time.Now()); err != nil {
		return apiclient.Window{}, fmt.Errorf("invalid --newer: %w", err)
	}
	if w.Older, err = ParseTimeBound(f.Older, time.Now()); err != nil {
		return apiclient.Window{}, fmt.Errorf("invalid --older: %w", err)
	}
	return w, nil
}

// ParseTimeBound accepts an RFC3339 timestamp or a duration counted back
// from now. An empty string yields the zero time.
func ParseTimeBound(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither an RFC3339 time nor a duration", s)
	}
	if d < 0 {
		return time.Time{}, fmt.Errorf("duration %q must not be negative", s)
	}
	return now.Add(-d), nil
}
