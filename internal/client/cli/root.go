package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// ErrSignInRequired is returned by commands that need a session when there is none.
var ErrSignInRequired = errors.New("sign in required")

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose     bool
	APIURL      string
	SessionFile string
}

// NewRootCommand creates the root command for the segmentbook CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "segmentbook",
		Short: "SegmentBook - give away the books you have read",
		Long:  "Browse, donate and request books, and chat with donors, from the terminal.",
		// Errors are either printed here or by Report.
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.APIURL != "" && !hasScheme(opts.APIURL) {
				return fmt.Errorf("invalid api url %q: must start with http:// or https://", opts.APIURL)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.APIURL, "api-url", "", "backend base URL (default $SEGMENTBOOK_API_URL)")
	cmd.PersistentFlags().StringVar(&opts.SessionFile, "session-file", "", "where the session is kept (default $SEGMENTBOOK_SESSION_FILE)")

	// Auth
	cmd.AddCommand(NewSignInCommand(opts))
	cmd.AddCommand(NewSignUpCommand(opts))
	cmd.AddCommand(NewSignOutCommand(opts))

	// Pages
	cmd.AddCommand(NewOpenCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	// Writes
	cmd.AddCommand(NewDonateCommand(opts))
	cmd.AddCommand(NewMarkDonatedCommand(opts))
	cmd.AddCommand(NewEditBookCommand(opts))
	cmd.AddCommand(NewRequestBookCommand(opts))
	cmd.AddCommand(NewAcceptCommand(opts))
	cmd.AddCommand(NewRejectCommand(opts))
	cmd.AddCommand(NewReadCommand(opts))
	cmd.AddCommand(NewReadAllCommand(opts))
	cmd.AddCommand(NewSendCommand(opts))
	cmd.AddCommand(NewUpdateProfileCommand(opts))

	return cmd
}

func hasScheme(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

type shownError struct{ error }

func (e shownError) Unwrap() error { return e.error }

// shown marks err as already reported to the user.
func shown(err error) error {
	if err == nil {
		return nil
	}
	return shownError{err}
}

// Report prints err unless a command already showed it.
func Report(w io.Writer, err error) {
	var s shownError
	if err == nil || errors.As(err, &s) {
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}
