package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"segmentbook-service/internal/client/forms"
	"segmentbook-service/internal/client/session"
)

// NewSignInCommand creates the signin command.
func NewSignInCommand(rootOpts *RootOptions) *cobra.Command {
	var form forms.SignIn
	var next string

	cmd := &cobra.Command{
		Use:          "signin",
		Short:        "Sign in with email and password",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if form.Password == "" {
				form.Password = readSecret(cmd.InOrStdin())
			}
			if err := validate(cmd, form); err != nil {
				return err
			}

			ctx := cmd.Context()
			app, err := newApp(ctx, rootOpts, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer app.Close()

			var sess *session.Session
			err = app.Router.Run(ctx, "Signed in successfully", func(ctx context.Context) error {
				var err error
				sess, err = app.Store.SignIn(ctx, form.Email, form.Password)
				return err
			})
			if err != nil {
				return shown(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Welcome back, %s\n", displayName(sess))
			return openPage(ctx, app, cmd.OutOrStdout(), next)
		},
	}

	cmd.Flags().StringVar(&form.Email, "email", "", "account email")
	cmd.Flags().StringVar(&form.Password, "password", "", "account password (read from stdin when omitted)")
	cmd.Flags().StringVar(&next, "next", "/dashboard", "page to open after signing in")

	return cmd
}

// NewSignUpCommand creates the signup command.
func NewSignUpCommand(rootOpts *RootOptions) *cobra.Command {
	var form forms.SignUp

	cmd := &cobra.Command{
		Use:          "signup",
		Short:        "Create an account",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if form.Password == "" {
				form.Password = readSecret(cmd.InOrStdin())
			}
			if err := validate(cmd, form); err != nil {
				return err
			}

			ctx := cmd.Context()
			app, err := newApp(ctx, rootOpts, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer app.Close()

			profile := session.ProfileFields{
				FullName: strings.TrimSpace(form.FullName),
				Username: form.Username,
				Country:  form.Country,
			}
			var sess *session.Session
			err = app.Router.Run(ctx, "Account created", func(ctx context.Context) error {
				var err error
				sess, err = app.Store.SignUp(ctx, form.Email, form.Password, profile)
				return err
			})
			if err != nil {
				return shown(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s\n", displayName(sess))
			return nil
		},
	}

	cmd.Flags().StringVar(&form.FullName, "full-name", "", "your name as shown to other readers")
	cmd.Flags().StringVar(&form.Username, "username", "", "unique handle (a-z, 0-9, _)")
	cmd.Flags().StringVar(&form.Email, "email", "", "account email")
	cmd.Flags().StringVar(&form.Password, "password", "", "password (read from stdin when omitted)")
	cmd.Flags().StringVar(&form.Country, "country", "", "country you live in")

	return cmd
}

// NewSignOutCommand creates the signout command.
func NewSignOutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "signout",
		Short:        "Sign out and forget the stored session",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx, rootOpts, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer app.Close()

			// The local session is cleared even when the backend call fails.
			return shown(app.Router.Run(ctx, "Signed out", app.Store.SignOut))
		},
	}
}

// validate checks a form before any network call and prints field messages.
func validate(cmd *cobra.Command, form any) error {
	err := forms.Validate(form)
	var fe forms.FieldErrors
	if !errors.As(err, &fe) {
		return err
	}

	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", f, fe[f])
	}
	return shown(fe)
}

func readSecret(r io.Reader) string {
	line, _ := bufio.NewReader(r).ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}

func displayName(s *session.Session) string {
	if s == nil {
		return ""
	}
	if s.FullName != "" {
		return s.FullName
	}
	return s.Email
}
