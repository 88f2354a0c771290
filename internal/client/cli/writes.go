package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"segmentbook-service/internal/client/backend"
	"segmentbook-service/internal/client/forms"
	"segmentbook-service/internal/client/session"
)

// write is the body of a signed-in write command.
type write func(ctx context.Context, app *App, sess *session.Session) error

// runWrite builds the app, guards the session and reports the outcome.
func runWrite(cmd *cobra.Command, rootOpts *RootOptions, success string, fn write) error {
	ctx := cmd.Context()
	app, err := newApp(ctx, rootOpts, cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}
	defer app.Close()

	sess, err := app.requireSession(ctx)
	if err != nil {
		return err
	}
	return shown(app.Router.Run(ctx, success, func(ctx context.Context) error {
		return fn(ctx, app, sess)
	}))
}

// NewDonateCommand creates the donate command.
func NewDonateCommand(rootOpts *RootOptions) *cobra.Command {
	var form forms.NewBook

	cmd := &cobra.Command{
		Use:          "donate",
		Short:        "List a book for donation",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validate(cmd, form); err != nil {
				return err
			}
			return runWrite(cmd, rootOpts, "Book listed for donation", func(ctx context.Context, app *App, sess *session.Session) error {
				in := backend.CreateBookInput{
					Title:       strings.TrimSpace(form.Title),
					Author:      strings.TrimSpace(form.Author),
					Description: strings.TrimSpace(form.Description),
					Condition:   form.Condition,
					Language:    strings.TrimSpace(form.Language),
				}
				var cover io.Reader
				name := ""
				if form.CoverFile != "" {
					f, err := os.Open(form.CoverFile)
					if err != nil {
						return fmt.Errorf("open cover: %w", err)
					}
					defer f.Close()
					cover, name = f, filepath.Base(form.CoverFile)
				}
				if _, err := app.Mutations.NewBook(ctx, sess.UserID, in, cover, name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Listed %q by %s\n", in.Title, in.Author)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&form.Title, "title", "", "book title")
	cmd.Flags().StringVar(&form.Author, "author", "", "book author")
	cmd.Flags().StringVar(&form.Description, "description", "", "short description")
	cmd.Flags().StringVar(&form.Condition, "condition", "good", "like_new, excellent, good, fair or acceptable")
	cmd.Flags().StringVar(&form.Language, "language", "English", "language the book is written in")
	cmd.Flags().StringVar(&form.CoverFile, "cover", "", "path to a cover image")

	return cmd
}

// NewMarkDonatedCommand creates the mark-donated command.
func NewMarkDonatedCommand(rootOpts *RootOptions) *cobra.Command {
	var form forms.MarkDonated

	cmd := &cobra.Command{
		Use:          "mark-donated <book-id>",
		Short:        "Record that a listed book went to a reader",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			form.RecipientUsername = strings.TrimPrefix(form.RecipientUsername, "@")
			if err := validate(cmd, form); err != nil {
				return err
			}
			return runWrite(cmd, rootOpts, "Book marked as donated", func(ctx context.Context, app *App, sess *session.Session) error {
				return app.Mutations.MarkDonated(ctx, sess.UserID, args[0], form.RecipientUsername)
			})
		},
	}

	cmd.Flags().StringVar(&form.RecipientUsername, "to", "", "username of the reader who received the book")

	return cmd
}

// NewEditBookCommand creates the edit-book command.
func NewEditBookCommand(rootOpts *RootOptions) *cobra.Command {
	var form forms.EditBook

	cmd := &cobra.Command{
		Use:          "edit-book <book-id>",
		Short:        "Change the title, author or description of a listed book",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validate(cmd, form); err != nil {
				return err
			}
			return runWrite(cmd, rootOpts, "Book updated", func(ctx context.Context, app *App, sess *session.Session) error {
				return app.Mutations.EditBook(ctx, sess.UserID, args[0], backend.UpdateBookInput{
					Title:       strings.TrimSpace(form.Title),
					Author:      strings.TrimSpace(form.Author),
					Description: strings.TrimSpace(form.Description),
				})
			})
		},
	}

	cmd.Flags().StringVar(&form.Title, "title", "", "book title")
	cmd.Flags().StringVar(&form.Author, "author", "", "book author")
	cmd.Flags().StringVar(&form.Description, "description", "", "short description")

	return cmd
}

// NewRequestBookCommand creates the request-book command.
func NewRequestBookCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "request-book <book-id>",
		Short:        "Ask the donor of a book for it",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(cmd, rootOpts, "Book requested", func(ctx context.Context, app *App, sess *session.Session) error {
				_, err := app.Mutations.RequestBook(ctx, sess.UserID, args[0])
				return err
			})
		},
	}
}

// NewAcceptCommand creates the accept command.
func NewAcceptCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "accept <request-id>",
		Short:        "Accept a donation request and open a chat with the reader",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(cmd, rootOpts, "Request accepted", func(ctx context.Context, app *App, sess *session.Session) error {
				chatID, err := app.Mutations.AcceptRequest(ctx, sess.UserID, args[0])
				if err != nil {
					return err
				}
				if chatID != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Chat: /messages/%s\n", chatID)
				}
				return nil
			})
		},
	}
}

// NewRejectCommand creates the reject command.
func NewRejectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "reject <request-id>",
		Short:        "Decline a donation request",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(cmd, rootOpts, "Request declined", func(ctx context.Context, app *App, sess *session.Session) error {
				return app.Mutations.RejectRequest(ctx, sess.UserID, args[0])
			})
		},
	}
}

// NewReadCommand creates the read command.
func NewReadCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "read <notification-id>",
		Short:        "Mark one notification as read",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(cmd, rootOpts, "", func(ctx context.Context, app *App, sess *session.Session) error {
				return app.Mutations.MarkNotificationRead(ctx, sess.UserID, args[0])
			})
		},
	}
}

// NewReadAllCommand creates the read-all command.
func NewReadAllCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "read-all",
		Short:        "Mark every notification as read",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(cmd, rootOpts, "All notifications marked as read", func(ctx context.Context, app *App, sess *session.Session) error {
				return app.Mutations.ReadAll(ctx, sess.UserID)
			})
		},
	}
}

// NewSendCommand creates the send command.
func NewSendCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "send <chat-id> <message>...",
		Short:        "Send a chat message",
		Args:         cobra.MinimumNArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			form := forms.Message{Content: strings.Join(args[1:], " ")}
			if err := validate(cmd, form); err != nil {
				return err
			}
			return runWrite(cmd, rootOpts, "", func(ctx context.Context, app *App, sess *session.Session) error {
				msg, err := app.Mutations.SendMessage(ctx, sess.UserID, args[0], strings.TrimSpace(form.Content))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] you: %s\n", msg.CreatedAt.Local().Format("15:04"), msg.Content)
				return nil
			})
		},
	}
}

// NewUpdateProfileCommand creates the update-profile command.
func NewUpdateProfileCommand(rootOpts *RootOptions) *cobra.Command {
	var in backend.UpdateProfileInput
	var avatar string

	cmd := &cobra.Command{
		Use:          "update-profile",
		Short:        "Change your name, country or avatar",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			in.FullName = strings.TrimSpace(in.FullName)
			if in.FullName == "" && in.Country == "" && avatar == "" {
				return fmt.Errorf("nothing to update: pass --full-name, --country or --avatar")
			}
			return runWrite(cmd, rootOpts, "Profile updated", func(ctx context.Context, app *App, sess *session.Session) error {
				if avatar != "" {
					f, err := os.Open(avatar)
					if err != nil {
						return fmt.Errorf("open avatar: %w", err)
					}
					defer f.Close()
					obj, err := app.API.StorageUpload(ctx, backend.BucketAvatars, sess.UserID+filepath.Ext(avatar), f)
					if err != nil {
						return err
					}
					in.AvatarURL = obj.URL
				}
				p, err := app.Mutations.UpdateProfile(ctx, sess.UserID, in)
				if err != nil {
					return err
				}
				app.Auth.ApplyProfile(p)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&in.FullName, "full-name", "", "new display name")
	cmd.Flags().StringVar(&in.Country, "country", "", "new country")
	cmd.Flags().StringVar(&avatar, "avatar", "", "path to an avatar image")

	return cmd
}
