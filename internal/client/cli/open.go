package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"segmentbook-service/internal/client/router"
	"segmentbook-service/internal/client/session"
)

// NewOpenCommand creates the open command.
func NewOpenCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "open <route>",
		Short: "Render a page once",
		Long: `Navigate to a route and print the page.

Examples:
  segmentbook open /books?search=dune
  segmentbook open "/donations?status=donated&page=2"
  segmentbook open /messages/<chat-id>`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx, rootOpts, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer app.Close()

			return openPage(ctx, app, cmd.OutOrStdout(), args[0])
		},
	}
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "watch <route>",
		Short: "Keep a page mounted and re-render it on live updates",
		Long: `Navigate to a route and keep it open. The page is printed again
whenever its data changes, including changes pushed by the backend and
sign-in state changes made by other segmentbook processes.
Stop with Ctrl+C.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx, rootOpts, cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer app.Close()

			if metricsAddr != "" {
				addr, stop, err := app.ServeMetrics(metricsAddr)
				if err != nil {
					return err
				}
				defer stop()
				fmt.Fprintf(cmd.ErrOrStderr(), "metrics on http://%s/metrics\n", addr)
			}

			go app.Cache.Run(ctx)
			return watchPage(ctx, app, cmd.OutOrStdout(), args[0])
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve query cache metrics on this address, e.g. 127.0.0.1:9464")
	return cmd
}

func openPage(ctx context.Context, app *App, w io.Writer, target string) error {
	if target == "" {
		return nil
	}
	p, err := app.Router.Navigate(ctx, target)
	if err != nil {
		return err
	}
	defer p.Close()
	return p.Render(w)
}

func watchPage(ctx context.Context, app *App, w io.Writer, target string) error {
	authChanged := make(chan struct{}, 1)
	unsub := app.Store.Subscribe(func(session.AuthState) {
		select {
		case authChanged <- struct{}{}:
		default:
		}
	})
	defer unsub()

	for {
		p, err := app.Router.Navigate(ctx, target)
		if err != nil {
			return err
		}
		if err := renderFrame(p, w); err != nil {
			p.Close()
			return err
		}

		remount, err := follow(ctx, p, w, authChanged)
		p.Close()
		if err != nil || !remount {
			return err
		}
		app.Logger.Debug("auth state changed, remounting", zap.String("route", target))
	}
}

// follow re-renders p until ctx ends or the auth state changes.
func follow(ctx context.Context, p *router.Page, w io.Writer, authChanged <-chan struct{}) (bool, error) {
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return false, nil
			}
			return false, ctx.Err()
		case <-authChanged:
			return true, nil
		case <-p.Changed():
			if err := renderFrame(p, w); err != nil {
				return false, err
			}
		}
	}
}

func renderFrame(p *router.Page, w io.Writer) error {
	// Changes already pending are covered by this render.
	select {
	case <-p.Changed():
	default:
	}
	fmt.Fprintf(w, "\n--- %s ---\n", p.Path)
	return p.Render(w)
}
