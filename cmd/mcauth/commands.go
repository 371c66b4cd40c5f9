package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/aussiebroadwan/mcauth/internal/auth/app"
	"github.com/aussiebroadwan/mcauth/pkg/authsdk"
)

func newCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "mcauth",
		Usage:   "Sign in to the game with a Microsoft account and keep the profile fresh",
		Version: app.BuildVersion,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "profile",
				Aliases: []string{"p"},
				Usage:   "Path of the stored profile (file store only)",
				Sources: cli.EnvVars("MCAUTH_PROFILE_PATH"),
			},
		},
		// No subcommand means "make sure there is a usable profile"
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runEnsure(ctx, cmd, out)
		},
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Reuse, refresh or create the stored profile as needed",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Always run the interactive sign-in",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Bool("force") {
						return runLogin(ctx, cmd, out)
					}
					return runEnsure(ctx, cmd, out)
				},
			},
			{
				Name:  "refresh",
				Usage: "Refresh the stored game token even if it has not expired",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withApp(ctx, cmd, out, func(ctx context.Context, a *app.Application) error {
						p, err := a.Profiles.Refresh(ctx)
						if err != nil {
							return &authFailure{err}
						}
						_, _ = fmt.Fprintf(out, "Refreshed %s, token valid until %s.\n", p.Name, expiry(p.GameToken))
						return nil
					})
				},
			},
			{
				Name:  "show",
				Usage: "Print the stored profile without contacting any server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withApp(ctx, cmd, out, func(ctx context.Context, a *app.Application) error {
						p, err := a.Profiles.Show(ctx)
						if err != nil {
							return err
						}
						_, _ = fmt.Fprintf(out, "Name:    %s\nID:      %s\nExpires: %s\n", p.Name, p.ID, expiry(p.GameToken))
						return nil
					})
				},
			},
			{
				Name:  "logout",
				Usage: "Delete the stored profile",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withApp(ctx, cmd, out, func(ctx context.Context, a *app.Application) error {
						if err := a.Profiles.Logout(ctx); err != nil {
							return err
						}
						_, _ = fmt.Fprintln(out, "Logged out.")
						return nil
					})
				},
			},
		},
	}
}

func runEnsure(ctx context.Context, cmd *cli.Command, out io.Writer) error {
	return withApp(ctx, cmd, out, func(ctx context.Context, a *app.Application) error {
		if _, _, err := a.Profiles.Ensure(ctx); err != nil {
			return &authFailure{err}
		}
		_, _ = fmt.Fprintln(out, "Successfully authenticated.")
		return nil
	})
}

func runLogin(ctx context.Context, cmd *cli.Command, out io.Writer) error {
	return withApp(ctx, cmd, out, func(ctx context.Context, a *app.Application) error {
		if _, err := a.Profiles.Login(ctx); err != nil {
			return &authFailure{err}
		}
		_, _ = fmt.Fprintln(out, "Successfully authenticated.")
		return nil
	})
}

// authFailure marks errors from the commands that talk to the authorities.
type authFailure struct{ err error }

func (e *authFailure) Error() string { return e.err.Error() }
func (e *authFailure) Unwrap() error { return e.err }

// errorMessage is the line printed to stderr when a command fails.
func errorMessage(err error) string {
	var af *authFailure
	if errors.As(err, &af) {
		return fmt.Sprintf("Authentication Failed: %v.", af.err)
	}
	return fmt.Sprintf("mcauth: %v", err)
}

// withApp loads the config, applies the --profile flag and runs fn with a
// wired application.
func withApp(ctx context.Context, cmd *cli.Command, out io.Writer, fn func(context.Context, *app.Application) error) error {
	cfg := app.LoadConfig()
	if path := cmd.String("profile"); path != "" {
		cfg.ProfilePath = path
	}

	a, err := app.New(cfg, promptTo(out))
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	return fn(a.Context(ctx), a)
}

// promptTo prints the sign-in instructions as plain text.
func promptTo(out io.Writer) authsdk.PromptFunc {
	return func(ctx context.Context, message string) error {
		_, err := fmt.Fprintln(out, message)
		return err
	}
}

func expiry(t authsdk.Token) string {
	if !t.HasExpiry() {
		return "unknown"
	}
	return t.NotAfter.Local().Format(time.RFC1123)
}
