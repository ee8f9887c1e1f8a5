package main

import (
	"errors"
	"fmt"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/profile"
	"github.com/spf13/cobra"
)

func rootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "AlgoLearn account and session client",
		Long: `algolearn signs in to AlgoLearn and keeps the session token in the
configured token store, so later commands run as the same user.

Configuration is read from ALGOLEARN_* environment variables; the flags
below override the most common ones.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.apiURL, "api-url", "", "AlgoLearn API base URL (overrides ALGOLEARN_API_BASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.storeDir, "store-dir", "", "Directory for the file token store")
	cmd.PersistentFlags().BoolVar(&opts.events, "events", false, "Write session events to stderr as JSON lines")

	cmd.AddCommand(
		loginCmd(opts),
		registerCmd(opts),
		logoutCmd(opts),
		statusCmd(opts),
		whoamiCmd(opts),
		checkEmailCmd(opts),
		deleteAccountCmd(opts),
		versionCmd(),
	)
	return cmd
}

func loginCmd(opts *globalOptions) *cobra.Command {
	var secret string
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Sign in with email and password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
			password, err := p.value(secret, "Password")
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), opts, cmd.ErrOrStderr(), func(a *app) error {
				if err := a.manager.SignIn(cmd.Context(), args[0], password); err != nil {
					return err
				}
				greet(cmd, a)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&secret, "password", "", "Password (read from stdin when empty)")
	return cmd
}

func registerCmd(opts *globalOptions) *cobra.Command {
	var req goSession.SignUpRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
			var err error
			if req.Username, err = p.value(req.Username, "Username"); err != nil {
				return err
			}
			if req.Email, err = p.value(req.Email, "Email"); err != nil {
				return err
			}
			if req.Password == "" {
				if req.Password, err = p.ask("Password"); err != nil {
					return err
				}
				if req.ConfirmPassword, err = p.ask("Confirm password"); err != nil {
					return err
				}
			}

			return withApp(cmd.Context(), opts, cmd.ErrOrStderr(), func(a *app) error {
				if err := a.manager.SignUp(cmd.Context(), req); err != nil {
					var se *goSession.Error
					if errors.As(err, &se) && se.Field != "" {
						return fmt.Errorf("%s: %s", se.Field, se.Message)
					}
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Account created.")
				if a.manager.State() == goSession.StateAuthenticated {
					greet(cmd, a)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Sign in with: %s login %s\n", appName, req.Email)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Username, "username", "", "Username")
	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&req.Password, "password", "", "Password (read from stdin when empty)")
	return cmd
}

func logoutCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, cmd.ErrOrStderr(), func(a *app) error {
				a.manager.SignOut(cmd.Context())
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
				return nil
			})
		},
	}
}

func statusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a session is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, cmd.ErrOrStderr(), func(a *app) error {
				snap := a.manager.Snapshot()
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "state: %s\n", snap.State)
				if !snap.IsAuthenticated {
					return nil
				}
				claims, err := jwt.Inspect(snap.Token)
				if err != nil {
					// opaque token
					return nil
				}
				if claims.Username != "" {
					fmt.Fprintf(out, "user: %s\n", claims.Username)
				}
				if exp, ok := claims.Expiry(); ok {
					fmt.Fprintf(out, "expires: %s\n", exp.Local().Format(time.RFC1123))
					if claims.Expired(time.Now(), 0) {
						fmt.Fprintln(out, "warning: token has expired; the next request will sign you out")
					}
				}
				return nil
			})
		},
	}
}

func whoamiCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Fetch the signed-in user's profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, cmd.ErrOrStderr(), func(a *app) error {
				u, err := a.profiles.Get(cmd.Context())
				if errors.Is(err, profile.ErrNoSession) {
					return errors.New("not signed in")
				}
				if err != nil {
					if a.manager.State() == goSession.StateUnauthenticated {
						return errors.New("session expired; sign in again")
					}
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s (%s)\n", u.DisplayName(), u.Email)
				fmt.Fprintf(out, "username: %s\n", u.Username)
				if u.Role != "" {
					fmt.Fprintf(out, "role: %s\n", u.Role)
				}
				fmt.Fprintf(out, "cpus: %d\n", u.CPUs)
				fmt.Fprintf(out, "streak: %d\n", u.Streak)
				return nil
			})
		},
	}
}

func checkEmailCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check-email <email>",
		Short: "Report whether an email is already registered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, cmd.ErrOrStderr(), func(a *app) error {
				exists, err := a.manager.CheckEmail(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if exists {
					fmt.Fprintf(cmd.OutOrStdout(), "%s is registered\n", args[0])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s is available\n", args[0])
				}
				return nil
			})
		},
	}
}

func deleteAccountCmd(opts *globalOptions) *cobra.Command {
	var confirmed bool
	cmd := &cobra.Command{
		Use:   "delete-account",
		Short: "Permanently delete the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirmed {
				return errors.New("refusing to delete the account without --yes")
			}
			return withApp(cmd.Context(), opts, cmd.ErrOrStderr(), func(a *app) error {
				if err := a.manager.DeleteAccount(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Account deleted.")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&confirmed, "yes", false, "Confirm account deletion")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}

// greet prints the signed-in user, falling back to a plain confirmation when
// the profile cannot be fetched.
func greet(cmd *cobra.Command, a *app) {
	u, err := a.profiles.Get(cmd.Context())
	if err != nil {
		a.logger.Debug("profile fetch after sign-in failed", "error", err)
		fmt.Fprintln(cmd.OutOrStdout(), "Signed in.")
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s.\n", u.DisplayName())
}
