package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/B0gdanovAleksandr/ayurveda-now/internal/form"
)

var (
	authEmail    string
	authPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the access token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := submitAuth(cmd, form.ModeLogin)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s.\n", email)
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := submitAuth(cmd, form.ModeRegister)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Account %s created. Sign in with 'ayurveda login'.\n", email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored access token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.machine.Logout(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
		return nil
	},
}

// submitAuth drives the same form controller as the UI, so a successful
// login leaves the session authenticated.
func submitAuth(cmd *cobra.Command, mode form.Mode) (string, error) {
	in := bufio.NewReader(cmd.InOrStdin())

	email := authEmail
	if email == "" && activeProfile != nil {
		email = activeProfile.Email
	}
	if email == "" {
		fmt.Fprint(cmd.ErrOrStderr(), "Email: ")
		line, err := readLine(in)
		if err != nil {
			return "", err
		}
		email = line
	}

	password := authPassword
	if password == "" {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		var err error
		password, err = readPassword(cmd, in)
		if err != nil {
			return "", err
		}
	}

	f := form.NewAuthForm(app.client, app.machine, app.logger.Named("auth"))
	f.SetMode(mode)
	f.SetField(form.FieldEmail, email)
	f.SetField(form.FieldPassword, password)

	if err := f.Submit(cmd.Context()); err != nil {
		if msg, ok := f.Snapshot().Outcome.Message(); ok {
			return "", errors.New(msg)
		}
		return "", err
	}
	return email, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// readPassword reads without echo from a terminal and a plain line otherwise.
func readPassword(cmd *cobra.Command, r *bufio.Reader) (string, error) {
	if interactive(cmd) {
		b, err := term.ReadPassword(cmd.InOrStdin().(*os.File).Fd())
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}
	return readLine(r)
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVar(&authEmail, "email", "", "account email (defaults to the profile email)")
		c.Flags().StringVar(&authPassword, "password", "", "password (prompted when omitted)")
	}
	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd)
}
