package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/five82/cranky/internal/auth"
)

func newLoginCmd(root *rootOptions) *cobra.Command {
	var paste bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to Cranky",
		Long: "Open the Cranky login page and wait for it to hand the token to a local listener. " +
			"With --paste the token is read from stdin instead.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			w := cmd.OutOrStdout()

			if paste {
				token, err := readToken(cmd)
				if err != nil {
					return err
				}
				if err := a.SaveToken(token); err != nil {
					return fmt.Errorf("save token: %w", err)
				}
				fmt.Fprintln(w, "Token saved.")
				return nil
			}

			mgr := a.LoginManager()
			session, err := mgr.Start()
			if err != nil {
				return fmt.Errorf("start login: %w", err)
			}
			defer session.Close()
			fmt.Fprintf(w, "Opening %s\n", mgr.LoginURL)
			fmt.Fprintf(w, "Waiting for the token on %s (ctrl+c to stop)...\n", session.Addr())

			select {
			case token, ok := <-session.Token():
				if !ok || token == "" {
					return errors.New("login ended without a token")
				}
				fmt.Fprintln(w, "Logged in.")
				return nil
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			}
		},
	}
	cmd.Flags().BoolVar(&paste, "paste", false, "Read the token from stdin")
	return cmd
}

func readToken(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), "Paste token: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	token := strings.TrimSpace(line)
	if token == "" {
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return "", errors.New("no token entered")
	}
	if auth.Expired(token, time.Now()) {
		return "", errors.New("token has already expired")
	}
	return token, nil
}

func newLogoutCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.ClearToken(); err != nil {
				return fmt.Errorf("clear token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}
