package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	appI18n "github.com/pavelanni/cotgame/internal/i18n"
	"github.com/pavelanni/cotgame/internal/model"
)

func signupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account so solves are saved on the server",
		Args:  cobra.NoArgs,
		RunE:  runSignup,
	}
	f := cmd.Flags()
	f.StringP("username", "u", "", "Display name")
	f.StringP("email", "e", "", "Email address")
	f.String("password", "", "Password (prompted when empty)")
	return cmd
}

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the token locally",
		Args:  cobra.NoArgs,
		RunE:  runLogin,
	}
	f := cmd.Flags()
	f.StringP("email", "e", "", "Email address")
	f.String("password", "", "Password (prompted when empty)")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved login token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd, true)
			if err != nil {
				return err
			}
			defer e.close()
			if err := e.db.ClearLogin(); err != nil {
				return fmt.Errorf("clear login: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), appI18n.T(e.ctx, "LoggedOut"))
			return nil
		},
	}
}

func runSignup(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer e.close()

	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()
	var req model.SignupRequest
	if req.Username, err = askIfEmpty(in, out, "Username", e.v.GetString("username")); err != nil {
		return err
	}
	if req.Email, err = askIfEmpty(in, out, "Email", e.v.GetString("email")); err != nil {
		return err
	}
	if req.Password, err = askIfEmpty(in, out, "Password", e.v.GetString("password")); err != nil {
		return err
	}

	client, err := e.client()
	if err != nil {
		return err
	}
	resp, err := client.Signup(e.ctx, req)
	if err != nil {
		return fmt.Errorf("signup: %w", err)
	}
	if err := e.db.SaveLogin(resp.Token, resp.User.Username); err != nil {
		return fmt.Errorf("save login: %w", err)
	}
	fmt.Fprintln(out, appI18n.Td(e.ctx, "LoggedIn", map[string]any{"User": resp.User.Username}))
	return nil
}

func runLogin(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer e.close()

	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()
	var req model.LoginRequest
	if req.Email, err = askIfEmpty(in, out, "Email", e.v.GetString("email")); err != nil {
		return err
	}
	if req.Password, err = askIfEmpty(in, out, "Password", e.v.GetString("password")); err != nil {
		return err
	}

	client, err := e.client()
	if err != nil {
		return err
	}
	resp, err := client.Login(e.ctx, req)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := e.db.SaveLogin(resp.Token, resp.User.Username); err != nil {
		return fmt.Errorf("save login: %w", err)
	}
	fmt.Fprintln(out, appI18n.Td(e.ctx, "LoggedIn", map[string]any{"User": resp.User.Username}))
	return nil
}

// askIfEmpty returns value, or a line read from in after printing label.
// The typed text is echoed; passwords are not hidden.
func askIfEmpty(in *bufio.Reader, out io.Writer, label, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Fprintf(out, "%s: ", label)
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}
