package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ErlanBelekov/authflow/pkg/authclient"
	"golang.org/x/term"
)

const defaultURL = "http://localhost:8080"

var errUsage = errors.New("usage: authctl [-url URL] signup|resend|verify|login|me|promote|providers [flags]")

// readPassword is swapped out in tests.
var readPassword = func() (string, error) {
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	return string(pw), err
}

type command func(ctx context.Context, c *authclient.Client, args []string, out io.Writer) error

var commands = map[string]command{
	"signup":    signUp,
	"resend":    resend,
	"verify":    verify,
	"login":     login,
	"me":        me,
	"promote":   promote,
	"providers": providers,
}

func run(ctx context.Context, args []string, out io.Writer) error {
	global := flag.NewFlagSet("authctl", flag.ContinueOnError)
	global.SetOutput(io.Discard)
	baseURL := global.String("url", envOr("AUTHFLOW_URL", defaultURL), "API base URL")
	if err := global.Parse(args); err != nil {
		return errUsage
	}
	if global.NArg() == 0 {
		return errUsage
	}

	cmd, ok := commands[global.Arg(0)]
	if !ok {
		return fmt.Errorf("unknown command %q\n%w", global.Arg(0), errUsage)
	}
	return cmd(ctx, authclient.New(*baseURL), global.Args()[1:], out)
}

func signUp(ctx context.Context, c *authclient.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "email address")
	minPassword := fs.Int("min-password", authclient.DefaultMinPasswordLength, "minimum password length")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pw, err := promptPassword(out, "Password: ")
	if err != nil {
		return err
	}
	confirm, err := promptPassword(out, "Confirm password: ")
	if err != nil {
		return err
	}

	form := authclient.NewSignUpForm(c, *minPassword)
	for field, v := range map[string]string{
		authclient.FieldName:            *name,
		authclient.FieldEmail:           *email,
		authclient.FieldPassword:        pw,
		authclient.FieldPasswordConfirm: confirm,
	} {
		if _, err := form.SetField(field, v); err != nil {
			return err
		}
	}

	res, err := outcome(form.Run(ctx))
	if err != nil {
		return err
	}
	return printJSON(out, res)
}

func resend(ctx context.Context, c *authclient.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("resend", flag.ContinueOnError)
	email := fs.String("email", "", "email address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := c.ResendVerification(ctx, *email)
	if err != nil {
		return err
	}
	return printJSON(out, res)
}

func verify(ctx context.Context, c *authclient.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	tok := fs.String("token", "", "verification token")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := outcome(authclient.NewVerifyFlow(c, *tok).Run(ctx))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, res.Message)
	return err
}

func login(ctx context.Context, c *authclient.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "email address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pw, err := promptPassword(out, "Password: ")
	if err != nil {
		return err
	}

	form := authclient.NewLoginForm(c, 1)
	if _, err := form.SetField(authclient.FieldEmail, *email); err != nil {
		return err
	}
	if _, err := form.SetField(authclient.FieldPassword, pw); err != nil {
		return err
	}

	res, err := outcome(form.Run(ctx))
	if err != nil {
		return err
	}
	return printJSON(out, res)
}

func me(ctx context.Context, c *authclient.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("me", flag.ContinueOnError)
	tok := fs.String("token", os.Getenv("AUTHFLOW_TOKEN"), "session token")
	if err := fs.Parse(args); err != nil {
		return err
	}

	u, err := c.Me(ctx, *tok)
	if err != nil {
		return err
	}
	return printJSON(out, u)
}

func promote(ctx context.Context, c *authclient.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("promote", flag.ContinueOnError)
	userID := fs.String("user", "", "user id")
	secret := fs.String("secret", os.Getenv("ADMIN_SECRET"), "admin secret")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := c.PromoteAdmin(ctx, *userID, *secret)
	if err != nil {
		return err
	}
	return printJSON(out, res)
}

func providers(ctx context.Context, c *authclient.Client, _ []string, out io.Writer) error {
	names, err := c.Providers(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		_, err = fmt.Fprintln(out, "(none)")
		return err
	}
	_, err = fmt.Fprintln(out, strings.Join(names, "\n"))
	return err
}

func promptPassword(out io.Writer, prompt string) (string, error) {
	if _, err := fmt.Fprint(out, prompt); err != nil {
		return "", err
	}
	pw, err := readPassword()
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return pw, nil
}

// outcome turns the last transition of a form run into a result or an error
// fit for the terminal.
func outcome[T any](steps []authclient.Transition[T], err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	last := steps[len(steps)-1]
	switch last.To {
	case authclient.PhaseSuccess:
		return last.Result, nil
	case authclient.PhaseSubmitted:
		return nil, fmt.Errorf("invalid %s", strings.Join(last.Invalid, ", "))
	case authclient.PhaseError:
		if last.Err.Field != "" {
			return nil, fmt.Errorf("%s: %s", last.Err.Field, last.Err.Message)
		}
		return nil, errors.New(last.Err.Message)
	}
	return nil, fmt.Errorf("unexpected form phase %q", last.To)
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
