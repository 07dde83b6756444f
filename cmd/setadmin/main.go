// setadmin changes a user's role or account status directly in the store.
// It reads the same environment as the auth service to find the database.
//
//	setadmin -email ops@example.com -role Admin
//	setadmin -email ops@example.com -active=false
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/aussiebroadwan/quickfix/internal/auth/app"
	"github.com/aussiebroadwan/quickfix/internal/auth/service"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := run(ctx, app.LoadConfig(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "setadmin:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg app.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("setadmin", flag.ContinueOnError)
	fs.SetOutput(out)
	email := fs.String("email", "", "email of the account to change (required)")
	role := fs.String("role", "", "new role: Admin or User")
	active := fs.String("active", "", "enable (true) or disable (false) the account")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *email == "" {
		return errors.New("-email is required")
	}
	if *role == "" && *active == "" {
		return errors.New("nothing to change, pass -role or -active")
	}
	var enable bool
	if *active != "" {
		v, err := strconv.ParseBool(*active)
		if err != nil {
			return fmt.Errorf("-active: %w", err)
		}
		enable = v
	}

	st, _, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	creds := &service.CredentialStore{Store: st}
	if *role != "" {
		if _, err := creds.SetRole(ctx, *email, *role); err != nil {
			return describe(*email, err)
		}
	}
	if *active != "" {
		if _, err := creds.SetActive(ctx, *email, enable); err != nil {
			return describe(*email, err)
		}
	}

	u, err := creds.GetByEmail(ctx, *email)
	if err != nil {
		return describe(*email, err)
	}
	fmt.Fprintf(out, "%s role=%s active=%t\n", u.Email, u.Role, u.IsActive)
	return nil
}

func describe(email string, err error) error {
	if errors.Is(err, service.ErrUserNotFound) {
		return fmt.Errorf("no account for %s", email)
	}
	return err
}
