// Package cli implements the quickfix command line client. Each
// subcommand maps onto one authsdk call and the signed-in session is kept
// in a SessionContext between runs.
package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/aussiebroadwan/quickfix/pkg/authsdk"
)

// App holds the dependencies of a single CLI invocation.
type App struct {
	Client  *authsdk.SDKClient
	Session *authsdk.SessionContext

	In  *bufio.Reader
	Out io.Writer

	// ReadPassword reads a secret without echo. Nil means the terminal.
	ReadPassword func() ([]byte, error)

	Now func() time.Time
}

type command struct {
	usage string
	run   func(a *App, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"register": {"register -email E -name N [-phone P] [-org O]", (*App).register},
	"login":    {"login -email E [-admin]", (*App).login},
	"otp":      {"otp request -email E | otp verify -email E -code C [-google]", (*App).otp},
	"google":   {"google -token T [-name N] [-admin]", (*App).google},
	"forgot":   {"forgot -email E", (*App).forgot},
	"reset":    {"reset -email E -token T", (*App).reset},
	"whoami":   {"whoami", (*App).whoami},
	"profile":  {"profile [-name N] [-phone P] [-org O] [-image URL] [-bio B] [-location L]", (*App).profile},
	"users":    {"users", (*App).users},
	"logout":   {"logout", (*App).logout},
}

// Run executes the subcommand named by args[0].
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" {
		a.usage()
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		a.usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
	return cmd.run(a, ctx, args[1:])
}

func (a *App) usage() {
	fmt.Fprintln(a.Out, "usage: quickfix [-server URL] <command> [flags]")
	fmt.Fprintln(a.Out)
	for _, name := range slices.Sorted(maps.Keys(commands)) {
		fmt.Fprintf(a.Out, "  %s\n", commands[name].usage)
	}
}

func (a *App) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.Out)
	return fs
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// signedIn stores a fresh sign-in and greets the user.
func (a *App) signedIn(resp *authsdk.AuthResponse) error {
	if err := a.Session.Persist(authsdk.NewStoredSession(resp, a.now())); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	mode := ""
	if resp.AdminMode {
		mode = " (admin)"
	}
	fmt.Fprintf(a.Out, "Signed in as %s%s\n", resp.User.Email, mode)
	return nil
}

// session returns the authenticated session or a hint to sign in.
func (a *App) session() (*authsdk.Session, error) {
	s, err := a.Session.Session(a.Client)
	if errors.Is(err, authsdk.ErrNoSession) {
		return nil, errors.New("not signed in, run `quickfix login` first")
	}
	return s, err
}

// dropIfStale clears the local session when the server no longer accepts
// its token.
func (a *App) dropIfStale(err error) error {
	if errors.Is(err, authsdk.ErrUnauthenticated) {
		if clearErr := a.Session.Clear(); clearErr != nil {
			return errors.Join(err, clearErr)
		}
	}
	return err
}

// Describe turns an error into the text shown to the user.
func Describe(err error, server string) string {
	if errors.Is(err, authsdk.ErrUnreachable) {
		return fmt.Sprintf("cannot reach the QuickFix server at %s, check your connection", server)
	}

	var apiErr *authsdk.APIError
	if !errors.As(err, &apiErr) {
		return err.Error()
	}
	msg := apiErr.Description
	for _, field := range slices.Sorted(maps.Keys(apiErr.Fields)) {
		msg += fmt.Sprintf("\n  %s: %s", field, apiErr.Fields[field])
	}
	return msg
}
