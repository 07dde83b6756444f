package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readTerminalPassword reads from stdin without echo.
var readTerminalPassword = func() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd()))
}

// prompt returns value when set and otherwise asks for a line of input.
func (a *App) prompt(value, label string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Fprintf(a.Out, "%s: ", label)
	line, err := a.In.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}

// password asks for a secret without echoing it.
func (a *App) password(label string) (string, error) {
	read := a.ReadPassword
	if read == nil {
		read = readTerminalPassword
	}

	fmt.Fprintf(a.Out, "%s: ", label)
	pw, err := read()
	fmt.Fprintln(a.Out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}

// newPassword asks twice and requires both entries to match.
func (a *App) newPassword() (string, error) {
	pw, err := a.password("New password")
	if err != nil {
		return "", err
	}
	again, err := a.password("Repeat password")
	if err != nil {
		return "", err
	}
	if pw != again {
		return "", errors.New("passwords do not match")
	}
	return pw, nil
}
