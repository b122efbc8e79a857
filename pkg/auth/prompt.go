package auth

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter reads an account interactively. Passwords are read without
// echo when the input is a terminal.
type Prompter struct {
	In  io.Reader
	Out io.Writer
	// Fd is the descriptor checked for a terminal; -1 disables hidden input.
	Fd int
}

// NewStdinPrompter prompts on stdin and stderr
func NewStdinPrompter() *Prompter {
	return &Prompter{In: os.Stdin, Out: os.Stderr, Fd: int(os.Stdin.Fd())}
}

// Prompt asks for whichever of username and password is empty
func (p *Prompter) Prompt(username, password string) (*Account, error) {
	reader := bufio.NewReader(p.In)

	if username == "" {
		fmt.Fprint(p.Out, "Username: ")
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return nil, fmt.Errorf("failed to read username: %w", err)
		}
		username = strings.TrimSpace(line)
	}
	if username == "" {
		return nil, fmt.Errorf("%w: empty username", ErrInvalidCredentials)
	}

	if password == "" {
		fmt.Fprint(p.Out, "Password: ")
		if p.Fd >= 0 && term.IsTerminal(p.Fd) {
			raw, err := term.ReadPassword(p.Fd)
			fmt.Fprintln(p.Out)
			if err != nil {
				return nil, fmt.Errorf("failed to read password: %w", err)
			}
			password = string(raw)
		} else {
			line, err := reader.ReadString('\n')
			if err != nil && line == "" {
				return nil, fmt.Errorf("failed to read password: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}
	}
	if password == "" {
		return nil, fmt.Errorf("%w: empty password", ErrInvalidCredentials)
	}

	return &Account{Username: username, Password: password}, nil
}
