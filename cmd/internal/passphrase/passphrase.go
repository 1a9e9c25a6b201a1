package passphrase

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Source lazily resolves a keystore passphrase from an environment variable or
// by prompting the operator. The value is cached after the first successful
// retrieval so repeated calls reuse the same secret.
type Source struct {
	envVar string

	once  sync.Once
	value string
	err   error
}

// NewSource constructs a passphrase source that checks envVar before
// interactively prompting on the terminal.
func NewSource(envVar string) *Source {
	return &Source{envVar: strings.TrimSpace(envVar)}
}

// Get returns the cached passphrase or resolves it on first call. When the
// environment variable is set the exact value is used; otherwise the operator
// is prompted on stderr. An unset variable with no terminal yields an empty
// passphrase, which matches a keystore written without one.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		if s.envVar != "" {
			if value, ok := os.LookupEnv(s.envVar); ok {
				if strings.TrimSpace(value) == "" {
					s.err = fmt.Errorf("%s is set but empty", s.envVar)
					return
				}
				s.value = value
				return
			}
		}

		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return
		}

		fmt.Fprint(os.Stderr, "Enter node keystore passphrase: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			s.err = fmt.Errorf("failed to read passphrase: %w", err)
			return
		}
		s.value = string(raw)
	})

	return s.value, s.err
}
