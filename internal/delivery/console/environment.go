package console

import (
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// EnvLookup resolves an environment variable.
type EnvLookup func(string) (string, bool)

// ColorEnabled decides whether output written to w should carry ANSI colors.
// NO_COLOR, CLICOLOR=0 and TERM=dumb disable colors; CLICOLOR_FORCE and
// FORCE_COLOR force them on. Otherwise only terminals get colors.
func ColorEnabled(w io.Writer, lookup EnvLookup) bool {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if val, ok := lookup("NO_COLOR"); ok && val != "" {
		return false
	}
	if val, ok := lookup("CLICOLOR"); ok && strings.TrimSpace(val) == "0" {
		return false
	}
	if val, ok := lookup("TERM"); ok && strings.EqualFold(strings.TrimSpace(val), "dumb") {
		return false
	}
	for _, key := range []string{"CLICOLOR_FORCE", "FORCE_COLOR"} {
		if val, ok := lookup(key); ok && envTruthy(val) {
			return true
		}
	}
	return IsTerminal(w)
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w any) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

func envTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
