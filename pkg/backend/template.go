package backend

import (
	"meep/fpgarelay/pkg/config"
)

// Template is a fixed argv into which a payload is placed.
type Template struct {
	Program string
	Args    []string
}

// Build returns the argv for payload and the data to feed on stdin.
// If an argument equals the placeholder, the payload replaces that argument
// and nothing is written to stdin. Otherwise the payload is sent on stdin as
// a single line. In both cases the payload stays one discrete value; no
// shell ever parses it on the relay side.
func (t Template) Build(payload string) (argv []string, stdin string) {
	argv = make([]string, 0, len(t.Args)+1)
	argv = append(argv, t.Program)

	substituted := false
	for _, a := range t.Args {
		if a == config.PayloadPlaceholder {
			argv = append(argv, payload)
			substituted = true
			continue
		}
		argv = append(argv, a)
	}

	if substituted {
		return argv, ""
	}
	return argv, payload + "\n"
}
