package matrix

import "fmt"

// ParseError represents a malformed matrix file. It is surfaced at parse
// time, before any environment executes.
type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		if e.Line > 0 {
			return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
		}
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// UnknownPinError reports an environment whose dependency-set tag matches
// no conditional pin in the [deps] section.
type UnknownPinError struct {
	Env    string
	DepTag string
}

func (e *UnknownPinError) Error() string {
	return fmt.Sprintf("environment %q: no dependency pin for tag %q", e.Env, e.DepTag)
}
