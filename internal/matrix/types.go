// Package matrix provides parsing and resolution of gridrun matrix files.
// A matrix file declares a cross-product of runtime-version tags and
// dependency-set tags, per-tag dependency pins, and an ordered command list.
package matrix

import "strings"

// Environment is one resolved combination of a runtime tag and a
// dependency-set tag, enumerated from the envs declaration before any
// resolution happens.
type Environment struct {
	// Name is the full environment name, e.g. "py38-dj32".
	Name string
	// RuntimeTag is the first axis, e.g. "py38".
	RuntimeTag string
	// DepTag is the second axis, e.g. "dj32". It selects the conditional
	// dependency pin applied on top of the base dependencies.
	DepTag string
}

// Dependency is a (package, version-constraint) pair.
type Dependency struct {
	Name       string
	Constraint string // e.g. ">=3.2,<3.3", empty when unconstrained
}

// String reassembles the dependency into its requirement form.
func (d Dependency) String() string {
	return d.Name + d.Constraint
}

// constraintChars are the characters that begin a version constraint
// in a requirement line.
const constraintChars = "=<>!~ "

// parseDependency splits a requirement line into name and constraint.
func parseDependency(s string) Dependency {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, constraintChars); i >= 0 {
		return Dependency{
			Name:       s[:i],
			Constraint: strings.TrimSpace(s[i:]),
		}
	}
	return Dependency{Name: s}
}

// Command is one shell invocation: an argument vector with an optional
// working-directory override relative to the project root.
type Command struct {
	Argv []string
	Dir  string
}

// Document is a fully parsed matrix file. It is immutable after Parse:
// a run never mutates the environment set or the command list.
type Document struct {
	// Path is the location the document was parsed from, "" for in-memory
	// documents. Relative command directories resolve against its parent.
	Path string

	// Envs is the typed enumeration of all declared environments.
	Envs []Environment

	// BaseDeps are included in every environment's resolution.
	BaseDeps []Dependency

	// Pins maps a dependency-set tag to its single conditional pin.
	Pins map[string]Dependency

	// Runtimes maps a runtime tag to the executable substituted for the
	// {runtime} placeholder. Tags without a mapping fall back to the tag
	// itself.
	Runtimes map[string]string

	// InstallCommand is the argv template for the install phase. The
	// {deps} placeholder expands to the resolved dependency list.
	InstallCommand []string

	// Commands is the ordered command list executed after the install
	// phase, strictly in order, fail-fast.
	Commands []Command

	// Passthrough holds the raw lines of sections gridrun does not
	// interpret, keyed by section name. They are preserved for tools that
	// read the same file.
	Passthrough map[string][]string
}

// Environment returns the declared environment with the given name,
// or false when no such environment was declared.
func (d *Document) Environment(name string) (Environment, bool) {
	for _, e := range d.Envs {
		if e.Name == name {
			return e, true
		}
	}
	return Environment{}, false
}

// DefaultInstallCommand is used when the [grid] section does not set
// install_command.
var DefaultInstallCommand = []string{"{runtime}", "-m", "pip", "install", "{deps}"}
