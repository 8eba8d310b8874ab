package matrix

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Section names the parser interprets. Anything else is pass-through.
const (
	sectionGrid     = "grid"
	sectionRuntimes = "runtimes"
	sectionDeps     = "deps"
	sectionCommands = "commands"
)

// ParseFile parses the matrix file at path.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open matrix file: %w", err)
	}
	defer f.Close()

	return Parse(f, path)
}

// Parse parses a matrix document and validates it. The returned document is
// complete: every declared environment resolves, and no further
// configuration errors can surface during a run.
func Parse(r io.Reader, path string) (*Document, error) {
	doc := &Document{
		Path:        path,
		Pins:        make(map[string]Dependency),
		Runtimes:    make(map[string]string),
		Passthrough: make(map[string][]string),
	}

	var (
		section  string
		gridKeys = make(map[string]string)
		lastKey  string
		lineNo   int
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.TrimSpace(raw)

		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		// Section header
		if strings.HasPrefix(line, "[") {
			if !strings.HasSuffix(line, "]") {
				return nil, &ParseError{File: path, Line: lineNo, Message: fmt.Sprintf("malformed section header %q", line)}
			}
			section = strings.TrimSpace(line[1 : len(line)-1])
			if section == "" {
				return nil, &ParseError{File: path, Line: lineNo, Message: "empty section name"}
			}
			lastKey = ""
			continue
		}
		if section == "" {
			return nil, &ParseError{File: path, Line: lineNo, Message: fmt.Sprintf("content before first section: %q", line)}
		}

		switch section {
		case sectionGrid:
			// Indented lines continue the previous key's value.
			if lastKey != "" && (strings.HasPrefix(raw, " ") || strings.HasPrefix(raw, "\t")) && !strings.Contains(line, "=") {
				gridKeys[lastKey] += " " + line
				continue
			}
			key, value, ok := strings.Cut(line, "=")
			if !ok {
				return nil, &ParseError{File: path, Line: lineNo, Message: fmt.Sprintf("expected key = value in [grid], got %q", line)}
			}
			key = strings.TrimSpace(key)
			if _, dup := gridKeys[key]; dup {
				return nil, &ParseError{File: path, Line: lineNo, Message: fmt.Sprintf("duplicate key %q in [grid]", key)}
			}
			gridKeys[key] = strings.TrimSpace(value)
			lastKey = key

		case sectionRuntimes:
			tag, value, ok := strings.Cut(line, ":")
			if !ok {
				return nil, &ParseError{File: path, Line: lineNo, Message: fmt.Sprintf("expected tag: executable in [runtimes], got %q", line)}
			}
			tag = strings.TrimSpace(tag)
			value = strings.TrimSpace(value)
			if tag == "" || value == "" {
				return nil, &ParseError{File: path, Line: lineNo, Message: "empty runtime tag or executable"}
			}
			if _, dup := doc.Runtimes[tag]; dup {
				return nil, &ParseError{File: path, Line: lineNo, Message: fmt.Sprintf("duplicate runtime tag %q", tag)}
			}
			doc.Runtimes[tag] = value

		case sectionDeps:
			if tag, value, ok := cutPin(line); ok {
				if _, dup := doc.Pins[tag]; dup {
					return nil, &ParseError{File: path, Line: lineNo, Message: fmt.Sprintf("duplicate dependency pin for tag %q", tag)}
				}
				doc.Pins[tag] = parseDependency(value)
				continue
			}
			doc.BaseDeps = append(doc.BaseDeps, parseDependency(line))

		case sectionCommands:
			cmd, err := parseCommand(line)
			if err != nil {
				return nil, &ParseError{File: path, Line: lineNo, Message: err.Error()}
			}
			doc.Commands = append(doc.Commands, cmd)

		default:
			doc.Passthrough[section] = append(doc.Passthrough[section], line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read matrix file: %w", err)
	}

	if err := applyGrid(doc, gridKeys, path); err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// cutPin splits a conditional dependency line "tag: requirement". A colon
// inside a version constraint never matches because pin tags contain no
// constraint characters.
func cutPin(line string) (tag, value string, ok bool) {
	before, after, found := strings.Cut(line, ":")
	if !found {
		return "", "", false
	}
	before = strings.TrimSpace(before)
	if before == "" || strings.ContainsAny(before, constraintChars) {
		return "", "", false
	}
	return before, strings.TrimSpace(after), true
}

// parseCommand parses one command line. An optional "@dir " prefix sets the
// command's working directory.
func parseCommand(line string) (Command, error) {
	var dir string
	if strings.HasPrefix(line, "@") {
		var rest string
		dir, rest, _ = strings.Cut(line[1:], " ")
		if dir == "" {
			return Command{}, fmt.Errorf("empty directory in %q", line)
		}
		line = strings.TrimSpace(rest)
	}

	argv, err := splitArgv(line)
	if err != nil {
		return Command{}, err
	}
	if len(argv) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}
	return Command{Argv: argv, Dir: dir}, nil
}

// splitArgv splits a command line on whitespace, honoring double quotes.
func splitArgv(line string) ([]string, error) {
	var (
		argv   []string
		buf    strings.Builder
		quoted bool
		inArg  bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			inArg = true
		case (r == ' ' || r == '\t') && !quoted:
			if inArg {
				argv = append(argv, buf.String())
				buf.Reset()
				inArg = false
			}
		default:
			buf.WriteRune(r)
			inArg = true
		}
	}
	if quoted {
		return nil, fmt.Errorf("unterminated quote in %q", line)
	}
	if inArg {
		argv = append(argv, buf.String())
	}
	return argv, nil
}

// applyGrid interprets the [grid] section keys.
func applyGrid(doc *Document, keys map[string]string, path string) error {
	envsValue, ok := keys["envs"]
	if !ok {
		return &ParseError{File: path, Message: "missing envs declaration in [grid]"}
	}
	envs, err := ExpandEnvs(envsValue)
	if err != nil {
		return &ParseError{File: path, Message: err.Error()}
	}
	doc.Envs = envs

	if v, ok := keys["install_command"]; ok {
		argv, err := splitArgv(v)
		if err != nil || len(argv) == 0 {
			return &ParseError{File: path, Message: fmt.Sprintf("invalid install_command %q", v)}
		}
		doc.InstallCommand = argv
	} else {
		doc.InstallCommand = append([]string(nil), DefaultInstallCommand...)
	}

	for key := range keys {
		if key != "envs" && key != "install_command" {
			return &ParseError{File: path, Message: fmt.Sprintf("unknown key %q in [grid]", key)}
		}
	}
	return nil
}

// Validate checks the invariants that must hold before any environment
// executes: at least one command, and every declared combination maps to a
// resolvable dependency set.
func (d *Document) Validate() error {
	if len(d.Commands) == 0 {
		return &ParseError{File: d.Path, Message: "missing [commands] section"}
	}
	for _, env := range d.Envs {
		if _, ok := d.Pins[env.DepTag]; !ok {
			return &UnknownPinError{Env: env.Name, DepTag: env.DepTag}
		}
	}
	return nil
}
