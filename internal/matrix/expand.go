package matrix

import (
	"fmt"
	"strings"
)

// ExpandEnvs enumerates environment declarations into typed
// (runtime-tag, dependency-tag) pairs. The value is a whitespace or comma
// separated list of patterns; each pattern has exactly two axes joined by
// "-", and each axis is a literal prefix with an optional {a,b,c} brace
// group. Expansion happens once, here; nothing downstream reinterprets
// environment names as patterns.
func ExpandEnvs(value string) ([]Environment, error) {
	fields := splitPatterns(value)

	var envs []Environment
	seen := make(map[string]bool)
	for _, pattern := range fields {
		expanded, err := expandPattern(pattern)
		if err != nil {
			return nil, err
		}
		for _, e := range expanded {
			if seen[e.Name] {
				return nil, fmt.Errorf("duplicate environment %q", e.Name)
			}
			seen[e.Name] = true
			envs = append(envs, e)
		}
	}
	if len(envs) == 0 {
		return nil, fmt.Errorf("envs declaration is empty")
	}
	return envs, nil
}

// splitPatterns splits an envs value on whitespace and on commas that are
// not inside a brace group.
func splitPatterns(value string) []string {
	var fields []string
	var buf strings.Builder
	depth := 0
	flush := func() {
		if s := strings.TrimSpace(buf.String()); s != "" {
			fields = append(fields, s)
		}
		buf.Reset()
	}
	for _, r := range value {
		switch {
		case r == '{':
			depth++
			buf.WriteRune(r)
		case r == '}':
			depth--
			buf.WriteRune(r)
		case (r == ',' && depth == 0) || r == ' ' || r == '\t' || r == '\n':
			flush()
		default:
			buf.WriteRune(r)
		}
	}
	flush()
	return fields
}

// expandPattern expands one pattern like "py{38,39}-dj{32,40}" into the
// cross product of its two axes.
func expandPattern(pattern string) ([]Environment, error) {
	axes, err := splitAxes(pattern)
	if err != nil {
		return nil, err
	}

	runtimes, err := expandAxis(axes[0])
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", pattern, err)
	}
	depTags, err := expandAxis(axes[1])
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", pattern, err)
	}

	envs := make([]Environment, 0, len(runtimes)*len(depTags))
	for _, rt := range runtimes {
		for _, dt := range depTags {
			envs = append(envs, Environment{
				Name:       rt + "-" + dt,
				RuntimeTag: rt,
				DepTag:     dt,
			})
		}
	}
	return envs, nil
}

// splitAxes splits a pattern on the "-" separating its two axes, ignoring
// dashes inside brace groups.
func splitAxes(pattern string) ([2]string, error) {
	var axes [2]string
	depth := 0
	split := -1
	for i, r := range pattern {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return axes, fmt.Errorf("pattern %q: unbalanced braces", pattern)
			}
		case '-':
			if depth == 0 {
				if split >= 0 {
					return axes, fmt.Errorf("pattern %q: environment names have exactly two axes", pattern)
				}
				split = i
			}
		}
	}
	if depth != 0 {
		return axes, fmt.Errorf("pattern %q: unbalanced braces", pattern)
	}
	if split < 0 {
		return axes, fmt.Errorf("pattern %q: missing %q between runtime and dependency axes", pattern, "-")
	}
	axes[0] = pattern[:split]
	axes[1] = pattern[split+1:]
	if axes[0] == "" || axes[1] == "" {
		return axes, fmt.Errorf("pattern %q: empty axis", pattern)
	}
	return axes, nil
}

// expandAxis expands one axis atom: a literal prefix plus an optional
// single {a,b,c} group, e.g. "py{38,39}" -> ["py38", "py39"].
func expandAxis(atom string) ([]string, error) {
	open := strings.IndexByte(atom, '{')
	if open < 0 {
		return []string{atom}, nil
	}
	closing := strings.IndexByte(atom, '}')
	if closing < open {
		return nil, fmt.Errorf("axis %q: unbalanced braces", atom)
	}
	if strings.ContainsAny(atom[closing+1:], "{}") {
		return nil, fmt.Errorf("axis %q: at most one brace group per axis", atom)
	}

	prefix := atom[:open]
	suffix := atom[closing+1:]
	var out []string
	for _, alt := range strings.Split(atom[open+1:closing], ",") {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			return nil, fmt.Errorf("axis %q: empty brace alternative", atom)
		}
		out = append(out, prefix+alt+suffix)
	}
	return out, nil
}
