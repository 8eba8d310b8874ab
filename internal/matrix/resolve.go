package matrix

// Resolve returns the dependency list for one environment: every base
// dependency followed by the single conditional pin matching the
// environment's dependency-set tag. The document never changes, so the
// result is stable for the lifetime of a run.
func (d *Document) Resolve(env Environment) ([]Dependency, error) {
	pin, ok := d.Pins[env.DepTag]
	if !ok {
		return nil, &UnknownPinError{Env: env.Name, DepTag: env.DepTag}
	}

	deps := make([]Dependency, 0, len(d.BaseDeps)+1)
	deps = append(deps, d.BaseDeps...)
	deps = append(deps, pin)
	return deps, nil
}

// ResolveName resolves by environment name. Unknown names are an
// UnknownPinError with an empty tag, distinguishing a name that was never
// declared from a declared name with a missing pin.
func (d *Document) ResolveName(name string) ([]Dependency, error) {
	env, ok := d.Environment(name)
	if !ok {
		return nil, &UnknownPinError{Env: name}
	}
	return d.Resolve(env)
}

// Requirements renders a resolved dependency list back to requirement
// strings, in order.
func Requirements(deps []Dependency) []string {
	out := make([]string, len(deps))
	for i, d := range deps {
		out[i] = d.String()
	}
	return out
}
