package sweep

// Flags holds one failure flag per pattern. A flag is only ever set during
// a cycle, all flags are cleared together at the end of the cycle.
type Flags struct {
	order []string
	set   map[string]bool
}

// NewFlags returns cleared flags for the named patterns.
func NewFlags(names ...string) *Flags {
	return &Flags{
		order: append([]string(nil), names...),
		set:   make(map[string]bool, len(names)),
	}
}

// Set sets the flag of the pattern and returns whether it was not set before.
func (f *Flags) Set(name string) bool {
	if f.set[name] {
		return false
	}
	f.set[name] = true
	return true
}

// IsSet returns whether the flag of the pattern is set.
func (f *Flags) IsSet(name string) bool {
	return f.set[name]
}

// Any returns whether any flag is set.
func (f *Flags) Any() bool {
	for _, set := range f.set {
		if set {
			return true
		}
	}
	return false
}

// Failed returns the names of all set flags in pattern order.
func (f *Flags) Failed() []string {
	var failed []string
	for _, name := range f.order {
		if f.set[name] {
			failed = append(failed, name)
		}
	}
	return failed
}

// Clear resets all flags.
func (f *Flags) Clear() {
	clear(f.set)
}
