package framework

// Capabilities is a type alias for a list of strings representing what the system under test
// supports. For RFD these are mostly actor names such as "form-manager", plus optional features
// such as "clarifications".
type Capabilities []string

// Has returns true if the specified string appears in the list.
func (cs Capabilities) Has(name string) bool {
	for _, c := range cs {
		if c == name {
			return true
		}
	}
	return false
}

// HasAny returns true if at least one of the specified strings appears in the list.
func (cs Capabilities) HasAny(names ...string) bool {
	for _, n := range names {
		if cs.Has(n) {
			return true
		}
	}
	return false
}
