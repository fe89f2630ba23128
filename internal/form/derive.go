package form

// Derive computes the plan for a change to in.Changed. It is a pure function
// of the store contents and in: only rules keyed on the changed attribute are
// evaluated, so unrelated fields the user is editing are left alone.
func Derive(a Attributes, in Input) Plan {
	p := newPlan()
	for _, r := range rules {
		if r.trigger != in.Changed {
			continue
		}
		if r.when != nil && !r.when(a) {
			continue
		}
		r.then(a, in, p)
	}
	return *p
}

// Triggers reports whether any rule is keyed on attr.
func Triggers(attr string) bool {
	for _, r := range rules {
		if r.trigger == attr {
			return true
		}
	}
	return false
}
