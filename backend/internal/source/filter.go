package source

// TypeFilter accepts records by POI subtype.
type TypeFilter func(subtype string) bool

// SubtypeFilter accepts exactly the given subtype.
func SubtypeFilter(subtype string) TypeFilter {
	return func(s string) bool { return s == subtype }
}

// Accept reports whether the filter admits subtype. A nil filter admits everything.
func (f TypeFilter) Accept(subtype string) bool {
	if f == nil {
		return true
	}
	return f(subtype)
}
