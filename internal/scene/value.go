package scene

import "strconv"

// Value is an optional integer reading. The zero Value is unknown.
type Value struct {
	v     int
	known bool
}

// Known returns a Value holding v.
func Known(v int) Value {
	return Value{v: v, known: true}
}

// FromRaw converts a platform reading where negative numbers mean unknown.
func FromRaw(v int) Value {
	if v < 0 {
		return Value{}
	}

	return Known(v)
}

// Get returns the reading and whether it is known.
func (v Value) Get() (int, bool) {
	return v.v, v.known
}

func (v Value) IsKnown() bool {
	return v.known
}

// Or returns the reading, or def when unknown.
func (v Value) Or(def int) int {
	if !v.known {
		return def
	}

	return v.v
}

// Raw returns the reading in platform form, Unknown when absent.
func (v Value) Raw() int {
	return v.Or(Unknown)
}

// merge returns in when it is known and v otherwise.
func (v Value) merge(in Value) Value {
	if in.known {
		return in
	}

	return v
}

func (v Value) String() string {
	if !v.known {
		return "unknown"
	}

	return strconv.Itoa(v.v)
}
