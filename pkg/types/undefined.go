package types

type undefined struct{}

func (undefined) String() string { return "undefined" }

// Undefined is the value of a missing property or of the `undefined` literal.
// It is distinct from nil, which stands for `null`.
var Undefined any = undefined{}

// IsUndefined reports whether v is Undefined.
func IsUndefined(v any) bool {
	_, ok := v.(undefined)
	return ok
}
