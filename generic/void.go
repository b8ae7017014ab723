package generic

// Void is a zero-sized value for contexts that need a type but no data, e.g. map-based sets
// or Result[T] for functions that only return an error.
type Void struct{}

func NewVoid() Void {
	return Void{}
}
