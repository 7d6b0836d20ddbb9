// Package ndarray provides the dense n-dimensional float64 array used as the
// element buffer of scene attributes.
//
// Arrays are row-major. Sub-regions are described by a [Region], one
// half-open [Interval] per axis, and are produced from index expressions
// built with [At], [Span], [From], [To] and [All]:
//
//	a := ndarray.Arange(9)
//	a, _ = a.Reshape(3, 3)
//	r, _ := a.Normalize(ndarray.At(2), ndarray.Span(1, 3))
//	sub := a.Sub(r) // shape [1 2]
//
// Reading a region always copies. Arrays encode to and from JSON as nested
// lists, the form used on the wire by scene snapshots.
//
// # Related Packages
//
//   - github.com/signadot/scenesync/diffarray - write tracking on top of Array
//   - github.com/signadot/scenesync/transform - deferred computations producing Arrays
package ndarray
