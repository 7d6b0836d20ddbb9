// Package transform provides deferred, serializable array computations.
//
// A computation is a doubly linked chain of [Link] values. Evaluating any
// link of a chain with [Run] evaluates the whole chain from its head, each
// link receiving its predecessor's output. Chains serialize head to tail as
// a list of records
//
//	[{"type": "TransformImmediate", "np_array": [1, 2]},
//	 {"type": "TransformMathOp", "operation": "mul", "operand": 3}]
//
// and are rebuilt by a [Registry], which maps record types to constructors.
// There is no package level registry: decoders are handed one explicitly.
//
// # Link kinds
//
//   - [Load] reads an array from a file or URL, in .npy or nested list JSON.
//   - [Immediate] yields an embedded array.
//   - [MathOp] applies add, sub, mul or div with a scalar.
//   - [AssertShape] checks the shape of its input.
//   - [Expr] evaluates an expression per element.
//   - [Func] calls a Go function registered by name.
//
// # Related Packages
//
//   - github.com/signadot/scenesync/ndarray for the array type.
//   - github.com/signadot/scenesync/arraylike for the wire encoding of chains.
package transform
