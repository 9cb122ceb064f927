// Package bytecode defines the compiled module: the durable artifact the
// emitter produces from IR and the runtime mounts.
//
// A Module is immutable after construction and safe for concurrent use by
// any number of mounted instances. Variables, functions, bindings and
// fragments are referenced by index; names and literal values live in a
// single constant pool.
//
// # Key Types
//
//   - [Module]: the compiled component
//   - [Function]: stack code for an expression, handler, init or thunk
//   - [Binding]: a markup location bound to a function
//   - [Step]: an update instruction, keyed by kind and target
//   - [SourceMap]: instruction offsets to source positions, per code unit
//
// # Encoding
//
// [Marshal] writes the magic "SMEM", a format version byte and then the
// msgpack-encoded sections in a fixed order: metadata, constants,
// variables, functions, bindings, fragments, updates and the source map.
// [Lift] turns a module back into IR; emitting the lifted program with the
// same options reproduces the module byte for byte.
//
// # Usage
//
//	mod, err := bytecode.Emit(prog, bytecode.WithSourceMap(true))
//	if err != nil {
//	    return err
//	}
//	data, err := bytecode.Marshal(mod)
package bytecode
