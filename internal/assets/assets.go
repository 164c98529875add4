// Package assets embeds the toolchain's built-in defaults: the 8080
// opcode table and codegen template files spec §6 specifies as external
// JSON, and the runtime support library (internal/assets/runtime/crt.s)
// that the backend's mult/div/mod/shift templates and every function
// epilogue call out to. cmd/c6t uses these unless overridden by an
// on-disk file via its -opcodes/-templates flags.
package assets

import _ "embed"

//go:embed testdata/opcodes.json
var Opcodes []byte

//go:embed testdata/templates.json
var Templates []byte

//go:embed runtime/crt.s
var Runtime string
