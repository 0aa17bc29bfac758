// Package hdl pins the interfaces for the hardware-description-language
// collaborators the indexer depends on: a parser that extracts top-level
// declarations from a source file, and a library manager that those
// declarations are filed into. A conformant VHDL/SystemVerilog grammar and
// a bignum-backed symbol table are out of scope; RegexParser and
// MemoryLibraryManager below are deliberately thin stand-ins good enough
// to drive the indexing pipeline end to end.
package hdl

// Symbol is one top-level declaration found in a source file.
type Symbol struct {
	Name   string
	Kind   string // "entity", "architecture", "package", "module", "interface"
	Line   int
	Column int
}

// Library collects symbols put into it by the parser.
type Library interface {
	Put(path string, sym Symbol)
}

// LibraryManager vends named libraries and releases whatever resources
// they hold on Destroy, mirroring the lifetime of the real symbol table
// this stands in for.
type LibraryManager interface {
	Get(name string) Library
	Destroy()
}

// Parser extracts symbols from one source file.
type Parser interface {
	Parse(path string, contents []byte) ([]Symbol, error)
}
