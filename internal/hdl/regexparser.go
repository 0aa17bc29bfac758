package hdl

import (
	"bytes"
	"regexp"
	"strings"
)

var (
	vhdlEntity       = regexp.MustCompile(`(?i)^\s*entity\s+(\w+)\s+is`)
	vhdlArchitecture = regexp.MustCompile(`(?i)^\s*architecture\s+(\w+)\s+of\s+(\w+)\s+is`)
	vhdlPackage      = regexp.MustCompile(`(?i)^\s*package\s+(\w+)\s+is`)

	svModule    = regexp.MustCompile(`(?i)^\s*module\s+(\w+)`)
	svInterface = regexp.MustCompile(`(?i)^\s*interface\s+(\w+)`)
	svPackage   = regexp.MustCompile(`(?i)^\s*package\s+(\w+)`)
)

// RegexParser scans a file line by line for VHDL and SystemVerilog
// top-level declarations using regular expressions. It does not parse
// expressions, generics, or bodies, and makes no claim to grammar
// conformance — see the package doc comment.
type RegexParser struct{}

// Parse implements Parser.
func (RegexParser) Parse(path string, contents []byte) ([]Symbol, error) {
	isVHDL := strings.HasSuffix(strings.ToLower(path), ".vhd") || strings.HasSuffix(strings.ToLower(path), ".vhdl")

	var symbols []Symbol
	lines := bytes.Split(contents, []byte("\n"))
	for i, lineBytes := range lines {
		line := string(lineBytes)
		lineNo := i + 1

		var match []string
		var kind string
		switch {
		case isVHDL:
			if m := vhdlEntity.FindStringSubmatch(line); m != nil {
				match, kind = m, "entity"
			} else if m := vhdlArchitecture.FindStringSubmatch(line); m != nil {
				match, kind = m, "architecture"
			} else if m := vhdlPackage.FindStringSubmatch(line); m != nil {
				match, kind = m, "package"
			}
		default:
			if m := svModule.FindStringSubmatch(line); m != nil {
				match, kind = m, "module"
			} else if m := svInterface.FindStringSubmatch(line); m != nil {
				match, kind = m, "interface"
			} else if m := svPackage.FindStringSubmatch(line); m != nil {
				match, kind = m, "package"
			}
		}

		if match == nil {
			continue
		}
		column := strings.Index(line, match[1]) + 1
		symbols = append(symbols, Symbol{Name: match[1], Kind: kind, Line: lineNo, Column: column})
	}
	return symbols, nil
}
