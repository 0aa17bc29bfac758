package index

import "fmt"

// FileSpec is either a literal path to index, or a directory query that
// is expanded into a set of paths when a worker runs it.
type FileSpec struct {
	// Library is the name this spec's matches are filed under.
	Library string

	// Path is set when this spec names a single file directly.
	Path string

	// Query is set when this spec describes a directory to search.
	Query *FileQuery

	// SourceLine/SourceColumn locate the originating vhdl_config.yaml
	// entry for a Path spec, so a missing file yields a diagnostic keyed
	// to where it was declared rather than line 0. Unused for a Query
	// spec, which carries its own position on FileQuery instead.
	SourceLine   int
	SourceColumn int
}

// FileQuery describes a recursive, regex-filtered directory search.
type FileQuery struct {
	Directory    string
	SearchRegex  string
	MaxDepth     int
	SourceLine   int
	SourceColumn int
}

// IsPath reports whether this spec names a single file.
func (f FileSpec) IsPath() bool { return f.Query == nil }

// IsQuery reports whether this spec describes a directory search.
func (f FileSpec) IsQuery() bool { return f.Query != nil }

func (f FileSpec) String() string {
	if f.IsPath() {
		return fmt.Sprintf("path(%s)", f.Path)
	}
	return fmt.Sprintf("query(dir=%s, search=%s, depth=%d)", f.Query.Directory, f.Query.SearchRegex, f.Query.MaxDepth)
}
