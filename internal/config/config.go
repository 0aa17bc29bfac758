// Package config reads the workspace's vhdl_config.yaml: the set of
// libraries and the files or directory searches that populate each one.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/dj1mm/vhdlls/internal/index"
)

// yamlErrorLine extracts the 1-based line number yaml.v3 embeds in its
// error text ("yaml: line 3: ..."), since the package does not expose a
// structured position for generic unmarshal errors.
var yamlErrorLine = regexp.MustCompile(`line (\d+)`)

// FileSpecYAML is the YAML shape of one file entry under a library: either
// a literal path, or a directory search.
type FileSpecYAML struct {
	Path      string `yaml:"path,omitempty"`
	Directory string `yaml:"directory,omitempty"`
	Search    string `yaml:"search,omitempty"`
	Depth     int    `yaml:"depth,omitempty"`

	Line   int `yaml:"-"`
	Column int `yaml:"-"`
}

// rawFileSpecYAML mirrors FileSpecYAML's decodable fields without its
// UnmarshalYAML method, so UnmarshalYAML can decode into it without
// recursing into itself.
type rawFileSpecYAML struct {
	Path      string `yaml:"path,omitempty"`
	Directory string `yaml:"directory,omitempty"`
	Search    string `yaml:"search,omitempty"`
	Depth     int    `yaml:"depth,omitempty"`
}

// UnmarshalYAML captures the mapping node's own line/column alongside the
// usual field decode, so a later diagnostic for this entry (a missing
// path, a missing directory, a bad search regex) can be keyed to exactly
// where it sits in vhdl_config.yaml (spec.md §7).
func (f *FileSpecYAML) UnmarshalYAML(value *yaml.Node) error {
	var raw rawFileSpecYAML
	if err := value.Decode(&raw); err != nil {
		return err
	}
	f.Path = raw.Path
	f.Directory = raw.Directory
	f.Search = raw.Search
	f.Depth = raw.Depth
	f.Line = value.Line
	f.Column = value.Column
	return nil
}

// Library is one named library and the files that belong to it.
type Library struct {
	Name  string         `yaml:"name"`
	Files []FileSpecYAML `yaml:"files"`
}

// Root is the top-level shape of vhdl_config.yaml.
type Root struct {
	VHDL []Library `yaml:"vhdl"`
	SV   Library   `yaml:"sv"`
}

// LoadError carries the line/column of a YAML parse failure so it can be
// surfaced as a persistent diagnostic keyed to the config file location.
type LoadError struct {
	Path   string
	Line   int
	Column int
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %v", e.Path, e.Line, e.Column, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Load reads and parses a vhdl_config.yaml file. YAML syntax errors are
// wrapped as *LoadError carrying the offending line taken from yaml.v3's
// error text (0 if the text names none); the column is always reported
// as 1, since that text carries no column.
func Load(path string) (*Root, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var root Root
	if err := yaml.Unmarshal(data, &root); err != nil {
		line := 0
		if m := yamlErrorLine.FindStringSubmatch(err.Error()); m != nil {
			line, _ = strconv.Atoi(m[1])
		}
		return nil, &LoadError{Path: path, Line: line, Column: 1, Err: err}
	}
	return &root, nil
}

// FileSpecs flattens a Root into the index package's FileSpec list,
// binding each entry to its owning library name.
func (r *Root) FileSpecs() []index.FileSpec {
	var out []index.FileSpec
	for _, lib := range r.VHDL {
		out = append(out, specsFor(lib)...)
	}
	out = append(out, specsFor(r.SV)...)
	return out
}

func specsFor(lib Library) []index.FileSpec {
	var out []index.FileSpec
	name := lib.Name
	if name == "" {
		name = "sv"
	}
	for _, f := range lib.Files {
		if f.Directory != "" {
			out = append(out, index.FileSpec{
				Library: name,
				Query: &index.FileQuery{
					Directory:    f.Directory,
					SearchRegex:  f.Search,
					MaxDepth:     f.Depth,
					SourceLine:   f.Line,
					SourceColumn: f.Column,
				},
			})
			continue
		}
		out = append(out, index.FileSpec{
			Library:      name,
			Path:         f.Path,
			SourceLine:   f.Line,
			SourceColumn: f.Column,
		})
	}
	return out
}
