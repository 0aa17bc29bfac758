package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dj1mm/vhdlls/internal/hdl"
)

func TestStartExplorerIndexesAllSpecsAcrossWorkers(t *testing.T) {
	dir := t.TempDir()
	var specs []FileSpec
	for i := 0; i < 5; i++ {
		name := filepath.Join(dir, "e"+string(rune('a'+i))+".vhd")
		if err := os.WriteFile(name, []byte("entity e is\nend entity;\n"), 0644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
		specs = append(specs, FileSpec{Library: "work", Path: name})
	}

	mgr := hdl.NewMemoryLibraryManager()
	fl := NewFilelist()

	e := StartExplorer(specs, dir, 2, hdl.RegexParser{}, mgr, fl, nil, nil, nil)
	e.Join()

	if !e.Done() {
		t.Fatalf("expected explorer to report done after Join")
	}
	if fl.Len() != 5 {
		t.Fatalf("expected all 5 files tracked, got %d", fl.Len())
	}
}
