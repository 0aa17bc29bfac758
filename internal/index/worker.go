package index

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/dj1mm/vhdlls/internal/hdl"
)

// Worker processes a disjoint slice of file specs sequentially, filing any
// symbols it finds into a library manager and recording the file's library
// membership in a shared filelist.
type Worker struct {
	specs          []FileSpec
	workspaceFolder string
	parser         hdl.Parser
	libraryManager hdl.LibraryManager
	filelist       *Filelist
	compass        *Compass
	diagnose       func(format string, args ...interface{})

	quit atomic.Bool
	done atomic.Bool
}

// NewWorker creates a worker over specs, reporting completions to compass
// and filing results through libraryManager/filelist.
func NewWorker(specs []FileSpec, workspaceFolder string, parser hdl.Parser, libraryManager hdl.LibraryManager, filelist *Filelist, compass *Compass, diagnose func(string, ...interface{})) *Worker {
	if diagnose == nil {
		diagnose = func(string, ...interface{}) {}
	}
	return &Worker{
		specs:           specs,
		workspaceFolder: workspaceFolder,
		parser:          parser,
		libraryManager:  libraryManager,
		filelist:        filelist,
		compass:         compass,
		diagnose:        diagnose,
	}
}

// Stop requests this worker to abandon remaining specs after its current
// one finishes.
func (w *Worker) Stop() { w.quit.Store(true) }

// Busy reports whether the worker is still processing (has not yet run to
// completion or been stopped-and-drained).
func (w *Worker) Busy() bool { return !w.done.Load() }

// Completed matches the reference semantics exactly: a worker is only
// "completed" once both flags hold — it was told to stop AND it finished
// draining. A worker that runs to the end of its own specs without ever
// being stopped is not reported as completed by this predicate; callers
// that run a pass to natural completion should call Stop() once Work
// returns, which is exactly what Explorer does.
func (w *Worker) Completed() bool { return w.quit.Load() && w.done.Load() }

// Work processes every spec in order, checking for a stop request before
// each one, and reports progress to the compass after each.
func (w *Worker) Work() {
	defer w.done.Store(true)

	for _, spec := range w.specs {
		if w.quit.Load() {
			return
		}
		found := w.exploreSpecSafely(spec)
		w.compass.IJustCompletedARequest(found)
	}
}

func (w *Worker) exploreSpecSafely(spec FileSpec) (found int) {
	defer func() {
		if r := recover(); r != nil {
			w.diagnose("panic while indexing %s: %v", spec, r)
			found = 0
		}
	}()
	return w.exploreSpec(spec)
}

func (w *Worker) exploreSpec(spec FileSpec) int {
	if spec.IsPath() {
		return w.indexPathSpec(spec)
	}
	return w.exploreQuery(spec.Library, spec.Query)
}

// indexPathSpec indexes a literal-path spec, diagnosing a missing file
// against the YAML line/column it was declared at rather than silently
// dropping it or reporting line 0.
func (w *Worker) indexPathSpec(spec FileSpec) int {
	if _, err := os.Stat(spec.Path); err != nil {
		w.diagnose("config %s:%d:%d: file does not exist: %s", spec.Library, spec.SourceLine, spec.SourceColumn, spec.Path)
		return 0
	}
	return w.indexFile(spec.Library, spec.Path)
}

func (w *Worker) resolveWorkspaceFolder(dir string) string {
	const placeholder = "${workspaceFolder}"
	if strings.HasPrefix(dir, placeholder) {
		return w.workspaceFolder + dir[len(placeholder):]
	}
	return dir
}

func (w *Worker) exploreQuery(library string, q *FileQuery) int {
	dir := w.resolveWorkspaceFolder(q.Directory)

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		w.diagnose("config %s:%d:%d: directory does not exist: %s", library, q.SourceLine, q.SourceColumn, dir)
		return 0
	}

	re, err := regexp.Compile("(?i)" + q.SearchRegex)
	if err != nil {
		w.diagnose("config %s:%d:%d: invalid search regex %q: %v", library, q.SourceLine, q.SourceColumn, q.SearchRegex, err)
		return 0
	}

	maxDepth := q.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 1
	}
	rootDepth := strings.Count(filepath.Clean(dir), string(filepath.Separator))

	found := 0
	_ = filepath.Walk(dir, func(path string, fi os.FileInfo, err error) error {
		if w.quit.Load() {
			return filepath.SkipAll
		}
		if err != nil || fi.IsDir() {
			return nil
		}
		depth := strings.Count(filepath.Clean(path), string(filepath.Separator)) - rootDepth
		if depth > maxDepth {
			return nil
		}
		if !re.MatchString(fi.Name()) {
			return nil
		}
		found += w.indexFile(library, path)
		return nil
	})
	return found
}

func (w *Worker) indexFile(library, path string) int {
	contents, err := os.ReadFile(path)
	if err != nil {
		w.diagnose("failed to read %s: %v", path, err)
		return 0
	}

	symbols, err := w.parser.Parse(path, contents)
	if err != nil {
		w.diagnose("failed to parse %s: %v", path, err)
		return 0
	}

	lib := w.libraryManager.Get(library)
	for _, sym := range symbols {
		lib.Put(path, sym)
	}
	w.filelist.AddEntry(path, library)
	return 1
}
