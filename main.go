// Command vhdlls is the entry point: it parses the CLI surface, builds a
// logger, picks a transport (live stdio, optionally teed to a journal, or
// a replay harness reading a recorded journal), and drives the dispatcher
// through a Server whose initialize handler kicks off config loading and
// background indexing.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/dj1mm/vhdlls/internal/config"
	"github.com/dj1mm/vhdlls/internal/dispatch"
	"github.com/dj1mm/vhdlls/internal/hdl"
	"github.com/dj1mm/vhdlls/internal/index"
	"github.com/dj1mm/vhdlls/internal/logger"
	"github.com/dj1mm/vhdlls/internal/lspclient"
	"github.com/dj1mm/vhdlls/internal/lspserver"
	"github.com/dj1mm/vhdlls/internal/replay"
	"github.com/dj1mm/vhdlls/internal/transport"
	"github.com/dj1mm/vhdlls/internal/watcher"
)

const version = "0.1.0"

const configFileName = "vhdl_config.yaml"

var numWorkers = 4

type flags struct {
	stderr  bool
	logfile string
	journal string
	replay  string
	version bool
}

func newRootCommand() *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:           "vhdlls",
		Short:         "A language server for VHDL and SystemVerilog",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.version {
				fmt.Println("vhdlls " + version)
				return nil
			}
			return run(f)
		},
	}

	cmd.Flags().BoolVarP(&f.stderr, "stderr", "s", false, "route logs to stderr at max verbosity")
	cmd.Flags().StringVar(&f.logfile, "logfile", "", "append logs to path at max verbosity")
	cmd.Flags().StringVar(&f.journal, "journal", "", "tee the session to a journal file during a live session")
	cmd.Flags().StringVar(&f.replay, "replay", "", "replay a recorded journal instead of reading stdin, then exit")
	cmd.Flags().BoolVarP(&f.version, "version", "v", false, "print version and exit")

	return cmd
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "vhdlls: %v\n", err)
		os.Exit(1)
	}
}

func buildLogger(f *flags) logger.Logger {
	switch {
	case f.logfile != "":
		l, err := logger.NewFileLogger(f.logfile, logger.LevelLog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "vhdlls: could not open logfile: %v\n", err)
			return &logger.NullLogger{}
		}
		return l
	case f.stderr:
		return logger.NewStderrLogger(logger.LevelLog)
	default:
		return &logger.NullLogger{}
	}
}

// session owns everything that must be rebuilt on a config reload: the
// library manager, the filelist, and the explorer currently indexing
// them. Swapping all three under one mutex is the staged reload described
// in spec.md §4.H.
type session struct {
	mu sync.Mutex

	libraryManager hdl.LibraryManager
	filelist       *index.Filelist
	explorer       *index.Explorer

	workspaceFolder string
	configPath      string

	dispatcher *dispatch.Dispatcher
	client     *lspclient.Client
	log        logger.Logger
	watcher    *watcher.ConfigWatcher
}

func (s *session) onInitialize(workspaceFolder string) {
	s.mu.Lock()
	s.workspaceFolder = workspaceFolder
	s.configPath = filepath.Join(workspaceFolder, configFileName)
	s.mu.Unlock()

	watch, err := watcher.New(s.configPath, s.reload, s.log)
	if err != nil {
		s.log.Info("could not watch %s for changes: %v", s.configPath, err)
	} else {
		s.mu.Lock()
		s.watcher = watch
		s.mu.Unlock()
	}

	go s.reload()
}

// stop tears down whatever background work this session started: the
// config watcher and the currently running explorer, if any.
func (s *session) stop() {
	s.mu.Lock()
	watch := s.watcher
	explorer := s.explorer
	libraryManager := s.libraryManager
	s.mu.Unlock()

	if watch != nil {
		watch.Stop()
	}
	if explorer != nil {
		explorer.Stop()
		explorer.Join()
	}
	if libraryManager != nil {
		libraryManager.Destroy()
	}
}

func (s *session) reload() {
	s.mu.Lock()
	configPath := s.configPath
	workspaceFolder := s.workspaceFolder
	oldExplorer := s.explorer
	oldLibraryManager := s.libraryManager
	s.mu.Unlock()

	root, err := config.Load(configPath)
	if err != nil {
		line, column := 1, 1
		var loadErr *config.LoadError
		if errors.As(err, &loadErr) {
			line, column = loadErr.Line, loadErr.Column
		}
		s.client.SendDiagnostics(configPath, []lspclient.Diagnostic{{Message: err.Error(), Line: line, Column: column}})
		root = &config.Root{}
	} else {
		s.client.SendDiagnostics(configPath, nil)
	}

	newLibraryManager := hdl.NewMemoryLibraryManager()
	newFilelist := index.NewFilelist()
	specs := root.FileSpecs()

	if oldExplorer != nil {
		oldExplorer.Stop()
		oldExplorer.Join()
	}

	diagnose := func(format string, args ...interface{}) {
		s.log.Info(format, args...)
	}

	newExplorer := index.StartExplorer(specs, workspaceFolder, numWorkers, hdl.RegexParser{}, newLibraryManager, newFilelist, diagnose, s.dispatcher, s.client.Gate())

	s.mu.Lock()
	if oldLibraryManager != nil {
		oldLibraryManager.Destroy()
	}
	s.libraryManager = newLibraryManager
	s.filelist = newFilelist
	s.explorer = newExplorer
	s.mu.Unlock()
}

func run(f *flags) error {
	appLogger := buildLogger(f)

	if f.replay != "" {
		return runReplay(f, appLogger)
	}
	return runStdio(f, appLogger)
}

func runStdio(f *flags, appLogger logger.Logger) error {
	t := transport.New(os.Stdin, os.Stdout)

	if f.journal != "" {
		jf, err := os.OpenFile(f.journal, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("opening journal file: %w", err)
		}
		defer jf.Close()
		t.SetTee(jf)
	}

	return driveSession(t, appLogger)
}

func runReplay(f *flags, appLogger logger.Logger) error {
	jf, err := os.Open(f.replay)
	if err != nil {
		return fmt.Errorf("opening replay journal: %w", err)
	}
	defer jf.Close()

	replayLog := log.New(logWriter{appLogger}, "", 0)
	harness, err := replay.NewHarness(jf, filepath.Dir(f.replay), replayLog)
	if err != nil {
		return fmt.Errorf("parsing replay journal: %w", err)
	}

	runErr := driveSession(harness, appLogger)

	counters := harness.Counters()
	fmt.Printf("replay: matches=%d ooo_matches=%d ignores=%d timeouts=%d\n",
		counters.Matches, counters.OOOMatches, counters.Ignores, counters.Timeouts)

	return runErr
}

// logWriter adapts a logger.Logger to an io.Writer so the replay harness's
// *log.Logger can be backed by the same sink as everything else.
type logWriter struct{ l logger.Logger }

func (w logWriter) Write(p []byte) (int, error) {
	w.l.Info("%s", strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func driveSession(t transport.Framer, appLogger logger.Logger) error {
	d := dispatch.New(t, appLogger)

	s := &session{dispatcher: d, log: appLogger}
	s.client = lspclient.New(d)

	srv := lspserver.New(d, appLogger, s.onInitialize)
	clean, err := srv.Run(nil)
	s.stop()

	// Exit status follows spec.md §7: 0 only on a clean initialize ->
	// shutdown -> exit handshake. A transport failure (including a plain
	// EOF from the peer closing the stream early) is not itself fatal
	// here — it's folded into the same "not clean" verdict.
	if clean {
		return nil
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("session ended without a clean initialize/shutdown/exit handshake")
}
