package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rescale/webup/internal/pathutil"
	"github.com/rescale/webup/internal/progress"
	"github.com/rescale/webup/internal/watch"
)

const shellHelp = `Commands:
  ls                       show the current listing
  cd <path>                go to a folder (relative, absolute or ..)
  up                       go to the parent folder
  reload                   list the current folder again
  pwd                      print the current location
  mkdir <name>             create a folder here
  mv <name> <new-name>     rename a file or folder here (alias: rename)
  rm <name>                delete a file or folder here
  put <file...>            queue local files for upload into the current folder
  queue                    show the upload queue
  abort <n|all>            abort a queued or uploading task
  wait                     block until the upload queue drains
  get <name> [local]       download a file
  watch <local-dir>        upload files dropped into a local folder
  unwatch                  stop watching
  alerts                   show alerts, most recent first
  dismiss <n|all>          dismiss an alert
  help                     show this help
  exit                     leave the shell (aborts pending uploads)
`

// newShellCmd creates the 'shell' command.
func newShellCmd() *cobra.Command {
	var start string

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive session with a current location and upload queue",
		Long: `Open an interactive session. The session keeps a current location,
lists it after every change, and uploads files in the background while you
keep browsing. Type "help" inside the shell for the command list.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				in, out, restore := openTerminal(cmd.InOrStdin(), cmd.OutOrStdout())
				defer restore()

				sh := newShell(s, in, out)
				return sh.run(ctx, pathutil.Resolve(pathutil.Root, start))
			})
		},
	}

	cmd.Flags().StringVarP(&start, "path", "p", pathutil.Root, "Initial location")

	return cmd
}

// lineReader yields one command line at a time
type lineReader interface {
	ReadLine() (string, error)
	SetPrompt(prompt string)
}

// scanReader reads lines from a pipe or file, printing the prompt itself
type scanReader struct {
	scanner *bufio.Scanner
	out     io.Writer
	prompt  string
}

func (r *scanReader) SetPrompt(prompt string) { r.prompt = prompt }

func (r *scanReader) ReadLine() (string, error) {
	fmt.Fprint(r.out, r.prompt)
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

// openTerminal uses an x/term line editor when both ends are a terminal and
// plain line scanning otherwise. The returned writer is safe for concurrent use.
func openTerminal(stdin io.Reader, stdout io.Writer) (lineReader, io.Writer, func()) {
	inFile, inOK := stdin.(*os.File)
	outFile, outOK := stdout.(*os.File)
	if inOK && outOK && term.IsTerminal(int(inFile.Fd())) && term.IsTerminal(int(outFile.Fd())) {
		if state, err := term.MakeRaw(int(inFile.Fd())); err == nil {
			t := term.NewTerminal(struct {
				io.Reader
				io.Writer
			}{inFile, outFile}, "")
			return t, t, func() { _ = term.Restore(int(inFile.Fd()), state) }
		}
	}

	out := &lockedWriter{w: stdout}
	return &scanReader{scanner: bufio.NewScanner(stdin), out: out}, out, func() {}
}

type shell struct {
	s    *session
	in   lineReader
	out  io.Writer
	ui   *progress.QueueUI
	last string // location whose breadcrumbs were printed last

	stopWatch context.CancelFunc
}

func newShell(s *session, in lineReader, out io.Writer) *shell {
	return &shell{
		s:   s,
		in:  in,
		out: out,
		ui:  progress.NewQueueLog(out, s.bus),
	}
}

type readResult struct {
	line string
	err  error
}

func (sh *shell) run(ctx context.Context, start string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sh.ui.Start()
	defer sh.ui.Stop()
	defer sh.unwatch()

	if err := sh.s.engine.Navigate(ctx, start); err == nil {
		sh.showLocation()
		sh.printListing()
	}

	// Reads happen off the main goroutine so Ctrl+C can interrupt a blocked
	// read; each read waits for the previous command to finish.
	prompts := make(chan string)
	results := make(chan readResult, 1)
	defer close(prompts)
	go func() {
		for prompt := range prompts {
			sh.in.SetPrompt(prompt)
			line, err := sh.in.ReadLine()
			results <- readResult{line, err}
			if err != nil {
				return
			}
		}
	}()

	for {
		prompts <- fmt.Sprintf("webup:%s> ", sh.s.engine.Location())

		select {
		case <-ctx.Done():
			fmt.Fprintln(sh.out)
			return nil
		case r := <-results:
			if r.err != nil {
				if errors.Is(r.err, io.EOF) {
					return nil
				}
				return r.err
			}
			if quit := sh.execute(ctx, r.line); quit {
				return nil
			}
			sh.showLocation()
		}
	}
}

// execute runs one command line and reports whether the shell should exit.
// Engine and queue failures are already shown as alerts, so only usage
// errors are printed here.
func (sh *shell) execute(ctx context.Context, line string) bool {
	args, err := splitArgs(line)
	if err != nil {
		sh.errorf("%v", err)
		return false
	}
	if len(args) == 0 {
		return false
	}
	engine := sh.s.engine
	name, args := args[0], args[1:]

	switch name {
	case "exit", "quit":
		return true

	case "help", "?":
		fmt.Fprint(sh.out, shellHelp)

	case "pwd":
		fmt.Fprintln(sh.out, engine.Location())

	case "ls":
		sh.printListing()

	case "cd":
		target := pathutil.Root
		if len(args) > 0 {
			target = pathutil.Resolve(engine.Location(), args[0])
		}
		if engine.Navigate(ctx, target) == nil {
			sh.printListing()
		}

	case "up", "..":
		if engine.Up(ctx) == nil {
			sh.printListing()
		}

	case "reload", "refresh":
		if engine.Reload(ctx) == nil {
			sh.printListing()
		}

	case "mkdir":
		if !sh.wantArgs(args, 1, "mkdir <name>") {
			break
		}
		_ = engine.CreateFolder(ctx, args[0])
		sh.printListing()

	case "mv", "rename":
		if !sh.wantArgs(args, 2, "mv <name> <new-name>") {
			break
		}
		entry, ok := engine.Lookup(args[0])
		if !ok {
			sh.errorf("%s: no such file or folder", args[0])
			break
		}
		_ = engine.Rename(ctx, entry, args[1])
		sh.printListing()

	case "rm":
		if !sh.wantArgs(args, 1, "rm <name>") {
			break
		}
		entry, ok := engine.Lookup(args[0])
		if !ok {
			sh.errorf("%s: no such file or folder", args[0])
			break
		}
		_ = engine.Delete(ctx, entry)
		sh.printListing()

	case "put", "upload":
		if len(args) == 0 {
			sh.errorf("usage: put <file...>")
			break
		}
		sources, err := localSources(args)
		if err != nil {
			sh.errorf("%v", err)
			break
		}
		target := engine.Location()
		tasks := sh.s.uploads().Enqueue(sources, target)
		fmt.Fprintf(sh.out, "Queued %d file(s) for %s\n", len(tasks), target)

	case "queue":
		sh.printQueue()

	case "abort":
		if !sh.wantArgs(args, 1, "abort <n|all>") {
			break
		}
		sh.abort(args[0])

	case "wait":
		if err := sh.s.uploads().Wait(ctx); err != nil {
			sh.errorf("%v", err)
		}

	case "get", "download":
		if len(args) < 1 || len(args) > 2 {
			sh.errorf("usage: get <name> [local]")
			break
		}
		local := ""
		if len(args) == 2 {
			local = args[1]
		}
		remote := pathutil.ResolveFile(engine.Location(), args[0])
		if dest, err := downloadFile(ctx, sh.s, remote, local, progress.NewTextProgress(sh.out)); err == nil {
			fmt.Fprintf(sh.out, "Saved %s\n", dest)
		}

	case "watch":
		if !sh.wantArgs(args, 1, "watch <local-dir>") {
			break
		}
		sh.watch(ctx, args[0])

	case "unwatch":
		sh.unwatch()

	case "alerts":
		sh.printAlerts()

	case "dismiss":
		if !sh.wantArgs(args, 1, "dismiss <n|all>") {
			break
		}
		sh.dismiss(args[0])

	default:
		sh.errorf("unknown command %q (type help)", name)
	}
	return false
}

// showLocation prints the breadcrumbs when the location moved
func (sh *shell) showLocation() {
	loc := sh.s.engine.Location()
	if loc == sh.last {
		return
	}
	sh.last = loc
	writeBreadcrumbs(sh.out, sh.s.engine.Breadcrumbs())
}

func (sh *shell) printListing() {
	writeTable(sh.out, sh.s.engine.Entries())
}

func (sh *shell) printQueue() {
	tasks := sh.s.uploads().Tasks()
	if len(tasks) == 0 {
		fmt.Fprintln(sh.out, "Queue is empty")
		return
	}
	for i, t := range tasks {
		fmt.Fprintf(sh.out, "%d. [%s] %s → %s  %.0f%%\n", i+1, t.State, t.Name, t.Target, t.Progress*100)
	}
	stats := sh.s.uploads().Stats()
	fmt.Fprintf(sh.out, "%d pending, %s of %s sent\n", stats.Pending(), formatSize(stats.SentBytes), formatSize(stats.TotalBytes))
}

func (sh *shell) abort(arg string) {
	queue := sh.s.uploads()
	if arg == "all" {
		queue.AbortAll()
		return
	}
	tasks := queue.Tasks()
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(tasks) {
		sh.errorf("no task %s (see queue)", arg)
		return
	}
	if err := queue.Abort(tasks[n-1].ID); err != nil {
		sh.errorf("%v", err)
	}
}

func (sh *shell) printAlerts() {
	list := sh.s.sink.List()
	if len(list) == 0 {
		fmt.Fprintln(sh.out, "No alerts")
		return
	}
	for i, a := range list {
		fmt.Fprintf(sh.out, "%d. [%s] %s %s: %s\n", i+1, a.Severity, a.Time.Format(time.TimeOnly), a.Title, a.Description)
	}
}

func (sh *shell) dismiss(arg string) {
	if arg == "all" {
		sh.s.sink.Clear()
		return
	}
	n, err := strconv.Atoi(arg)
	if err != nil {
		sh.errorf("no alert %s (see alerts)", arg)
		return
	}
	if err := sh.s.sink.Dismiss(n - 1); err != nil {
		sh.errorf("no alert %s (see alerts)", arg)
	}
}

// watch uploads files dropped into dir into whatever folder is current when
// each file settles.
func (sh *shell) watch(ctx context.Context, dir string) {
	local, err := pathutil.ResolveLocalPath(dir)
	if err != nil {
		sh.errorf("%v", err)
		return
	}
	w, err := watch.New(local, sh.s.engine.Location, sh.s.uploads(), watch.Options{Logger: sh.s.logger})
	if err != nil {
		sh.errorf("%v", err)
		return
	}

	sh.unwatch()
	watchCtx, cancel := context.WithCancel(ctx)
	sh.stopWatch = cancel
	go func() {
		if err := w.Run(watchCtx); err != nil {
			sh.s.logger.Warn().Err(err).Str("dir", local).Msg("Watcher stopped")
		}
	}()
	fmt.Fprintf(sh.out, "Watching %s\n", local)
}

func (sh *shell) unwatch() {
	if sh.stopWatch != nil {
		sh.stopWatch()
		sh.stopWatch = nil
	}
}

func (sh *shell) wantArgs(args []string, n int, usage string) bool {
	if len(args) != n {
		sh.errorf("usage: %s", usage)
		return false
	}
	return true
}

func (sh *shell) errorf(format string, args ...interface{}) {
	fmt.Fprintf(sh.out, "error: "+format+"\n", args...)
}

// splitArgs splits a command line on spaces, honoring single quotes, double
// quotes and backslash escapes so names with spaces can be typed.
func splitArgs(line string) ([]string, error) {
	var args []string
	var cur strings.Builder
	var quote rune
	inArg, escaped := false, false

	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inArg = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inArg = true
		case r == ' ' || r == '\t':
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteRune(r)
			inArg = true
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if escaped {
		return nil, errors.New("trailing backslash")
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args, nil
}
