// Package exec walks the dependency graph bottom-up, decides staleness from
// file timestamps and runs recipe commands through a shell.
package exec

import (
	"bytes"
	"fmt"
	"io"
	"os"
	osexec "os/exec"
	"sync"
	"sync/atomic"
	"time"

	"src.kati.dev/pkg/dep"
	"src.kati.dev/pkg/diag"
	"src.kati.dev/pkg/eval"
	"src.kati.dev/pkg/fsutil"
	"src.kati.dev/pkg/logutil"
)

var logger = logutil.GetLogger("[exec] ")

// Error is a recipe failure or an unbuildable target.
type Error struct {
	Msg  string
	Code int
}

func (e *Error) Error() string { return e.Msg }

// Options configures an Executor.
type Options struct {
	// Maximum number of concurrently running commands. Values below 2 give
	// fully serial execution.
	NumJobs int
	// Print commands without running them.
	DryRun bool
	// Echo no commands, not even @-less ones. Recipe output is still shown.
	Silent bool
	// Where echoed commands and recipe stdout go. Defaults to os.Stdout.
	Output io.Writer
}

// Executor runs the recipes of a dependency graph. It may be used for one
// graph walk only.
type Executor struct {
	ev   *eval.Evaler
	opts Options

	// Serializes expansion: recipes expand against the shared variable
	// environment, with target-scoped frames pushed per node.
	evalMu sync.Mutex
	jobSem chan struct{}
	pg     *procGroup

	mu      sync.Mutex
	states  map[*dep.DepNode]*nodeState
	numRuns int64

	outMu sync.Mutex
	out   io.Writer
}

// result is what a finished node reports upward: its effective timestamp,
// whether its output exists, and whether any command ran for it.
type result struct {
	ts     time.Time
	exists bool
	ran    bool
}

type nodeState struct {
	doneCh chan struct{}
	result
	err error
}

// NewExecutor returns an Executor over the given evaluation environment.
func NewExecutor(ev *eval.Evaler, opts Options) *Executor {
	jobs := opts.NumJobs
	if jobs < 1 {
		jobs = 1
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	return &Executor{
		ev:     ev,
		opts:   opts,
		jobSem: make(chan struct{}, jobs),
		states: make(map[*dep.DepNode]*nodeState),
		out:    out,
	}
}

// Exec builds every root in order. It reports targets for which nothing
// needed to be done.
func (ex *Executor) Exec(roots []*dep.DepNode) error {
	ex.pg = newProcGroup()
	defer ex.pg.close()
	for _, root := range roots {
		before := atomic.LoadInt64(&ex.numRuns)
		if _, err := ex.execNode(root, "", map[*dep.DepNode]bool{}); err != nil {
			return err
		}
		if sig := ex.pg.interrupted(); sig != nil {
			return &Error{Msg: "*** Interrupt", Code: 130}
		}
		if atomic.LoadInt64(&ex.numRuns) == before {
			fmt.Fprintf(ex.out, "kati: Nothing to be done for `%s'.\n", root.Output)
		}
	}
	return nil
}

// execNode memoises per node: the first walker computes, concurrent walkers
// block on the completion channel. Observing the in-progress sentinel from
// the same walk path is a dependency cycle, which is dropped with a warning.
func (ex *Executor) execNode(n *dep.DepNode, neededBy string, path map[*dep.DepNode]bool) (result, error) {
	ex.mu.Lock()
	if st, ok := ex.states[n]; ok {
		ex.mu.Unlock()
		if path[n] {
			diag.Complainf("Circular %s <- %s dependency dropped.", neededBy, n.Output)
			return result{}, nil
		}
		<-st.doneCh
		return st.result, st.err
	}
	st := &nodeState{doneCh: make(chan struct{})}
	ex.states[n] = st
	ex.mu.Unlock()

	st.result, st.err = ex.process(n, neededBy, path)
	close(st.doneCh)
	return st.result, st.err
}

func (ex *Executor) process(n *dep.DepNode, neededBy string, path map[*dep.DepNode]bool) (result, error) {
	path[n] = true
	defer delete(path, n)

	// Order-only prerequisites: mere existence satisfies them.
	for _, oo := range n.OrderOnlys {
		if fsutil.Exists(oo.Output) {
			continue
		}
		if _, err := ex.execNode(oo, n.Output, path); err != nil {
			return result{}, err
		}
	}

	children, err := ex.execDeps(n, path)
	if err != nil {
		return result{}, err
	}
	var latest time.Time
	childStale := false
	for i, r := range children {
		if r.ts.After(latest) {
			latest = r.ts
		}
		// A remade prerequisite dirties the target, except a restat one,
		// whose post-build mtime decides instead.
		if n.Deps[i].IsPhony || r.ran && !n.Deps[i].IsRestat {
			childStale = true
		}
	}

	outTs, outExists := fsutil.Mtime(n.Output)
	if !n.IsPhony && !childStale && outExists && !outTs.Before(latest) {
		logger.Printf("%s is up to date", n.Output)
		return result{ts: outTs, exists: true}, nil
	}
	if !outExists && !n.HasRule && !n.IsPhony {
		if neededBy != "" {
			return result{}, &Error{
				Msg:  fmt.Sprintf("*** No rule to make target `%s', needed by `%s'.", n.Output, neededBy),
				Code: 1,
			}
		}
		return result{}, &Error{
			Msg:  fmt.Sprintf("*** No rule to make target `%s'.", n.Output),
			Code: 1,
		}
	}

	for _, v := range n.Validations {
		if _, err := ex.execNode(v, n.Output, path); err != nil {
			return result{}, err
		}
	}

	ran, err := ex.runCommands(n)
	if err != nil {
		return result{}, err
	}
	newTs, newExists := fsutil.Mtime(n.Output)
	if !newExists {
		newTs = time.Now()
	}
	return result{ts: newTs, exists: newExists, ran: ran}, nil
}

// execDeps builds the regular prerequisites, in parallel when -j allows it.
// Each goroutine gets its own copy of the walk path so that cross-walk waits
// are not mistaken for cycles.
func (ex *Executor) execDeps(n *dep.DepNode, path map[*dep.DepNode]bool) ([]result, error) {
	results := make([]result, len(n.Deps))
	if ex.opts.NumJobs <= 1 || len(n.Deps) <= 1 {
		for i, d := range n.Deps {
			r, err := ex.execNode(d, n.Output, path)
			if err != nil {
				return nil, err
			}
			results[i] = r
		}
		return results, nil
	}

	errs := make([]error, len(n.Deps))
	var wg sync.WaitGroup
	for i, d := range n.Deps {
		i, d := i, d
		branch := clonePath(path)
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = ex.execNode(d, n.Output, branch)
		}()
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func clonePath(path map[*dep.DepNode]bool) map[*dep.DepNode]bool {
	cp := make(map[*dep.DepNode]bool, len(path))
	for k, v := range path {
		cp[k] = v
	}
	return cp
}

// runCommands expands and runs the node's recipe. Expansion happens under
// the evaluator lock with the target-scoped and automatic variables pushed;
// the resulting commands then run serially for this node, with the global
// job limit applied per command.
func (ex *Executor) runCommands(n *dep.DepNode) (bool, error) {
	if len(n.Cmds) == 0 {
		return false, nil
	}
	var cmds []runnable
	ex.evalMu.Lock()
	scope := n.RuleVars
	if scope == nil {
		scope = eval.Vars{}
	}
	err := ex.ev.WithScope(scope, func() error {
		return ex.ev.WithScope(ex.autoVars(n), func() error {
			for _, cv := range n.Cmds {
				s, err := ex.ev.Value(cv)
				if err != nil {
					return err
				}
				for _, line := range splitCommand(s) {
					r := parsePrefixes(line)
					if r.cmd == "" {
						continue
					}
					cmds = append(cmds, r)
				}
			}
			return nil
		})
	})
	var env []string
	var shell string
	if err == nil {
		env = ex.ev.CommandEnv()
		shell = ex.ev.Shell()
	}
	ex.evalMu.Unlock()
	if err != nil {
		return false, err
	}

	for _, r := range cmds {
		if err := ex.runOne(n, r, shell, env); err != nil {
			return true, err
		}
	}
	return len(cmds) > 0, nil
}

// runOne executes a single command. The echoed command line and the
// command's stdout are staged in a buffer and flushed atomically, so that
// parallel jobs do not scramble each other's output.
func (ex *Executor) runOne(n *dep.DepNode, r runnable, shell string, env []string) error {
	var buf bytes.Buffer
	if !ex.opts.Silent && (!r.noEcho || ex.opts.DryRun) {
		fmt.Fprintln(&buf, r.cmd)
	}
	if ex.opts.DryRun && !r.alwaysRun {
		ex.flush(&buf)
		atomic.AddInt64(&ex.numRuns, 1)
		return nil
	}

	ex.jobSem <- struct{}{}
	defer func() { <-ex.jobSem }()

	logger.Printf("[%s] %s", n.Output, r.cmd)
	cmd := osexec.Command(shell, "-c", r.cmd)
	cmd.Stdin = os.Stdin
	cmd.Stdout = &buf
	cmd.Stderr = os.Stderr
	cmd.Env = env
	ex.pg.setup(cmd)
	if err := cmd.Start(); err != nil {
		ex.flush(&buf)
		return &Error{Msg: fmt.Sprintf("*** [%s] %s", n.Output, err), Code: 127}
	}
	ex.pg.add(cmd)
	err := cmd.Wait()
	ex.pg.remove(cmd)
	atomic.AddInt64(&ex.numRuns, 1)
	ex.flush(&buf)
	if err != nil {
		code := exitStatus(err)
		if r.ignoreError {
			fmt.Fprintf(os.Stderr, "kati: [%s] Error %d (ignored)\n", n.Output, code)
			return nil
		}
		return &Error{Msg: fmt.Sprintf("*** [%s] Error %d", n.Output, code), Code: code}
	}
	return nil
}

func (ex *Executor) flush(buf *bytes.Buffer) {
	if buf.Len() == 0 {
		return
	}
	ex.outMu.Lock()
	defer ex.outMu.Unlock()
	ex.out.Write(buf.Bytes())
}
