package swarm

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	v "github.com/cohesivestack/valgo"
	"github.com/theapemachine/bridge-go/pkg/errors"
	"github.com/theapemachine/bridge-go/pkg/stream"
)

const (
	maxObjectiveLen = 1000
	stderrPrefix    = "[ERR] "
)

// dangerousChars are the shell metacharacters and control characters an
// objective must never contain.  The objective is passed as a discrete argv
// element, never through a shell, but a downstream script could still feed
// it to one.
const dangerousChars = "`$|&;><\n\r"

/*
Runner spawns long-running agent processes and relays their combined output
as a normalized event stream.  The configured command is executed as-is with
the caller's objective appended as one discrete trailing argument.
*/
type Runner struct {
	bin  string
	args []string
}

type RunnerOption func(*Runner)

func NewRunner(options ...RunnerOption) *Runner {
	runner := &Runner{}

	for _, option := range options {
		option(runner)
	}

	return runner
}

// WithCommand sets the executable and its fixed leading arguments.
func WithCommand(bin string, args ...string) RunnerOption {
	return func(runner *Runner) {
		runner.bin = bin
		runner.args = args
	}
}

// validateObjective enforces the length and metacharacter rules, and also
// rejects blank objectives.  The child process would accept a blank argument,
// but the caller gets an immediate validation error instead of a spawned
// agent with nothing to do.
func validateObjective(objective string) error {
	val := v.Is(
		v.String(objective, "objective").
			Not().Blank().
			MaxLength(maxObjectiveLen).
			Passing(func(objective string) bool {
				return !strings.ContainsAny(objective, dangerousChars)
			}, "{{title}} must not contain shell metacharacters or control characters"),
	)

	if !val.Valid() {
		return errors.ErrValidation.WithMessagef("%v", val.Error())
	}

	return nil
}

/*
Spawn validates the objective, starts the agent process and returns the
event channel its output is relayed on.  Validation and spawn failures are
returned synchronously, before any process exists.

Three goroutines share nothing but the output channel and the process
handle: one per output stream forwarding complete lines (stderr lines
prefixed), and one that waits for both to drain, reaps the process and emits
exactly one terminal event carrying the exit status.  The interleaving of
stdout and stderr lines on the channel is unspecified; the terminal event is
always last.
*/
func (runner *Runner) Spawn(ctx context.Context, objective string) (<-chan stream.Event, error) {
	if err := validateObjective(objective); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, runner.bin, append(slices.Clone(runner.args), objective)...)

	stdout, err := cmd.StdoutPipe()

	if err != nil {
		return nil, errors.ErrTransport.WithMessagef("failed to open stdout: %v", err)
	}

	stderr, err := cmd.StderrPipe()

	if err != nil {
		return nil, errors.ErrTransport.WithMessagef("failed to open stderr: %v", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.ErrTransport.WithMessagef("failed to spawn agent: %v", err)
	}

	log.Info("agent spawned", "bin", runner.bin, "pid", cmd.Process.Pid)

	out := make(chan stream.Event)
	var readers sync.WaitGroup
	readers.Add(2)

	go forwardLines(stdout, "", out, &readers)
	go forwardLines(stderr, stderrPrefix, out, &readers)

	go func() {
		// Both pipes must be drained before Wait reaps the process; by
		// exit time the OS guarantees no further output is pending, so
		// the terminal event is always last.
		readers.Wait()

		var chunk string

		switch err := cmd.Wait(); {
		case err == nil:
			chunk = "\n[SWARM COMPLETED SUCCESSFULLY]\n"
		default:
			if exitErr, ok := err.(*exec.ExitError); ok {
				chunk = fmt.Sprintf("\n[SWARM EXITED WITH CODE: %d]\n", exitErr.ExitCode())
			} else {
				chunk = fmt.Sprintf("\n[SWARM ERROR: %s]\n", err)
			}
		}

		out <- stream.Event{Chunk: chunk, Done: true}
		close(out)
	}()

	return out, nil
}

// forwardLines relays complete lines from one pipe onto the shared channel.
func forwardLines(pipe io.Reader, prefix string, out chan<- stream.Event, readers *sync.WaitGroup) {
	defer readers.Done()

	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		out <- stream.Event{Chunk: prefix + scanner.Text() + "\n", Done: false}
	}

	if err := scanner.Err(); err != nil {
		log.Error("agent pipe read failed", "error", err)
	}
}
