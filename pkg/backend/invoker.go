// Package backend runs the external command that processes a payload and
// classifies how it ended.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"meep/fpgarelay/pkg/config"
	"meep/fpgarelay/pkg/log"
)

// maxCapture bounds how much of each output stream is kept.
const maxCapture = 64 << 10

// waitDelay bounds pipe draining once the process is gone.
const waitDelay = 2 * time.Second

// Invoker runs the configured backend command once per payload.
// Invocations are independent; an Invoker is safe for concurrent use.
type Invoker struct {
	tmpl    Template
	dir     string
	env     []string
	timeout time.Duration
	logger  *log.Logger
}

// New returns an Invoker for cfg.
func New(cfg *config.Backend, logger *log.Logger) *Invoker {
	return &Invoker{
		tmpl:    Template{Program: cfg.Program, Args: append([]string(nil), cfg.Args...)},
		dir:     cfg.Dir,
		env:     append([]string(nil), cfg.Env...),
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// Invoke runs the command for payload and waits for it, at most for the
// configured timeout. On timeout the whole process group is killed.
// Cancelling ctx kills it as well but is reported as an invocation error.
func (inv *Invoker) Invoke(ctx context.Context, payload string) Outcome {
	start := time.Now()
	o := inv.invoke(ctx, payload)
	o.Duration = time.Since(start)
	return o
}

func (inv *Invoker) invoke(ctx context.Context, payload string) Outcome {
	if strings.ContainsAny(payload, "\r\n\x00") {
		return InvocationError("payload must be a single line")
	}

	argv, stdin := inv.tmpl.Build(payload)

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = inv.dir
	if len(inv.env) > 0 {
		cmd.Env = append(os.Environ(), inv.env...)
	}
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	stdout := &cappedBuffer{max: maxCapture}
	stderr := &cappedBuffer{max: maxCapture}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	runCtx, cancel := context.WithTimeout(ctx, inv.timeout)
	defer cancel()

	if err := cmd.Start(); err != nil {
		return InvocationError(err.Error())
	}
	inv.logger.VerboseMsg("Started %s (pid %d)", argv[0], cmd.Process.Pid)

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		return classify(err, cmd, stdout.String(), stderr.String())

	case <-runCtx.Done():
		if err := killProcessGroup(cmd); err != nil {
			inv.logger.ErrorMsg("killing backend pid %d: %s", cmd.Process.Pid, err)
		}
		<-done

		if ctx.Err() != nil {
			return InvocationError(fmt.Sprintf("cancelled: %s", ctx.Err()))
		}
		return Timeout()
	}
}

func classify(err error, cmd *exec.Cmd, stdout, stderr string) Outcome {
	var exitErr *exec.ExitError

	switch {
	case err == nil:
		return OK(firstLine(stdout))

	case errors.As(err, &exitErr):
		return NonZeroExit(oneLine(stderr), exitErr.ExitCode())

	case errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil:
		// a leftover child held the pipes open, the process itself is done
		if cmd.ProcessState.Success() {
			return OK(firstLine(stdout))
		}
		return NonZeroExit(oneLine(stderr), cmd.ProcessState.ExitCode())

	default:
		return InvocationError(err.Error())
	}
}

// firstLine returns the first line of the trimmed output.
func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	return s
}

// oneLine joins the non-blank lines of s with single spaces.
func oneLine(s string) string {
	var parts []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, " ")
}

// cappedBuffer keeps the first max bytes and swallows the rest, so a chatty
// backend can neither block on a full pipe nor grow memory without bound.
type cappedBuffer struct {
	buf bytes.Buffer
	max int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}
