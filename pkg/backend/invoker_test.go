//go:build !windows
// +build !windows

package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"meep/fpgarelay/pkg/config"

	"golang.org/x/sys/unix"
)

func shInvoker(timeout time.Duration, script string, extra ...string) *Invoker {
	args := append([]string{"-c", script, "sh"}, extra...)
	return New(&config.Backend{Program: "/bin/sh", Args: args, Timeout: timeout}, nil)
}

// processAlive treats zombies as dead, a container's pid 1 may never reap them.
func processAlive(pid int) bool {
	if err := unix.Kill(pid, 0); errors.Is(err, unix.ESRCH) {
		return false
	}
	stat, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return !os.IsNotExist(err)
	}
	fields := strings.Fields(string(stat[strings.LastIndexByte(string(stat), ')')+1:]))
	return len(fields) == 0 || fields[0] != "Z"
}

func TestInvoke_DoublesPayload(t *testing.T) {
	t.Parallel()

	inv := shInvoker(5*time.Second, `read v; echo $((v * 2))`)

	for _, v := range []int{0, 1, 21, -7, 123456789} {
		o := inv.Invoke(context.Background(), strconv.Itoa(v))
		if o.Kind != KindOK {
			t.Fatalf("Invoke(%d) = %s, want ok", v, o)
		}
		if o.Output != strconv.Itoa(v*2) {
			t.Errorf("Invoke(%d) output = %q, want %q", v, o.Output, strconv.Itoa(v*2))
		}
	}
}

func TestInvoke_PlaceholderArgument(t *testing.T) {
	t.Parallel()

	inv := shInvoker(5*time.Second, `echo $(($1 * 2))`, config.PayloadPlaceholder)

	o := inv.Invoke(context.Background(), "21")
	if o.Kind != KindOK || o.Output != "42" {
		t.Errorf("Invoke() = %s, want ok(42)", o)
	}
}

func TestInvoke_PayloadIsNotShellSyntax(t *testing.T) {
	t.Parallel()

	marker := filepath.Join(t.TempDir(), "pwned")
	payload := fmt.Sprintf("'; touch %s; echo '$(touch %s)", marker, marker)

	tests := []struct {
		name string
		inv  *Invoker
	}{
		{"stdin", shInvoker(5*time.Second, `IFS= read -r v; printf '%s\n' "$v"`)},
		{"argument", shInvoker(5*time.Second, `printf '%s\n' "$1"`, config.PayloadPlaceholder)},
	}

	for _, tc := range tests {
		o := tc.inv.Invoke(context.Background(), payload)
		if o.Kind != KindOK {
			t.Fatalf("%s: Invoke() = %s, want ok", tc.name, o)
		}
		if o.Output != payload {
			t.Errorf("%s: output = %q, want payload echoed verbatim", tc.name, o.Output)
		}
	}

	if _, err := os.Stat(marker); err == nil {
		t.Error("payload was executed as shell code")
	}
}

func TestInvoke_NonZeroExit(t *testing.T) {
	t.Parallel()

	inv := shInvoker(5*time.Second, `echo "bad input" >&2; exit 3`)

	o := inv.Invoke(context.Background(), "21")
	if o.Kind != KindNonZeroExit {
		t.Fatalf("Invoke() = %s, want nonzero exit", o)
	}
	if o.Stderr != "bad input" {
		t.Errorf("stderr = %q, want %q", o.Stderr, "bad input")
	}
	if o.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", o.ExitCode)
	}
}

func TestInvoke_TimeoutKillsProcessTree(t *testing.T) {
	t.Parallel()

	pidFile := filepath.Join(t.TempDir(), "child.pid")
	inv := shInvoker(300*time.Millisecond, `sleep 30 & echo $! > "$1"; wait`, pidFile)

	start := time.Now()
	o := inv.Invoke(context.Background(), "21")
	elapsed := time.Since(start)

	if o.Kind != KindTimeout {
		t.Fatalf("Invoke() = %s, want timeout", o)
	}
	if elapsed > 5*time.Second {
		t.Errorf("Invoke() took %v, want about 300ms", elapsed)
	}

	data, err := os.ReadFile(pidFile)
	if err != nil {
		t.Fatalf("reading child pid: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("parsing child pid %q: %v", data, err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for processAlive(pid) {
		if time.Now().After(deadline) {
			t.Fatalf("grandchild pid %d still running after timeout", pid)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestInvoke_MissingProgram(t *testing.T) {
	t.Parallel()

	inv := New(&config.Backend{Program: "/nonexistent/fpga/ssh", Timeout: time.Second}, nil)

	o := inv.Invoke(context.Background(), "21")
	if o.Kind != KindInvocationError {
		t.Fatalf("Invoke() = %s, want invocation error", o)
	}
	if !strings.Contains(o.Message, "no such file") {
		t.Errorf("message = %q, want it to mention the missing file", o.Message)
	}
}

func TestInvoke_RejectsMultiLinePayload(t *testing.T) {
	t.Parallel()

	inv := shInvoker(time.Second, `cat`)

	for _, p := range []string{"21\n22", "21\r", "2\x001"} {
		o := inv.Invoke(context.Background(), p)
		if o.Kind != KindInvocationError {
			t.Errorf("Invoke(%q) = %s, want invocation error", p, o)
		}
	}
}

func TestInvoke_ContextCancelled(t *testing.T) {
	t.Parallel()

	inv := shInvoker(10*time.Second, `sleep 30`)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	o := inv.Invoke(ctx, "21")
	if o.Kind != KindInvocationError {
		t.Fatalf("Invoke() = %s, want invocation error", o)
	}
	if !strings.HasPrefix(o.Message, "cancelled") {
		t.Errorf("message = %q, want cancelled", o.Message)
	}
}

func TestInvoke_DirAndEnv(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	inv := New(&config.Backend{
		Program: "/bin/sh",
		Args:    []string{"-c", `echo "$FPGA_BOARD $(pwd -P)"`},
		Dir:     dir,
		Env:     []string{"FPGA_BOARD=u55c"},
		Timeout: 5 * time.Second,
	}, nil)

	o := inv.Invoke(context.Background(), "21")
	if o.Kind != KindOK {
		t.Fatalf("Invoke() = %s, want ok", o)
	}

	realDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatal(err)
	}
	if want := "u55c " + realDir; o.Output != want {
		t.Errorf("output = %q, want %q", o.Output, want)
	}
}

func TestInvoke_Concurrent(t *testing.T) {
	t.Parallel()

	inv := shInvoker(10*time.Second, `read v; sleep 0.1; echo $((v * 2))`)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			o := inv.Invoke(context.Background(), strconv.Itoa(v))
			if o.Kind != KindOK || o.Output != strconv.Itoa(v*2) {
				t.Errorf("Invoke(%d) = %s", v, o)
			}
		}(i)
	}
	wg.Wait()
}

func TestInvoke_LargeOutputIsCapped(t *testing.T) {
	t.Parallel()

	inv := shInvoker(10*time.Second, `head -c 1000000 /dev/zero | tr '\0' x`)

	o := inv.Invoke(context.Background(), "21")
	if o.Kind != KindOK {
		t.Fatalf("Invoke() = %s, want ok", o)
	}
	if len(o.Output) != maxCapture {
		t.Errorf("output length = %d, want %d", len(o.Output), maxCapture)
	}
}
