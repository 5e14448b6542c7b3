package generator

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"

	hosterr "git.home.luguber.info/inful/docshost/internal/errors"
)

// command is one subprocess invocation of a generator, with any extra
// environment it needs on top of the inherited one.
type command struct {
	argv []string
	env  []string
}

// runStreaming executes argv in dir, forwarding every stdout and stderr line
// to sink as it is produced. extraEnv is appended to the inherited
// environment. The returned error is a buildtool failure when the process
// exits non-zero, after all output has been drained.
func runStreaming(ctx context.Context, dir string, argv, extraEnv []string, sink OutputSink) error {
	if len(argv) == 0 {
		return fmt.Errorf("empty build command")
	}
	if sink == nil {
		sink = func(string) {}
	}

	// #nosec G204 - argv comes from a fixed per-generator command table
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	if len(extraEnv) > 0 {
		cmd.Env = append(os.Environ(), extraEnv...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("open stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return hosterr.BuildToolFailure(fmt.Sprintf("start %s", argv[0]), err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	emit := func(line string) {
		mu.Lock()
		sink(line)
		mu.Unlock()
	}
	for _, r := range []struct {
		name string
		pipe interface{ Read([]byte) (int, error) }
	}{{"stdout", stdout}, {"stderr", stderr}} {
		wg.Add(1)
		go func(pipe interface{ Read([]byte) (int, error) }) {
			defer wg.Done()
			sc := bufio.NewScanner(pipe)
			sc.Buffer(make([]byte, 64*1024), 1024*1024)
			for sc.Scan() {
				emit(sc.Text())
			}
		}(r.pipe)
	}
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", argv[0], ctx.Err())
		}
		return hosterr.BuildToolFailure(fmt.Sprintf("%s exited with error", argv[0]), err)
	}
	return nil
}
