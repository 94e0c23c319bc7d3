package notify

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
)

// maxConcurrentNotifications bounds how many notification commands can run
// at once, so a notification storm (e.g. every contact on every service
// going critical at once) can't fork unbounded shell processes.
const maxConcurrentNotifications = 32

// CommandExecutor runs notification commands.
type CommandExecutor struct {
	Timeout time.Duration
	sem     *semaphore.Weighted
}

// NewCommandExecutor creates a new executor with the given timeout.
func NewCommandExecutor(timeout time.Duration) *CommandExecutor {
	return &CommandExecutor{
		Timeout: timeout,
		sem:     semaphore.NewWeighted(maxConcurrentNotifications),
	}
}

// Execute runs a notification command asynchronously and returns immediately.
// The command is run via /bin/sh -c once a pool slot is free.
func (e *CommandExecutor) Execute(cmdLine string) {
	go func() {
		if err := e.sem.Acquire(context.Background(), 1); err != nil {
			return
		}
		defer e.sem.Release(1)
		e.run(cmdLine)
	}()
}

// ExecuteSync runs a notification command synchronously. Used for testing.
func (e *CommandExecutor) ExecuteSync(cmdLine string) error {
	if err := e.sem.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer e.sem.Release(1)
	return e.run(cmdLine)
}

func (e *CommandExecutor) run(cmdLine string) error {
	timeout := e.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", cmdLine)
	return cmd.Run()
}

// ExpandMacros does simple macro substitution in a command line.
// The macros map provides $MACRO$ -> value mappings (without the $ delimiters).
func ExpandMacros(cmdLine string, macros map[string]string) string {
	result := cmdLine
	for k, v := range macros {
		result = strings.ReplaceAll(result, "$"+k+"$", v)
	}
	return result
}
