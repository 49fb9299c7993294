package main

import (
	"context"
	"fmt"
	"os"

	dserrors "github.com/nimec77/deepseek-agents/internal/shared/errors"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], defaultCLIEnv()))
}

// run executes the root command and returns the process exit code.
func run(ctx context.Context, args []string, env cliEnv) int {
	cmd := newRootCommand(env)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	if !alreadyReported(err) {
		fmt.Fprintf(env.stderr, "Error: %s\n", dserrors.UserMessage(err))
	}
	return exitCodeFor(err)
}
