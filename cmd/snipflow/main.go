// Command snipflow runs the entitlement and metering API and its
// administrative tasks.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"
)

// command is a node of the CLI tree. Leaf commands have Run, groups have
// subcommands.
type command struct {
	name        string
	description string
	run         func(ctx context.Context, args []string, out io.Writer) error
	subcommands []*command
}

func rootCommand() *command {
	return &command{
		name:        "snipflow",
		description: "Plan entitlement and usage metering service",
		subcommands: []*command{
			serveCommand(),
			migrateCommand(),
			principalCommand(),
			keysCommand(),
		},
	}
}

func (c *command) execute(ctx context.Context, args []string, out io.Writer) error {
	if len(c.subcommands) == 0 {
		return c.run(ctx, args, out)
	}
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		c.usage(out)
		return nil
	}

	i := slices.IndexFunc(c.subcommands, func(s *command) bool { return s.name == args[0] })
	if i < 0 {
		c.usage(out)
		return fmt.Errorf("unknown command %q", args[0])
	}
	return c.subcommands[i].execute(ctx, args[1:], out)
}

func (c *command) usage(out io.Writer) {
	fmt.Fprintf(out, "Usage: %s <command> [flags]\n\n%s\n\nCommands:\n", c.name, c.description)
	for _, s := range c.subcommands {
		fmt.Fprintf(out, "  %-12s %s\n", s.name, s.description)
	}
}

// newFlagSet returns a flag set that reports errors instead of exiting.
func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCommand().execute(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
