// Kvmswitch controls a TESmart-compatible KVM switch over its LAN port.
//
// Run without arguments it prints the active input; with a single port
// number it switches to that input:
//
//	kvmswitch          # show currently selected port
//	kvmswitch 4        # select port 4
//	kvmswitch -help    # usage
//
// Subcommands cover scripting (get, select), an interactive switcher (tui),
// a simulated switch for testing (simulate) and the effective configuration
// (config). See 'kvmswitch --help'.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/muurk/kvmswitch/internal/logging"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command line and returns the process exit code
func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	root.SetArgs(normalizeArgs(args, func(name string) bool {
		cmd, _, err := root.Find([]string{name})
		return name == "help" || (err == nil && cmd != root)
	}))
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	logging.Sync()
	if err != nil {
		fmt.Fprintf(stderr, "Fatal error: %v\n", err)
		return 1
	}
	return 0
}

// normalizeArgs keeps the single-dash forms of the classic command line
// working: "-help" and "-?" (any case) ask for usage, and a lone negative
// number is a port argument rather than a flag. Several bare arguments are
// passed through as positionals so the root command prints usage for them,
// even when one of them looks like a shorthand flag. isCommand reports
// whether a word names a subcommand.
func normalizeArgs(args []string, isCommand func(string) bool) []string {
	if len(args) > 1 {
		if isCommand(args[0]) {
			return args
		}
		for _, arg := range args {
			if strings.HasPrefix(arg, "--") {
				return args
			}
		}
		return append([]string{"--"}, args...)
	}
	if len(args) != 1 {
		return args
	}
	switch strings.ToLower(args[0]) {
	case "-help", "-?":
		return []string{"--help"}
	}
	if strings.HasPrefix(args[0], "-") {
		if _, err := strconv.Atoi(args[0]); err == nil {
			return []string{"--", args[0]}
		}
	}
	return args
}
