// Package testutil provides helpers shared by tests that run real processes.
package testutil

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	// FakeToolEnv turns a test binary into the fake tool when set to "1".
	FakeToolEnv = "CLIVER_FAKE_TOOL"

	// FakeToolModeEnv selects a fake tool behavior, see FakeTool.
	FakeToolModeEnv = "CLIVER_FAKE_TOOL_MODE"

	// ModeServe answers commands read from stdin until EOF.
	ModeServe = "serve"

	// ModeSilentExit exits immediately without writing anything.
	ModeSilentExit = "silent-exit"

	// ModeTrailerOnly writes only the cjpm run trailer and exits.
	ModeTrailerOnly = "trailer-only"
)

// SplitWriteDelay separates the two halves written by "stderr-split".
const SplitWriteDelay = 300 * time.Millisecond

// HelpText is what the fake tool prints for "help".
const HelpText = "Commands:\n  Student new <name> <id>\n  Lesson new\n  demo\n  help\n  exit"

// RunFakeToolIfRequested runs the fake tool and exits the process when the
// test binary was started as one. Call it first thing in TestMain.
func RunFakeToolIfRequested() {
	if os.Getenv(FakeToolEnv) != "1" {
		return
	}
	os.Exit(FakeTool(os.Stdin, os.Stdout, os.Stderr, os.Getenv(FakeToolModeEnv)))
}

// FakeToolEnviron returns the environment entries that make the current test
// binary act as the fake tool in the given mode.
func FakeToolEnviron(mode string) []string {
	return []string{FakeToolEnv + "=1", FakeToolModeEnv + "=" + mode}
}

// FakeToolBinary returns the path of the running test binary.
func FakeToolBinary() string {
	return os.Args[0]
}

// FakeTool imitates an interactive tool that follows the bridge's output
// convention: one line per reply, stdout and stderr separated by a tab,
// embedded newlines written as " <NL> ". It returns the exit code.
func FakeTool(in io.Reader, out, errOut io.Writer, mode string) int {
	switch mode {
	case ModeSilentExit:
		return 0
	case ModeTrailerOnly:
		fmt.Fprintln(out, "cjpm run finished")
		return 0
	}

	refs := map[string]int{}
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		rest := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

		switch {
		case line == "help":
			reply(out, HelpText, "")
		case len(fields) >= 2 && fields[1] == "new" && (fields[0] == "Student" || fields[0] == "Lesson"):
			refs[fields[0]]++
			reply(out, fmt.Sprintf("ref:%d", refs[fields[0]]), "")
		case line == "demo":
			reply(out, "Alice, 1001\nBob, 1002\nCarol, 1003", "")
		case fields[0] == "echo":
			reply(out, rest, "")
		case fields[0] == "warn":
			reply(out, "", rest)
		case fields[0] == "stderr":
			fmt.Fprintln(errOut, rest)
		case fields[0] == "stderr-split" && len(fields) == 3:
			fmt.Fprint(errOut, fields[1])
			time.Sleep(SplitWriteDelay)
			fmt.Fprintln(errOut, fields[2])
		case line == "crash":
			return 3
		case line == "quit":
			reply(out, "bye", "")
			return 0
		default:
			reply(out, "", "Unknown command: "+fields[0])
		}
	}

	fmt.Fprintln(out, "cjpm run finished")
	return 0
}

func reply(out io.Writer, stdout, stderr string) {
	fmt.Fprintf(out, "%s\t%s\n", flatten(stdout), flatten(stderr))
}

func flatten(s string) string {
	return strings.ReplaceAll(s, "\n", " <NL> ")
}
