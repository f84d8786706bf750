package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/danghica/cliver/pkg/client"
)

func main() {
	app := &cli.App{
		Name:  "probe",
		Usage: "exercise a running cliver server over WebSocket",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Usage:   "WebSocket URL of the server.",
				Value:   "ws://localhost:8765/ws",
				EnvVars: []string{"PROBE_URL"},
			},
			&cli.DurationFlag{
				Name:  "dial-timeout",
				Usage: "How long to keep retrying the connection.",
				Value: 10 * time.Second,
			},
			&cli.DurationFlag{
				Name:  "reply-timeout",
				Usage: "How long to wait for an expected reply. The first reply includes the tool build.",
				Value: 60 * time.Second,
			},
			&cli.DurationFlag{
				Name:  "quiet-window",
				Usage: "How long to wait to confirm that no reply arrives.",
				Value: 2 * time.Second,
			},
		},
		Action: runScenarios,
		Commands: []*cli.Command{
			{
				Name:   "shell",
				Usage:  "send lines interactively and print replies",
				Action: runShell,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func dialOptions(cctx *cli.Context) client.Options {
	return client.Options{DialTimeout: cctx.Duration("dial-timeout")}
}

func runScenarios(cctx *cli.Context) error {
	ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	results := client.RunScenarios(ctx, cctx.String("url"), dialOptions(cctx),
		client.ScenarioConfig{
			ReplyTimeout: cctx.Duration("reply-timeout"),
			QuietWindow:  cctx.Duration("quiet-window"),
		},
		client.DefaultScenarios())

	failed := 0
	for _, r := range results {
		status := "PASS"
		if r.Err != nil {
			status = "FAIL"
			failed++
		}
		fmt.Printf("%s  %-32s %s\n", status, r.Name, r.Duration.Round(time.Millisecond))
		if r.Err != nil {
			fmt.Printf("      %v\n", r.Err)
		}
	}

	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d scenarios failed", failed, len(results)), 1)
	}
	return nil
}

// runShell reads lines from the terminal and prints every reply. On a
// terminal it uses a line editor with a prompt.
func runShell(cctx *cli.Context) error {
	ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := client.Dial(ctx, cctx.String("url"), dialOptions(cctx))
	if err != nil {
		return err
	}
	defer c.Close()

	readLine, out, restore, err := lineReader()
	if err != nil {
		return err
	}
	defer restore()

	replies := make(chan struct{})
	go func() {
		defer close(replies)
		for {
			msg, err := c.Next(ctx, time.Hour)
			if errors.Is(err, client.ErrNoMessage) {
				continue
			}
			if err != nil {
				return
			}
			printMessage(out, msg)
			if msg.SessionClosed {
				return
			}
		}
	}()

	for {
		line, err := readLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := c.SendLine(line); err != nil {
			return err
		}
		select {
		case <-replies:
			return nil
		default:
		}
	}
}

// lineReader returns a line source for stdin and the writer replies go to.
func lineReader() (func() (string, error), io.Writer, func(), error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		scanner := bufio.NewScanner(os.Stdin)
		read := func() (string, error) {
			if scanner.Scan() {
				return scanner.Text(), nil
			}
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return read, os.Stdout, func() {}, nil
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to set raw mode: %w", err)
	}
	screen := struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}
	t := term.NewTerminal(screen, "> ")
	restore := func() { term.Restore(fd, oldState) }
	return t.ReadLine, t, restore, nil
}

// printMessage writes a reply. term.Terminal expands \n itself.
func printMessage(w io.Writer, msg *client.Message) {
	if msg.Stdout != nil && *msg.Stdout != "" {
		fmt.Fprintln(w, *msg.Stdout)
	}
	if msg.Stderr != nil && *msg.Stderr != "" {
		fmt.Fprintln(w, "error: "+*msg.Stderr)
	}
	if msg.SessionClosed {
		fmt.Fprintln(w, "[session closed]")
	}
}
