package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TrailerText must never reach a client.
const TrailerText = "run finished"

// Scenario is a scripted check against a live server. Each scenario gets
// its own connection.
type Scenario struct {
	Name string
	Run  func(ctx context.Context, c *Client, cfg ScenarioConfig) error
}

// ScenarioConfig holds the timing of scenario checks.
type ScenarioConfig struct {
	// ReplyTimeout bounds the wait for an expected reply. The first reply
	// includes the tool start-up.
	ReplyTimeout time.Duration

	// QuietWindow is how long a scenario waits to confirm no reply.
	QuietWindow time.Duration
}

// ScenarioResult is the outcome of one scenario.
type ScenarioResult struct {
	Name     string
	Err      error
	Duration time.Duration
}

// DefaultScenarios are the smoke checks run by the probe.
func DefaultScenarios() []Scenario {
	return []Scenario{
		{Name: "help lists commands", Run: helpScenario},
		{Name: "empty line is ignored", Run: emptyLineScenario},
		{Name: "unknown command is reported", Run: unknownCommandScenario},
	}
}

// RunScenarios dials url for every scenario and runs it.
func RunScenarios(ctx context.Context, url string, opts Options, cfg ScenarioConfig, scenarios []Scenario) []ScenarioResult {
	results := make([]ScenarioResult, 0, len(scenarios))
	for _, sc := range scenarios {
		start := time.Now()
		err := runScenario(ctx, url, opts, cfg, sc)
		results = append(results, ScenarioResult{
			Name:     sc.Name,
			Err:      err,
			Duration: time.Since(start),
		})
	}
	return results
}

func runScenario(ctx context.Context, url string, opts Options, cfg ScenarioConfig, sc Scenario) error {
	c, err := Dial(ctx, url, opts)
	if err != nil {
		return err
	}
	defer c.Close()
	return sc.Run(ctx, c, cfg)
}

func helpScenario(ctx context.Context, c *Client, cfg ScenarioConfig) error {
	if err := c.SendLine("help"); err != nil {
		return err
	}
	msg, err := c.Next(ctx, cfg.ReplyTimeout)
	if err != nil {
		return err
	}
	stdout := text(msg.Stdout)
	if strings.TrimSpace(stdout) == "" {
		return fmt.Errorf("empty help output, stderr %q", text(msg.Stderr))
	}
	if strings.Contains(stdout, TrailerText) {
		return fmt.Errorf("help output leaks %q: %q", TrailerText, stdout)
	}
	return nil
}

func emptyLineScenario(ctx context.Context, c *Client, cfg ScenarioConfig) error {
	if err := c.SendLine(""); err != nil {
		return err
	}
	msg, err := c.Next(ctx, cfg.QuietWindow)
	if errors.Is(err, ErrNoMessage) {
		return nil
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("unexpected reply to empty line: stdout %q stderr %q", text(msg.Stdout), text(msg.Stderr))
}

func unknownCommandScenario(ctx context.Context, c *Client, cfg ScenarioConfig) error {
	if err := c.SendLine("definitelyNotACommand"); err != nil {
		return err
	}
	msg, err := c.Next(ctx, cfg.ReplyTimeout)
	if err != nil {
		return err
	}
	reply := strings.ToLower(text(msg.Stdout) + " " + text(msg.Stderr))
	if !strings.Contains(reply, "unknown") && !strings.Contains(reply, "unrecognized") {
		return fmt.Errorf("reply does not report an unknown command: %q", reply)
	}
	return nil
}

func text(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
