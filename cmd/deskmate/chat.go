package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/deskmate-ai/deskmate"
	"github.com/deskmate-ai/deskmate/config"
)

// cliUserID attributes terminal sessions and turns.
const cliUserID = "cli_user"

const (
	colorUser  = "\x1b[94m"
	colorBot   = "\x1b[92m"
	colorDim   = "\x1b[90m"
	colorReset = "\x1b[0m"
)

// ChatCmd runs an interactive chat loop against a local Deskmate.
type ChatCmd struct {
	configFlag
}

// Execute implements flags.Commander.
func (c *ChatCmd) Execute(args []string) error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}

	d, err := deskmate.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	sess, err := d.NewSession(cliUserID)
	if err != nil {
		return err
	}

	handler := d.Handler(cliUserID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		fmt.Println("\nExiting...")
		cancel()
	}()

	// Feed stdin through a channel so the loop stays signal-aware.
	inputCh := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			inputCh <- scanner.Text()
		}

		close(inputCh)
	}()

	fmt.Printf("%s chat, session %s (quit/exit/q to leave)\n", cfg.Agent.Name, sess.ID)

	for {
		fmt.Printf("%sYou%s: ", colorUser, colorReset)

		var (
			line string
			ok   bool
		)

		select {
		case <-ctx.Done():
			return nil
		case line, ok = <-inputCh:
			if !ok {
				fmt.Println()
				return nil
			}
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "quit", "exit", "q":
			fmt.Println("Bye.")
			return nil
		}

		result, err := handler.HandleTurn(ctx, sess.ID, line)

		// Show whatever tool activity completed, then the failure.
		for _, entry := range result.ToolActivity {
			fmt.Printf("%s%s%s\n\n", colorDim, entry, colorReset)
		}

		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)

			continue
		}

		fmt.Printf("%s%s%s: %s\n\n", colorBot, cfg.Agent.Name, colorReset, result.FinalText)
	}
}
