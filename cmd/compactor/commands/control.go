package commands

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/compactor/pkg/progress"
)

const commandBuffer = 4

// parseCommand maps an input line to a command: p pauses, r resumes,
// s or q stops.
func parseCommand(line string) (progress.Command, bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "p", "pause":
		return progress.Pause, true
	case "r", "resume":
		return progress.Resume, true
	case "s", "stop", "q", "quit":
		return progress.Stop, true
	default:
		return 0, false
	}
}

// controls merges stdin commands and interrupts into one command stream.
// The first interrupt asks for a graceful stop, the second cancels the
// returned context. in may be nil.
func controls(parent context.Context, in io.Reader) (context.Context, <-chan progress.Command, func()) {
	ctx, cancel := context.WithCancel(parent)
	commands := make(chan progress.Command, commandBuffer)

	send := func(c progress.Command) {
		select {
		case commands <- c:
		case <-ctx.Done():
		}
	}

	if in != nil {
		go func() {
			scanner := bufio.NewScanner(in)
			for scanner.Scan() {
				if c, ok := parseCommand(scanner.Text()); ok {
					send(c)
				}
			}
		}()
	}

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	go func() {
		interrupts := 0

		for {
			select {
			case <-ctx.Done():
				return
			case <-signals:
				interrupts++
				if interrupts > 1 {
					cancel()

					return
				}

				send(progress.Stop)
			}
		}
	}()

	stop := func() {
		signal.Stop(signals)
		cancel()
	}

	return ctx, commands, stop
}

// stdin is the command input unless --no-input was given.
func stdin(cmd *cobra.Command, g *globalOptions) io.Reader {
	if g.noInput {
		return nil
	}

	return cmd.InOrStdin()
}
