package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yubzen/globetrip/internal/agent"
	"github.com/yubzen/globetrip/internal/pipeline"
	"github.com/yubzen/globetrip/internal/trip"
)

const chatHelp = `Commands:
  /plan     run every planning pipeline for this session
  /costs    show the current cost summary
  /state    print the planner state
  /history  list what you typed in this session
  exit      leave the chat (also: quit)`

type chatPlanner interface {
	Chat(ctx context.Context, sessionID, line string) (pipeline.Turn, error)
	RunAll(ctx context.Context, sessionID string) ([]pipeline.Outcome, error)
	Costs(ctx context.Context, sessionID string) (trip.CostSummary, error)
	Session(ctx context.Context, id string) (*trip.Session, error)
}

type inputLog interface {
	AppendInput(ctx context.Context, sessionID, line string) error
	Inputs(ctx context.Context, sessionID string) ([]string, error)
}

type chatLoop struct {
	planner   chatPlanner
	history   inputLog
	sessionID string
	out       io.Writer
	width     int
	// showState prints the planner state after every turn.
	showState bool
}

// run reads lines from in until exit, EOF or cancellation. Reading happens on
// its own goroutine so a cancelled context ends the loop mid-prompt.
func (l *chatLoop) run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(l.out, "> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(l.out)
			return nil
		case next, ok := <-lines:
			if !ok {
				fmt.Fprintln(l.out)
				return nil
			}
			line = strings.TrimSpace(next)
		}
		if line == "" {
			continue
		}
		if done, err := l.handle(ctx, line); done || err != nil {
			return err
		}
	}
}

func (l *chatLoop) handle(ctx context.Context, line string) (bool, error) {
	switch strings.ToLower(line) {
	case "exit", "quit":
		return true, nil
	case "/help":
		fmt.Fprintln(l.out, chatHelp)
		return false, nil
	case "/plan":
		outs, err := l.planner.RunAll(ctx, l.sessionID)
		if werr := writeOutcomes(l.out, outs); werr != nil {
			return false, werr
		}
		return l.report(ctx, err)
	case "/costs":
		costs, err := l.planner.Costs(ctx, l.sessionID)
		if err != nil {
			return l.report(ctx, err)
		}
		return false, writeCosts(l.out, costs)
	case "/state":
		return false, l.printState(ctx)
	case "/history":
		inputs, err := l.history.Inputs(ctx, l.sessionID)
		if err != nil {
			return l.report(ctx, err)
		}
		for i, in := range inputs {
			fmt.Fprintf(l.out, "%3d  %s\n", i+1, in)
		}
		return false, nil
	}
	if strings.HasPrefix(line, "/") {
		fmt.Fprintln(l.out, errorStyle.Render("unknown command "+line)+", try /help")
		return false, nil
	}

	if err := l.history.AppendInput(ctx, l.sessionID, line); err != nil {
		return l.report(ctx, err)
	}
	turn, err := l.planner.Chat(ctx, l.sessionID, line)
	if err != nil {
		if done, rerr := l.report(ctx, err); done || rerr != nil {
			return done, rerr
		}
		fmt.Fprintln(l.out, dimStyle.Render("Your message was not applied. Send it again to retry."))
		return false, nil
	}
	if len(turn.Tools) > 0 {
		fmt.Fprintln(l.out, dimStyle.Render("tools: "+strings.Join(turn.Tools, ", ")))
	}
	if reply := strings.TrimSpace(turn.Reply); reply != "" {
		fmt.Fprintln(l.out, wrapWithPrefix(agentStyle.Render("Agent: "), reply, l.width))
	}
	fmt.Fprintln(l.out, dimStyle.Render(plannerLine(turn.Planner)))
	if l.showState {
		return false, l.printState(ctx)
	}
	return false, nil
}

// report prints a failed action and decides whether the loop should stop.
// Only cancellation ends the chat.
func (l *chatLoop) report(ctx context.Context, err error) (bool, error) {
	if err == nil {
		return false, nil
	}
	if ctx.Err() != nil || agent.IsUserCancelled(err) || errors.Is(err, context.Canceled) {
		return true, nil
	}
	fmt.Fprintln(l.out, errorStyle.Render("error: "+err.Error()))
	return false, nil
}

func (l *chatLoop) printState(ctx context.Context) error {
	s, err := l.planner.Session(ctx, l.sessionID)
	if err != nil {
		_, err = l.report(ctx, err)
		return err
	}
	p, err := s.Planner()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(l.out, string(data))
	return nil
}

func NewChatCmd(opts *Options) *cobra.Command {
	var showState bool
	cmd := &cobra.Command{
		Use:   "chat [session-id]",
		Short: "Talk to the intake agent, creating a session when none is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := openRuntime(ctx, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			var sessionID string
			if len(args) == 1 {
				if sessionID, err = rt.DB.ResolveSessionID(ctx, args[0]); err != nil {
					return err
				}
			} else {
				s, err := rt.DB.CreateSession(ctx)
				if err != nil {
					return err
				}
				sessionID = s.ID
			}

			updates := make(chan pipeline.StepUpdate, 16)
			drained := make(chan struct{})
			go func() {
				defer close(drained)
				for u := range updates {
					fmt.Fprintln(os.Stdout, renderUpdate(u))
				}
			}()
			defer func() {
				close(updates)
				<-drained
			}()

			fmt.Printf("Session %s. Type /help for commands.\n", sessionID)
			loop := &chatLoop{
				planner:   rt.NewPlanner(updates),
				history:   rt.DB,
				sessionID: sessionID,
				out:       os.Stdout,
				width:     terminalWidth(),
				showState: showState,
			}
			return loop.run(ctx, os.Stdin)
		},
	}
	cmd.Flags().BoolVar(&showState, "show-state", false, "Print the planner state after every turn")
	return cmd
}
