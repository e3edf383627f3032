package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tanpawarit/ali-stylist-agent/agent/agents/orchestrator"
)

const chatHelp = `commands:
  /user <id>       switch user (clears the conversation)
  /city <name>     change the weather location ("" resets)
  /date <date>     pick the outfit of the day (YYYY-MM-DD, empty = today)
  /info            show the session
  /quit            leave`

// chatService is the slice of the orchestrator the terminal loop drives.
type chatService interface {
	StartSession(ctx context.Context, opts orchestrator.SessionOptions) (orchestrator.SessionInfo, error)
	HandleMessage(ctx context.Context, sessionID string, text string) (orchestrator.TurnResult, error)
	SwitchUser(ctx context.Context, sessionID string, userID string) (orchestrator.SessionInfo, error)
	SetLocation(ctx context.Context, sessionID string, city string) (orchestrator.SessionInfo, error)
	SetOutfitDate(ctx context.Context, sessionID string, date string) (orchestrator.SessionInfo, error)
	Session(ctx context.Context, sessionID string) (orchestrator.SessionInfo, error)
	EndSession(ctx context.Context, sessionID string) error
}

func newChatCmd() *cobra.Command {
	var opts orchestrator.SessionOptions

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the stylist in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			return runChat(cmd.Context(), a.orch, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.UserID, "user", "", "user id (default STYLIST_DEFAULT_USER)")
	cmd.Flags().StringVar(&opts.City, "city", "", "city for weather (default STYLIST_DEFAULT_CITY)")
	cmd.Flags().StringVar(&opts.OutfitDate, "date", "", "outfit of the day date, YYYY-MM-DD")
	return cmd
}

func runChat(ctx context.Context, svc chatService, opts orchestrator.SessionOptions, in io.Reader, out io.Writer) error {
	info, err := svc.StartSession(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		_ = svc.EndSession(context.WithoutCancel(ctx), info.SessionID)
	}()

	fmt.Fprintf(out, "session %s (user %s, city %s)\n", info.SessionID, info.UserID, info.City)
	if info.Summary != "" {
		fmt.Fprintf(out, "remembered: %s\n", info.Summary)
	}
	fmt.Fprintln(out, "type /help for commands")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := chatCommand(ctx, svc, info.SessionID, line, out)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		res, err := svc.HandleMessage(ctx, info.SessionID, line)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintln(out, res.Reply)
		fmt.Fprintf(out, "  [%s]\n", strings.Join(res.Trace, " → "))
		if res.PersistErr != nil {
			fmt.Fprintln(out, "  (summary not saved)")
		}
	}
}

func chatCommand(ctx context.Context, svc chatService, sessionID string, line string, out io.Writer) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	var (
		info orchestrator.SessionInfo
		err  error
	)
	switch name {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(out, chatHelp)
		return false, nil
	case "/user":
		info, err = svc.SwitchUser(ctx, sessionID, arg)
	case "/city":
		info, err = svc.SetLocation(ctx, sessionID, arg)
	case "/date":
		info, err = svc.SetOutfitDate(ctx, sessionID, arg)
	case "/info":
		info, err = svc.Session(ctx, sessionID)
	default:
		return false, fmt.Errorf("unknown command %s", name)
	}
	if err != nil {
		return false, err
	}

	fmt.Fprintf(out, "user=%s city=%s", info.UserID, info.City)
	if info.OutfitDate != "" {
		fmt.Fprintf(out, " date=%s", info.OutfitDate)
	}
	fmt.Fprintf(out, " messages=%d\n", info.MessageCount)
	if info.Summary != "" {
		fmt.Fprintf(out, "summary: %s\n", info.Summary)
	}
	if len(info.LastTrace) > 0 {
		fmt.Fprintf(out, "last route: %s\n", strings.Join(info.LastTrace, " → "))
	}
	return false, nil
}
