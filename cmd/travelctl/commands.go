package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/sudwiptokm/TravelBuddy/internal/live"
	"github.com/sudwiptokm/TravelBuddy/internal/middleware"
	"github.com/sudwiptokm/TravelBuddy/internal/model"
	natsclient "github.com/sudwiptokm/TravelBuddy/internal/nats"
)

var migrateCommand = &cli.Command{
	Name:   "migrate",
	Usage:  "Create the store schema",
	Before: prepareApp,
	Action: func(ctx *cli.Context) error {
		a := getApp(ctx)
		if err := a.Store.Ping(ctx.Context); err != nil {
			return fmt.Errorf("store unreachable: %w", err)
		}
		fmt.Printf("Schema ready on %s store\n", a.Config.StoreDriver)
		return nil
	},
}

var registerCommand = &cli.Command{
	Name:      "register",
	Usage:     "Create a profile",
	ArgsUsage: "USERNAME",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "id", Usage: "Profile id (generated when empty)"},
		&cli.StringFlag{Name: "full-name", Usage: "Display name"},
		&cli.StringFlag{Name: "avatar", Usage: "Avatar URL"},
	},
	Before: prepareApp,
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() == 0 {
			return fmt.Errorf("you must specify a username")
		}
		p := model.Profile{ID: ctx.String("id"), Username: ctx.Args().First()}
		if v := ctx.String("full-name"); v != "" {
			p.FullName = &v
		}
		if v := ctx.String("avatar"); v != "" {
			p.AvatarURL = &v
		}
		created, err := getApp(ctx).Session.Directory.Register(ctx.Context, p)
		if err != nil {
			return err
		}
		fmt.Printf("Registered %s (%s)\n", created.Username, created.ID)
		return nil
	},
}

var tokenCommand = &cli.Command{
	Name:      "token",
	Usage:     "Issue an API token for a profile",
	ArgsUsage: "USER_ID",
	Flags: []cli.Flag{
		&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour, Usage: "Token lifetime"},
	},
	Before: prepareApp,
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() == 0 {
			return fmt.Errorf("you must specify a user id")
		}
		a := getApp(ctx)
		p, err := a.Session.Directory.Profile(ctx.Context, ctx.Args().First())
		if err != nil {
			return err
		}
		token, err := middleware.IssueToken(a.Config.JWTSecret, p.ID, p.Username, ctx.Duration("ttl"))
		if err != nil {
			return fmt.Errorf("failed to sign token: %w", err)
		}
		fmt.Println(token)
		return nil
	},
}

var usersCommand = &cli.Command{
	Name:   "users",
	Usage:  "List other users and whether they are online",
	Before: requiresUser,
	Action: func(ctx *cli.Context) error {
		users := getApp(ctx).Session.Users(ctx.Context)
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tONLINE\tLAST SEEN")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", u.ID, u.DisplayName(), u.Online, formatTime(u.LastOnline))
		}
		return w.Flush()
	},
}

var resolveCommand = &cli.Command{
	Name:      "resolve",
	Usage:     "Find or create the conversation with a user",
	ArgsUsage: "USER_ID",
	Before:    requiresUser,
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() == 0 {
			return fmt.Errorf("you must specify a user id")
		}
		id, err := getApp(ctx).Session.Resolve(ctx.Context, ctx.Args().First())
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var sendCommand = &cli.Command{
	Name:      "send",
	Usage:     "Send a message",
	ArgsUsage: "CONVERSATION_ID TEXT...",
	Before:    requiresUser,
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() < 2 {
			return fmt.Errorf("you must specify a conversation id and a message")
		}
		content := strings.Join(ctx.Args().Slice()[1:], " ")
		msg, err := getApp(ctx).Session.Send(ctx.Context, ctx.Args().First(), content)
		if err != nil {
			return fmt.Errorf("message not sent, retry with the same text: %w", err)
		}
		fmt.Printf("Sent %s at %s\n", msg.ID, formatTime(msg.CreatedAt))
		return nil
	},
}

var historyCommand = &cli.Command{
	Name:      "history",
	Usage:     "Print a conversation",
	ArgsUsage: "CONVERSATION_ID",
	Before:    requiresUser,
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() == 0 {
			return fmt.Errorf("you must specify a conversation id")
		}
		msgs, err := getApp(ctx).Session.History(ctx.Context, ctx.Args().First())
		if err != nil {
			return err
		}
		for _, m := range msgs {
			printMessage(m)
		}
		return nil
	},
}

var readCommand = &cli.Command{
	Name:      "read",
	Usage:     "Mark a conversation read",
	ArgsUsage: "CONVERSATION_ID",
	Before:    requiresUser,
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() == 0 {
			return fmt.Errorf("you must specify a conversation id")
		}
		n, err := getApp(ctx).Session.MarkRead(ctx.Context, ctx.Args().First())
		if err != nil {
			return err
		}
		fmt.Printf("Marked %d message(s) read\n", n)
		return nil
	},
}

var inboxCommand = &cli.Command{
	Name:   "inbox",
	Usage:  "List conversations, most recent first",
	Before: requiresUser,
	Action: func(ctx *cli.Context) error {
		summaries, err := getApp(ctx).Session.Conversations(ctx.Context)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CONVERSATION\tWITH\tUNREAD\tLAST MESSAGE")
		for _, s := range summaries {
			last := "-"
			if s.LastMessage != nil {
				last = fmt.Sprintf("%s %q", formatTime(s.LastMessage.CreatedAt), truncate(s.LastMessage.Content, 40))
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.Conversation.ID, s.Other.DisplayName(), s.UnreadCount, last)
		}
		return w.Flush()
	},
}

var watchCommand = &cli.Command{
	Name:      "watch",
	Usage:     "Tail a conversation until interrupted",
	ArgsUsage: "CONVERSATION_ID",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "read", Usage: "Mark messages read while watching"},
	},
	Before: requiresUser,
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() == 0 {
			return fmt.Errorf("you must specify a conversation id")
		}
		a := getApp(ctx)
		if a.NATS == nil {
			fmt.Fprintln(os.Stderr, "Warning: NATS_URL is not set; only messages sent by this process will appear")
		}

		room, err := a.Session.Open(ctx.Context, ctx.Args().First(), ctx.Bool("read"))
		if err != nil {
			return err
		}
		defer room.Close()

		// live messages wait until the snapshot is printed
		var printMu sync.Mutex
		printMu.Lock()
		for _, m := range room.Follow(func(m model.Message) {
			printMu.Lock()
			defer printMu.Unlock()
			printMessage(m)
		}) {
			printMessage(m)
		}
		printMu.Unlock()

		waitForInterrupt(ctx)
		return nil
	},
}

var presenceCommand = &cli.Command{
	Name:      "presence",
	Usage:     "Show whether a user is online",
	ArgsUsage: "USER_ID",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "follow", Aliases: []string{"f"}, Usage: "Keep printing heartbeats until interrupted"},
	},
	Before: requiresUser,
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() == 0 {
			return fmt.Errorf("you must specify a user id")
		}
		a := getApp(ctx)
		w, err := a.Session.WatchPresence(ctx.Context, ctx.Args().First(), func(p model.Profile) {
			fmt.Printf("%s seen at %s\n", p.DisplayName(), formatTime(p.LastOnline))
		})
		if err != nil {
			return err
		}
		defer w.Detach()

		fmt.Printf("online=%t last_seen=%s\n", w.Online(time.Now()), formatTime(w.LastOnline()))
		if !ctx.Bool("follow") {
			return nil
		}
		waitForInterrupt(ctx)
		return nil
	},
}

var replayCommand = &cli.Command{
	Name:      "replay",
	Usage:     "Print stored change events of a conversation from the NATS stream",
	ArgsUsage: "CONVERSATION_ID",
	Flags: []cli.Flag{
		&cli.DurationFlag{Name: "since", Value: time.Hour, Usage: "How far back to start"},
		&cli.IntFlag{Name: "limit", Value: 100, Usage: "Maximum events"},
	},
	Before: requiresUser,
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() == 0 {
			return fmt.Errorf("you must specify a conversation id")
		}
		a := getApp(ctx)
		if a.NATS == nil {
			return fmt.Errorf("replay needs NATS_URL")
		}
		conversationID := ctx.Args().First()
		// membership check before reading the raw stream
		if _, err := a.Session.Unread(ctx.Context, conversationID); err != nil {
			return err
		}
		feed, ok := a.Feed.(*natsclient.Feed)
		if !ok {
			return fmt.Errorf("replay needs a NATS feed")
		}
		events, err := feed.Replay(ctx.Context, live.MessagesTopic(conversationID),
			time.Now().Add(-ctx.Duration("since")), ctx.Int("limit"))
		if err != nil {
			return err
		}
		for _, ev := range events {
			if ev.Message != nil {
				printMessage(*ev.Message)
			}
		}
		return nil
	},
}

func waitForInterrupt(ctx *cli.Context) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	select {
	case <-quit:
	case <-ctx.Context.Done():
	}
}

func printMessage(m model.Message) {
	sender := m.SenderID
	if m.Sender != nil {
		sender = m.Sender.DisplayName()
	}
	fmt.Printf("[%s] %s: %s\n", formatTime(m.CreatedAt), sender, m.Content)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
