package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"socialmart/internal/client"
	"socialmart/internal/models"
)

func run(ctx context.Context) error {
	apiURL := flag.String("api", "http://localhost:8080/api", "REST API base URL")
	wsURL := flag.String("ws", "ws://localhost:8080/api/realtime", "Realtime endpoint URL")
	token := flag.String("token", os.Getenv("SOCIALMART_TOKEN"), "Access token")
	to := flag.String("to", "", "User id to chat with")
	flag.Parse()

	if *token == "" || *to == "" {
		return errors.New("-token and -to are required")
	}

	rest := client.NewAPIClient(*apiURL, *token)
	me, err := rest.Me(ctx)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}

	rt, err := client.Dial(ctx, *wsURL, *token)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	coord := client.NewCoordinator(rest, rt, client.Profile{
		UserID:      me.ID,
		DisplayName: me.DisplayName,
		AvatarURL:   me.AvatarURL,
	}, client.DefaultTypingDelay)
	defer coord.Close()

	if err := rt.Join(me.ID); err != nil {
		return fmt.Errorf("failed to join: %w", err)
	}

	inbox := client.NewInbox(coord)
	if err := inbox.OpenThread(ctx, *to); err != nil {
		return err
	}
	for _, m := range inbox.Messages() {
		printMessage(me.ID, m)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-rt.Events():
			if !ok {
				return rt.Err()
			}
			if err := inbox.HandleEvent(ctx, ev); err != nil {
				log.Printf("event %s: %v", ev.Name, err)
				continue
			}
			printEvent(me.ID, *to, inbox, ev)

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			_ = coord.NotifyTyping(*to, me.DisplayName)
			if _, err := inbox.Send(ctx, line, ""); err != nil {
				log.Printf("failed to send: %v", err)
			}
		}
	}
}

func printMessage(self string, m models.Message) {
	who := m.Sender
	if who == self {
		who = "you"
	}
	receipt := ""
	if m.Sender == self && m.Read {
		receipt = " (read)"
	}
	fmt.Printf("[%s] %s: %s%s\n", m.CreatedAt.Local().Format("15:04"), who, m.Content, receipt)
}

func printEvent(self, to string, inbox *client.Inbox, ev client.Event) {
	switch ev.Name {
	case models.EventReceiveMessage:
		var m models.ReceivedMessage
		if ev.Decode(&m) == nil {
			if m.Sender == to {
				printMessage(self, m.Message)
			} else {
				fmt.Printf("* new message from %s (%d unread)\n", m.Sender, inbox.Unread(m.Sender))
			}
		}
	case models.EventDisplayTyping, models.EventHideTyping:
		if typing, name := inbox.Typing(); typing {
			fmt.Printf("* %s is typing...\n", name)
		}
	case models.EventMessagesRead:
		fmt.Printf("* %s read your messages\n", to)
	case models.EventOnlineUsers:
		state := "offline"
		if inbox.IsOnline(to) {
			state = "online"
		}
		fmt.Printf("* %s is %s\n", to, state)
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("smchat: %v", err)
	}
}
