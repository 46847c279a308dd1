package main

import (
	"bufio"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string `env:"RELAY_SERVER_ADDR,default=localhost:8080"`
	Nickname      string `env:"RELAY_NICKNAME,required=true"`
	LogLevel      string `env:"LOG_LEVEL,default=INFO"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	target := url.URL{
		Scheme:   "ws",
		Host:     config.ServerAddress,
		Path:     "/ws",
		RawQuery: "nickname=" + url.QueryEscape(config.Nickname),
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target.String(), nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to relay at %s: %w", config.ServerAddress, err)
	}
	defer conn.Close()

	color.Cyan.Printf("connected as %s — /list /msg /history /search /quit\n", config.Nickname)

	// Server pushes arrive on their own goroutine; stdin drives sends.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				log.Debug("connection closed", "err", err)
				return
			}
			render(data)
		}
	}()

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "/quit" {
				stop()
				return
			}
			frame, err := buildFrame(line)
			if err != nil {
				color.Red.Println(err)
				continue
			}
			if err := conn.WriteJSON(frame); err != nil {
				log.Error("write failed", "err", err)
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
	case <-done:
	}
	return exitOK, nil
}

// buildFrame turns one input line into a relay frame.
//
//	/list
//	/msg <nickname> <text>
//	/history <nickname> [limit]
//	/search <nickname> <terms>
func buildFrame(line string) (map[string]any, error) {
	parts := strings.Fields(line)
	switch parts[0] {
	case "/list":
		return map[string]any{"action": domain.ActionGetClients}, nil
	case "/msg":
		if len(parts) < 3 {
			return nil, fmt.Errorf("usage: /msg <nickname> <text>")
		}
		return map[string]any{
			"action":           domain.ActionSendMessage,
			"receiverNickname": parts[1],
			"message":          strings.Join(parts[2:], " "),
		}, nil
	case "/history":
		if len(parts) < 2 {
			return nil, fmt.Errorf("usage: /history <nickname> [limit]")
		}
		limit := 20
		if len(parts) > 2 {
			parsed, err := strconv.Atoi(parts[2])
			if err != nil {
				return nil, fmt.Errorf("limit must be a number: %v", err)
			}
			limit = parsed
		}
		return map[string]any{
			"action":         domain.ActionGetMessages,
			"targetNickname": parts[1],
			"limit":          limit,
		}, nil
	case "/search":
		if len(parts) < 3 {
			return nil, fmt.Errorf("usage: /search <nickname> <terms>")
		}
		return map[string]any{
			"action":         domain.ActionSearchMessages,
			"targetNickname": parts[1],
			"query":          strings.Join(parts[2:], " "),
			"limit":          20,
		}, nil
	default:
		return nil, fmt.Errorf("unknown command %s", parts[0])
	}
}

// render pretty-prints one server push.
func render(data []byte) {
	var envelope struct {
		Type  event.Type      `json:"type"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		color.Red.Printf("unreadable push: %s\n", data)
		return
	}

	switch envelope.Type {
	case event.TypePing:
		// Liveness probe, nothing to show.
	case event.TypeMessage:
		var value event.MessageValue
		if err := json.Unmarshal(envelope.Value, &value); err != nil {
			return
		}
		color.Green.Printf("%s: ", value.Sender)
		fmt.Println(value.Message)
	case event.TypeClients:
		var value event.ClientsValue
		if err := json.Unmarshal(envelope.Value, &value); err != nil {
			return
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Nickname", "Connection"})
		for _, client := range value.Clients {
			table.Append([]string{client.Nickname, client.ConnectionID})
		}
		table.Render()
	case event.TypeHistory, event.TypeMatches:
		var value event.HistoryValue
		if err := json.Unmarshal(envelope.Value, &value); err != nil {
			return
		}
		for _, message := range value.Messages {
			color.Yellow.Printf("[%s] %s: ", message.CreatedAt.Local().Format("15:04:05"), message.Sender)
			fmt.Println(message.Message)
		}
		if value.PagingToken != nil && *value.PagingToken != "" {
			color.Gray.Printf("more: pagingToken=%s\n", *value.PagingToken)
		}
	case event.TypeError:
		var value event.ErrorValue
		if err := json.Unmarshal(envelope.Value, &value); err != nil {
			return
		}
		color.Red.Printf("%s: %s\n", value.Kind, value.Message)
	default:
		fmt.Println(string(data))
	}
}
