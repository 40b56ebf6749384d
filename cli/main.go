// Package main provides a terminal chat client for stamping and verifying
// files through the integritas chat server.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/xiaot623/integritas/internal/adapter/host"
	"github.com/xiaot623/integritas/internal/client"
	"github.com/xiaot623/integritas/internal/config"
	"github.com/xiaot623/integritas/internal/conversation"
	"github.com/xiaot623/integritas/internal/digest"
	"github.com/xiaot623/integritas/internal/domain"
	"github.com/xiaot623/integritas/internal/normalize"
	"github.com/xiaot623/integritas/internal/repository"
)

const helpText = `Commands:
  <text>                      ask a question
  /ask [text]                 ask (default: "What can you do?")
  /stamp <file> [note]        hash the file locally and stamp the hash
  /stamp-upload <file> [note] upload the file and stamp it by URL
  /verify <hash> [note]       verify a 64-char hex hash
  /verify-file <file> [note]  upload the file and verify it
  /clear                      clear the conversation
  /export [file]              write the transcript as JSON
  /help                       show this help
  /quit                       exit`

func main() {
	defaults := config.LoadClient()

	server := flag.String("server", defaults.ServerURL, "chat server URL including the base path")
	apiKey := flag.String("api-key", defaults.APIKey, "Integritas API key")
	dbPath := flag.String("db", defaults.DBPath, "SQLite database for identity and transcript")
	profile := flag.String("profile", defaults.Profile, "identity profile")
	transport := flag.String("transport", defaults.Transport, "http, stream or ws")
	public := flag.Bool("public", false, "request public download links for uploads")
	flag.Parse()

	log.SetFlags(log.Ltime)
	ctx := context.Background()

	store, err := repository.NewSQLiteStore(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	identity, err := conversation.EnsureIdentity(ctx, store, *profile)
	if err != nil {
		log.Fatalf("Failed to load identity: %v", err)
	}

	history, err := store.LoadMessages(ctx, *profile)
	if err != nil {
		log.Printf("WARN: failed to load transcript: %v", err)
	}
	conv := conversation.Restore(history)

	hc := host.NewClient(*server, identity.Token, *apiKey, defaults.Timeout)
	opts := client.Options{
		Host:            hc,
		Uploader:        client.NewUploader(hc, defaults.Timeout, *public),
		Normalizer:      normalize.New(normalize.ParsePolicyFromString(defaults.LinkParsePolicy)),
		APIKey:          *apiKey,
		TypewriterDelay: defaults.TypewriterDelay,
		OnUpdate: func(m domain.Message) {
			fmt.Printf("\r\033[K%s", m.Text)
		},
	}
	switch strings.ToLower(*transport) {
	case "stream":
		opts.Streamer = hc
	case "ws":
		opts.Streamer = client.NewWSStreamer(hc)
	case "http", "":
	default:
		log.Fatalf("Unknown transport %q", *transport)
	}
	session := client.NewSession(conv, opts)

	fmt.Printf("Connected to %s (%s, profile %s)\n", *server, *transport, *profile)
	if n := conv.Len(); n > 0 {
		fmt.Printf("Restored %d messages.\n", n)
	}
	fmt.Println(helpText)
	fmt.Println()

	// Handle Ctrl+C
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		fmt.Println("\nInterrupted")
		store.Close()
		os.Exit(130)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		cmd := parseCommand(input)
		switch cmd.name {
		case "quit", "exit":
			fmt.Println("Bye!")
			return
		case "help":
			fmt.Println(helpText)
			continue
		case "clear":
			conv.Clear()
			if err := store.ClearMessages(ctx, *profile); err != nil {
				log.Printf("WARN: failed to clear transcript: %v", err)
			}
			fmt.Println("Conversation cleared.")
			continue
		case "export":
			if err := export(ctx, store, *profile, cmd.arg); err != nil {
				log.Printf("ERROR: export failed: %v", err)
			}
			continue
		}

		before := conv.Len()
		msg, ok := run(ctx, session, cmd)
		if !ok {
			fmt.Printf("Unknown command /%s. Type /help for commands.\n", cmd.name)
			continue
		}
		fmt.Print("\r\033[K")
		fmt.Println(render(msg))

		if err := saveTurn(ctx, store, *profile, conv.Messages()[before:]); err != nil {
			log.Printf("WARN: failed to save transcript: %v", err)
		}
	}
}

// run dispatches a chat command. ok is false for unknown commands.
func run(ctx context.Context, s *client.Session, cmd command) (domain.Message, bool) {
	switch cmd.name {
	case "":
		return s.Ask(ctx, cmd.text), true
	case "ask":
		return s.Ask(ctx, cmd.rest), true
	case "stamp":
		return s.StampHash(ctx, fileSource(cmd.arg), cmd.note), true
	case "stamp-upload":
		return s.StampUpload(ctx, fileSource(cmd.arg), cmd.note), true
	case "verify":
		return s.VerifyHash(ctx, cmd.arg, cmd.note), true
	case "verify-file":
		return s.VerifyFile(ctx, fileSource(cmd.arg), cmd.note), true
	default:
		return domain.Message{}, false
	}
}

type messageAppender interface {
	AppendMessage(ctx context.Context, profile string, m domain.Message) error
}

// saveTurn stores the messages added by one command.
func saveTurn(ctx context.Context, store messageAppender, profile string, msgs []domain.Message) error {
	for _, m := range msgs {
		if err := store.AppendMessage(ctx, profile, m); err != nil {
			return err
		}
	}
	return nil
}

// fileSource returns nil for an empty path so the flows report a missing file.
func fileSource(path string) digest.Source {
	if path == "" {
		return nil
	}
	return digest.FileSource{Path: path}
}

func export(ctx context.Context, store *repository.SQLiteStore, profile, path string) error {
	if path == "" {
		return store.Export(ctx, profile, os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := store.Export(ctx, profile, f); err != nil {
		return err
	}
	fmt.Printf("Transcript written to %s\n", path)
	return nil
}
