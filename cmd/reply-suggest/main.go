package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"os"

	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/config"
	"github.com/mikey/onebox/internal/core"
	"github.com/mikey/onebox/internal/di"
	"github.com/mikey/onebox/internal/reply"
)

func main() {
	flags := di.ParseFlags()

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

func run(
	flags *di.CLIFlags,
	logger *zap.Logger,
	cfg *config.Config,
	store *core.ContextStore,
	svc *reply.Service,
	llm core.CompletionClient,
) error {
	defer logger.Sync()
	ctx := context.Background()

	defer func() {
		if closer, ok := llm.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				logger.Error("Failed to close LLM client", zap.Error(err))
			}
		}
	}()

	// Load the reply context
	retrievalCfg := cfg.GetRetrieval()
	f, err := os.Open(retrievalCfg.ContextPath)
	if err != nil {
		logger.Fatal("Failed to open context file", zap.Error(err), zap.String("path", retrievalCfg.ContextPath))
	}
	defer f.Close()
	if err := store.Load(ctx, f); err != nil {
		logger.Fatal("Failed to load context", zap.Error(err))
	}

	// Read email from file or stdin
	var emailReader io.Reader
	if flags.InputFile != "" {
		file, err := os.Open(flags.InputFile)
		if err != nil {
			logger.Fatal("Failed to open input file", zap.Error(err), zap.String("file", flags.InputFile))
		}
		defer file.Close()
		emailReader = file
		logger.Info("Reading email from file", zap.String("file", flags.InputFile))
	} else {
		emailReader = os.Stdin
		logger.Info("Reading email from stdin")
	}

	// Parse email
	msg, err := mail.ReadMessage(bufio.NewReader(emailReader))
	if err != nil {
		logger.Fatal("Failed to parse email", zap.Error(err))
	}

	bodyBytes, err := io.ReadAll(msg.Body)
	if err != nil {
		logger.Fatal("Failed to read email body", zap.Error(err))
	}

	email := &core.Email{
		From:    msg.Header.Get("From"),
		To:      msg.Header.Get("To"),
		Subject: msg.Header.Get("Subject"),
		Text:    string(bodyBytes),
	}

	// Print email summary
	fmt.Printf("\n=== Email Summary ===\n")
	fmt.Printf("From: %s\n", email.From)
	fmt.Printf("Subject: %s\n", email.Subject)
	fmt.Printf("Body length: %d bytes\n", len(email.Text))
	fmt.Printf("\n")

	suggestion, err := svc.Suggest(ctx, email)
	if errors.Is(err, reply.ErrNoContext) {
		fmt.Printf("=== Result ===\n")
		fmt.Printf("No relevant context found, cannot suggest a reply.\n")
		return nil
	}
	if err != nil {
		logger.Fatal("Failed to generate reply", zap.Error(err))
	}

	fmt.Printf("=== Suggested Reply ===\n")
	fmt.Printf("%s\n", suggestion)
	return nil
}
