package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/flexway/flextea/internal/config"
	"github.com/flexway/flextea/internal/telegram"
)

// setwebhook registers the server's webhook URL with Telegram. Run it once
// after deploying, or again whenever PUBLIC_URL or WEBHOOK_SECRET changes.
func main() {
	cfg := config.Load()

	if cfg.BotToken == "" {
		fmt.Fprintln(os.Stderr, "BOT_TOKEN is required")
		os.Exit(1)
	}
	if cfg.PublicURL == "" {
		fmt.Fprintln(os.Stderr, "PUBLIC_URL is required")
		os.Exit(1)
	}
	if cfg.GeneratedSecret {
		fmt.Fprintln(os.Stderr, "WEBHOOK_SECRET is required (a generated secret would not match the server's)")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tg := telegram.NewClient(cfg.BotToken)

	me, err := tg.GetMe(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "token check failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("bot: @%s (id %d)\n", me.Username, me.ID)

	url := cfg.PublicURL + "/webhook/" + cfg.WebhookSecret
	if err := tg.SetWebhook(ctx, url); err != nil {
		fmt.Fprintf(os.Stderr, "setWebhook failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("webhook set: %s/webhook/***\n", cfg.PublicURL)
}
