// Command feed tails the caller's submitted issues: one initial fetch
// from the relay, then live insert/update events from the platform's
// change feed, reconciled into a newest-first view.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/civitas-labs/issue-relay/internal/config"
	"github.com/civitas-labs/issue-relay/internal/credstore"
	"github.com/civitas-labs/issue-relay/internal/history"
	"github.com/civitas-labs/issue-relay/internal/logger"
	"github.com/civitas-labs/issue-relay/internal/platform"
	"github.com/civitas-labs/issue-relay/internal/realtime"
	"github.com/civitas-labs/issue-relay/internal/report"
	"github.com/civitas-labs/issue-relay/internal/submit"
)

func main() {
	config.LoadConfig()
	cfg := config.AppConfig
	cfg.RequirePlatform()

	log := logger.New(logger.FromConfig(cfg.LogLevel, cfg.LogFormat))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := credstore.Default()
	token, err := store.Token(ctx)
	if err != nil || token == "" {
		fmt.Fprintln(os.Stderr, "not signed in; run `reporter signin` first")
		os.Exit(1)
	}

	// The subscription is scoped to the account the token belongs to.
	platformClient := platform.NewClient(cfg.PlatformURL, cfg.PlatformAnonKey, "")
	user, err := platformClient.GetUser(ctx, token)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	fetcher := submit.NewSubmitter(cfg.RelayURL, store)
	dialer := realtime.NewDialer(cfg.PlatformURL, cfg.PlatformAnonKey, log)

	subscribe := func(ctx context.Context) (history.ChangeStream, error) {
		return dialer.Subscribe(ctx, user.ID, token)
	}

	feed := history.NewFeed(user.ID, fetcher, subscribe, log)
	if err := feed.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	defer feed.Stop()

	for _, record := range feed.Snapshot() {
		printRecord("", record)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-quit:
			return
		case change := <-feed.Updates():
			printRecord(string(change.Type)+" ", change.Record)
		}
	}
}

func printRecord(prefix string, r report.Record) {
	text := ""
	if r.Text != nil {
		text = *r.Text
	}
	fmt.Printf("%s%s  %-16s  %-12s  %-11s  %s\n",
		prefix, r.CreatedAt.Format("2006-01-02 15:04"), r.Category, r.Department,
		r.EffectiveStatus(), text)
}
