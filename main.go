package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/korjavin/zahlbot/ai"
	"github.com/korjavin/zahlbot/broadcast"
	"github.com/korjavin/zahlbot/config"
	"github.com/korjavin/zahlbot/database"
	"github.com/korjavin/zahlbot/notify"
	"github.com/korjavin/zahlbot/resolver"
	"github.com/korjavin/zahlbot/server"
	"github.com/korjavin/zahlbot/store"
)

func main() {
	// Configure logging
	log.SetOutput(os.Stdout)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("Starting Zahlbot...")

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Load the question library. A missing or unreadable library starts
	// empty rather than aborting.
	entries, err := db.LoadQuestions()
	if err != nil {
		log.Printf("Error loading question library, starting empty: %v", err)
		entries = nil
	}
	library := store.New(db, entries)
	log.Printf("Loaded %d questions", library.Len())

	broadcaster := broadcast.New()
	oracle := ai.NewDeepseekClient(cfg.DeepseekAPIKey)
	core := resolver.New(library, oracle, db, broadcaster)

	// Optional Telegram notifier, wired as one more subscriber
	stopNotifier := func() {}
	if cfg.TelegramEnabled() {
		notifier, err := notify.NewTelegramNotifier(cfg.BotToken, cfg.NotifyChatID)
		if err != nil {
			log.Fatalf("Failed to initialize Telegram notifier: %v", err)
		}
		id, updates := broadcaster.Subscribe()
		go notifier.Run(updates)
		stopNotifier = func() { broadcaster.Unsubscribe(id) }
	}

	srv := server.New(cfg.ListenAddr, cfg.AdminSecret, core, broadcaster)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-stop:
		log.Printf("Received %s, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
		stopNotifier()
	}
}
