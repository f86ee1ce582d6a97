package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"strings"

	"github.com/maxence-charriere/go-app/v10/pkg/app"

	"github.com/kidandcat/issuedeck/internal/ai"
	"github.com/kidandcat/issuedeck/internal/api"
	"github.com/kidandcat/issuedeck/internal/config"
	"github.com/kidandcat/issuedeck/internal/db"
	"github.com/kidandcat/issuedeck/internal/service"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	dbPath := flag.String("db", "issuedeck.db", "sqlite database path")
	flag.Parse()

	cfg := config.Load(*addr, *dbPath)

	store, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	// Sync admin users from config
	ctx := context.Background()
	for _, email := range cfg.AdminEmails {
		name := strings.Split(email, "@")[0]
		if err := store.EnsureAdmin(ctx, email, name); err != nil {
			log.Fatal(err)
		}
		log.Printf("admin user: %s", email)
	}

	var summarizer service.Summarizer
	aiClient, err := ai.NewClient(cfg.AI.APIKey, cfg.AI.Model)
	switch {
	case err == nil:
		summarizer = aiClient
	case errors.Is(err, ai.ErrNoAPIKey):
		log.Printf("AI summaries disabled (no API key)")
	default:
		log.Fatal(err)
	}

	svc := service.New(store, summarizer)

	mux := http.NewServeMux()
	api.New(svc).RegisterRoutes(mux)

	// go-app shell for the wasm board client
	mux.Handle("/", &app.Handler{
		Name:        "issuedeck",
		Title:       "issuedeck",
		Description: "Project and issue tracker",
		Styles:      []string{"/web/board.css"},
	})

	log.Printf("issuedeck running on %s", cfg.Addr)
	log.Fatal(http.ListenAndServe(cfg.Addr, mux))
}
