//go:build ignore

// Seeds a development database with an admin, two agents with a user each,
// and a handful of leads. Leads are not delivered to the CRM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/tlogandesigns/site-visitor-dash/internal/access"
	"github.com/tlogandesigns/site-visitor-dash/internal/accounts"
	"github.com/tlogandesigns/site-visitor-dash/internal/crmsync"
	"github.com/tlogandesigns/site-visitor-dash/internal/database"
	"github.com/tlogandesigns/site-visitor-dash/internal/database/models"
	"github.com/tlogandesigns/site-visitor-dash/internal/leads"
	"github.com/tlogandesigns/site-visitor-dash/pkg/config"
	"github.com/tlogandesigns/site-visitor-dash/pkg/util"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env, cfg.Server.LogLevel)
	ctx := context.Background()

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		password = "password123"
	}

	svc := accounts.NewService(db, logger)

	admin, _, err := svc.UpsertAdmin(ctx, "admin", password, "admin@example.com", models.RoleAdmin)
	if err != nil {
		log.Fatalf("failed to create admin: %v", err)
	}
	adminActor := access.Actor{ID: admin.ID, Username: admin.Username, Role: admin.Role}

	demo := []struct {
		agent    string
		username string
		site     string
		buyers   []string
	}{
		{"Morgan Agent", "morgan", "Cedar Creek", []string{"Avery Stone", "Blake Rivers"}},
		{"Taylor Agent", "taylor", "Oak Hollow", []string{"Jordan Lake"}},
	}

	// No webhook: every seeded lead lands in the unsynced backlog.
	pipeline := crmsync.NewPipeline(db, crmsync.NewWebhookClient("", "", 0), crmsync.ConfigFrom(&cfg.CRM), logger)
	leadSvc := leads.NewService(db, pipeline, logger)

	for _, d := range demo {
		agent, err := svc.CreateAgent(ctx, accounts.CreateAgentInput{
			Name:  d.agent,
			CRMID: "demo-" + d.username,
			Email: d.username + "@example.com",
			Sites: []string{d.site},
		})
		if errors.Is(err, accounts.ErrAgentExists) {
			fmt.Printf("Agent %s already exists, skipping\n", d.agent)
			continue
		}
		if err != nil {
			log.Fatalf("failed to create agent: %v", err)
		}

		if _, err := svc.CreateUser(ctx, adminActor, accounts.CreateUserInput{
			Username: d.username,
			Password: password,
			Email:    d.username + "@example.com",
			Role:     models.RoleUser,
			AgentID:  &agent.ID,
		}); err != nil && !errors.Is(err, accounts.ErrUserExists) {
			log.Fatalf("failed to create user: %v", err)
		}

		for _, buyer := range d.buyers {
			if _, err := leadSvc.Create(ctx, adminActor, leads.CreateInput{
				BuyerName:        buyer,
				BuyerPhone:       "555-0100",
				FirstVisit:       true,
				PurchaseTimeline: string(models.Timeline3To6Months),
				PriceRange:       string(models.Price400kTo500k),
				Notes:            "Seeded lead",
				CapturingAgentID: &agent.ID,
				Site:             d.site,
			}); err != nil {
				log.Fatalf("failed to create lead: %v", err)
			}
		}

		fmt.Printf("Seeded %s (%s) at %s with %d leads\n", d.agent, d.username, d.site, len(d.buyers))
	}

	fmt.Printf("Admin login: admin / %s\n", password)
}
