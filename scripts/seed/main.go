package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/odyssey-erp/odyssey-starter/internal/app"
	"github.com/odyssey-erp/odyssey-starter/internal/auth"
	"github.com/odyssey-erp/odyssey-starter/internal/platform/db"
	"github.com/odyssey-erp/odyssey-starter/internal/users"
)

type demoUser struct {
	username  string
	email     string
	password  string
	firstName string
	lastName  string
	role      string
}

var demoUsers = []demoUser{
	{"manager", "manager@odyssey.local", "manager123", "Maria", "Manager", users.RoleUser},
	{"analyst", "analyst@odyssey.local", "analyst123", "Ana", "Analyst", users.RoleUser},
	{"auditor", "", "auditor123", "", "", users.RoleUser},
}

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer conn.Close()

	store, err := users.NewStore(conn)
	if err != nil {
		log.Fatalf("user store: %v", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}
	hasher, err := auth.NewHasher(cfg.HasherParams())
	if err != nil {
		log.Fatalf("hasher: %v", err)
	}

	fmt.Println("→ Seeding admin...")
	if _, err := auth.NewBootstrapper(store, hasher, nil).Run(ctx, cfg.AdminCredentials()); err != nil {
		log.Fatalf("bootstrap admin: %v", err)
	}

	fmt.Println("→ Seeding demo users...")
	created, err := seedUsers(ctx, store, hasher, demoUsers)
	if err != nil {
		log.Fatalf("seed users: %v", err)
	}
	fmt.Printf("  %d created, %d already present\n", created, len(demoUsers)-created)

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

// seedUsers inserts each demo user, skipping ones whose username or email
// is already taken.
func seedUsers(ctx context.Context, store users.Store, hasher *auth.Hasher, specs []demoUser) (int, error) {
	created := 0
	for _, spec := range specs {
		hash, err := hasher.Hash(spec.password)
		if err != nil {
			return created, err
		}
		u := users.New(spec.username, "seed")
		u.Email = spec.email
		u.SecretHash = hash
		u.FirstName = spec.firstName
		u.LastName = spec.lastName
		u.Role = spec.role
		u.Active = true
		u.EmailVerified = spec.email != ""

		if err := store.Insert(ctx, u); err != nil {
			var conflict *users.ConflictError
			if errors.As(err, &conflict) {
				continue
			}
			return created, fmt.Errorf("insert %s: %w", spec.username, err)
		}
		created++
	}
	return created, nil
}
