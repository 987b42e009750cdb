// seed inserts a verified admin, a verified user and a user awaiting
// verification into the local dev database.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/ErlanBelekov/authflow/internal/domain"
	"github.com/ErlanBelekov/authflow/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/authflow/internal/password"
	"github.com/ErlanBelekov/authflow/internal/token"
)

const seedPassword = "password123"

type seedUser struct {
	name     string
	email    string
	verified bool
	admin    bool
}

var users = []seedUser{
	{"Seed Admin", "admin@test.local", true, true},
	{"Seed User", "user@test.local", true, false},
	{"Seed Pending", "pending@test.local", false, false},
}

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set, run: direnv allow")
	}

	pool, err := postgres.NewPool(ctx, dbURL, "authflow-seed")
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	if err = postgres.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	repo := postgres.NewUserRepository(pool)
	hash, err := password.Hash(seedPassword, password.DefaultCost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	fmt.Println("Seed complete")
	fmt.Println()
	for _, su := range users {
		line, err := seed(ctx, repo, su, hash)
		if err != nil {
			log.Fatalf("seed %s: %v", su.email, err)
		}
		fmt.Println("  " + line)
	}

	fmt.Println()
	fmt.Printf("  Password for every account: %s\n", seedPassword)
	fmt.Println()
	fmt.Println("Log in:")
	fmt.Println()
	fmt.Printf("    curl -s -X POST http://localhost:8080/auth/email \\\n")
	fmt.Printf("      -H 'Content-Type: application/json' \\\n")
	fmt.Printf("      -d '{\"email\":\"user@test.local\",\"password\":\"%s\"}'\n", seedPassword)
	fmt.Println("    # → {\"token\":\"eyJ...\",\"expiresAt\":\"...\"}")
	fmt.Println()
	fmt.Println("    curl -s http://localhost:8080/auth -H \"Authorization: Bearer $JWT\"")
}

func seed(ctx context.Context, repo *postgres.UserRepository, su seedUser, hash string) (string, error) {
	existing, err := repo.FindByEmail(ctx, su.email)
	if err == nil {
		return fmt.Sprintf("%-20s %s (already present)", su.email, existing.ID), nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return "", err
	}

	u := &domain.User{
		Email:        su.email,
		PasswordHash: hash,
		Profile:      domain.Profile{Name: su.name},
		Verified:     su.verified,
	}
	var rawToken string
	if !su.verified {
		if rawToken, err = token.Generate(20); err != nil {
			return "", err
		}
		h := token.Hash(rawToken)
		u.VerifyTokenHash = &h
	}

	created, err := repo.Create(ctx, u)
	if err != nil {
		return "", err
	}

	if su.admin {
		marker, err := token.Generate(16)
		if err != nil {
			return "", err
		}
		if _, err = repo.PromoteAdmin(ctx, created.ID, marker); err != nil {
			return "", err
		}
		return fmt.Sprintf("%-20s %s admin", su.email, created.ID), nil
	}
	if rawToken != "" {
		return fmt.Sprintf("%-20s %s verify token %s", su.email, created.ID, rawToken), nil
	}
	return fmt.Sprintf("%-20s %s", su.email, created.ID), nil
}
