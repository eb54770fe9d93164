package seeder

import (
	"context"
	"errors"
	"log"

	"github.com/winterlabs/multichat/internal/account"
)

const (
	DemoLogin    = "demo"
	DemoPassword = "demo-password-12345"
)

// SeedDemoUser creates a well-known local account for manual testing.
// Idempotent: an existing login is left alone.
func SeedDemoUser(ctx context.Context, store account.Store, signupBalance float64) {
	user := &account.User{
		Login:    DemoLogin,
		FullName: "Demo User",
		Balance:  signupBalance,
	}

	err := store.Create(ctx, user, account.HashPassword(DemoPassword))
	if errors.Is(err, account.ErrLoginTaken) {
		log.Printf("[Seeder] Demo user already exists, skipping")
		return
	}
	if err != nil {
		log.Printf("[Seeder] Failed to create demo user: %v", err)
		return
	}
	log.Printf("[Seeder] Demo user created successfully")
	log.Printf("[Seeder] Login: %s", DemoLogin)
	log.Printf("[Seeder] Password: %s", DemoPassword)
}
