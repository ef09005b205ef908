package server

import (
	"errors"

	"dropnote/internal/auth"
	"dropnote/internal/store"
)

// DemoPassword is the password of every seeded demo account.
const DemoPassword = "secret"

// DemoAccounts are seeded so a fresh dev server has someone to deliver to.
var DemoAccounts = []string{"demo@example.com", "peer@example.com"}

// SeedDemoAccounts creates the demo accounts that do not exist yet.
func SeedDemoAccounts(st *store.Store) error {
	for _, email := range DemoAccounts {
		if _, ok := st.AccountByEmail(email); ok {
			continue
		}
		hash, err := auth.HashPassword(DemoPassword)
		if err != nil {
			return err
		}
		if _, err := st.CreateAccount(email, hash); err != nil && !errors.Is(err, store.ErrEmailTaken) {
			return err
		}
	}
	return nil
}
