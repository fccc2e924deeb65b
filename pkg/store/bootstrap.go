package store

import (
	"fmt"
	"log/slog"

	"github.com/NicolasHaas/chatd/pkg/model"
)

// Bootstrap creates an Owner account when the store holds no accounts yet.
// It reports whether an account was created.
func Bootstrap(st UserStore, owner, password string) (bool, error) {
	if owner == "" {
		return false, nil
	}
	n, err := st.CountUsers()
	if err != nil {
		return false, fmt.Errorf("store: bootstrap: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	if _, err := st.CreateUser(owner, password, model.PrivilegeOwner); err != nil {
		return false, fmt.Errorf("store: bootstrap: %w", err)
	}
	slog.Info("created owner account", "user", owner)
	return true, nil
}
