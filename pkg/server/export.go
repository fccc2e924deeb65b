package server

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/NicolasHaas/chatd/pkg/store"
)

// UserYAML represents a user in YAML export.
type UserYAML struct {
	Username  string `yaml:"username"`
	Privilege int    `yaml:"privilege"`
	Rank      string `yaml:"rank"`
	Banned    bool   `yaml:"banned,omitempty"`
	CreatedAt string `yaml:"created_at"`
}

// UsersExport is the top-level YAML for user export.
type UsersExport struct {
	Users []UserYAML `yaml:"users"`
}

// ExportUsersYAML exports all accounts, without credentials, as YAML.
func ExportUsersYAML(st store.UserStore) ([]byte, error) {
	users, err := st.ListUsers()
	if err != nil {
		return nil, fmt.Errorf("server: export users: %w", err)
	}

	export := UsersExport{Users: []UserYAML{}}
	for _, u := range users {
		export.Users = append(export.Users, UserYAML{
			Username:  u.Username,
			Privilege: int(u.Privilege),
			Rank:      u.Rank(),
			Banned:    u.Banned,
			CreatedAt: u.CreatedAt.Format("2006-01-02T15:04:05Z"),
		})
	}
	return yaml.Marshal(&export)
}
