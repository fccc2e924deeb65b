package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NicolasHaas/chatd/pkg/model"
	"github.com/NicolasHaas/chatd/pkg/server"
	"github.com/NicolasHaas/chatd/pkg/store"
)

var addLevel int

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts in the user database",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username> <password>",
	Short: "Create an account",
	Args:  cobra.ExactArgs(2),
	RunE: withStore(func(cmd *cobra.Command, st store.UserStore, args []string) error {
		level := model.Privilege(addLevel)
		if !level.Valid() {
			return model.ErrInvalidPrivilege
		}
		u, err := st.CreateUser(args[0], args[1], level)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", u.Username, u.Rank())
		return nil
	}),
}

var userSetLevelCmd = &cobra.Command{
	Use:   "set-level <username> <level>",
	Short: "Change an account's privilege level (0 to 4)",
	Args:  cobra.ExactArgs(2),
	RunE: withStore(func(cmd *cobra.Command, st store.UserStore, args []string) error {
		level, err := model.ParsePrivilege(args[1])
		if err != nil {
			return err
		}
		if err := st.SetPrivilege(args[0], level); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", args[0], level)
		return nil
	}),
}

var userBanCmd = &cobra.Command{
	Use:   "ban <username>",
	Short: "Ban an account",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(cmd *cobra.Command, st store.UserStore, args []string) error {
		if err := st.Ban(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "banned %s\n", args[0])
		return nil
	}),
}

var userUnbanCmd = &cobra.Command{
	Use:   "unban <username>",
	Short: "Lift a ban",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(cmd *cobra.Command, st store.UserStore, args []string) error {
		if err := st.Unban(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "un-banned %s\n", args[0])
		return nil
	}),
}

var userExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print all accounts as YAML",
	Args:  cobra.NoArgs,
	RunE: withStore(func(cmd *cobra.Command, st store.UserStore, args []string) error {
		data, err := server.ExportUsersYAML(st)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}),
}

func init() {
	userAddCmd.Flags().IntVar(&addLevel, "level", int(model.PrivilegeUser), "Privilege level (0 to 4)")
	userCmd.AddCommand(userAddCmd, userSetLevelCmd, userBanCmd, userUnbanCmd, userExportCmd)
}

// withStore opens the configured database for the duration of fn.
func withStore(fn func(cmd *cobra.Command, st store.UserStore, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		_, st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()
		return fn(cmd, st, args)
	}
}
