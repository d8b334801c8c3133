/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bayanihan-data/povassess/config"
	"github.com/bayanihan-data/povassess/internal/db"
	"github.com/bayanihan-data/povassess/internal/services"
	"github.com/bayanihan-data/povassess/internal/store"
	"github.com/bayanihan-data/povassess/types"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userCreateFlags struct {
	name     string
	email    string
	password string
	role     string
	areaID   int
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account without going through the API",
	Long: `Create an account directly in the database. Use it to bootstrap the
first admin:

	povassess user create --email admin@example.org --name Admin --password ... --role admin
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log, err := newLogger(cfg)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer func() { _ = log.Sync() }()

		conn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer conn.Close()

		in := services.UserInput{
			Name:     userCreateFlags.name,
			Email:    userCreateFlags.email,
			Password: userCreateFlags.password,
			Role:     types.Role(userCreateFlags.role),
		}
		if userCreateFlags.areaID > 0 {
			in.AreaID = &userCreateFlags.areaID
		}

		users := services.NewUserService(store.NewUserRepository(conn), store.NewAreaRepository(conn), log)
		user, err := users.Bootstrap(cmd.Context(), in)
		if err != nil {
			return err
		}
		log.Info("user created", zap.Int("user_id", user.ID), zap.String("role", string(user.Role)))
		fmt.Fprintf(cmd.OutOrStdout(), "created user %d (%s, %s)\n", user.ID, user.Email, user.Role)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd)

	f := userCreateCmd.Flags()
	f.StringVar(&userCreateFlags.name, "name", "", "display name")
	f.StringVar(&userCreateFlags.email, "email", "", "login email")
	f.StringVar(&userCreateFlags.password, "password", "", "initial password (min 8 characters)")
	f.StringVar(&userCreateFlags.role, "role", string(types.RoleAdmin), "admin, ngo_staff or worker")
	f.IntVar(&userCreateFlags.areaID, "area-id", 0, "assigned area, required for workers")
	_ = userCreateCmd.MarkFlagRequired("email")
	_ = userCreateCmd.MarkFlagRequired("name")
	_ = userCreateCmd.MarkFlagRequired("password")
}
