package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/monitordev/monitor/internal/config"
	"github.com/monitordev/monitor/internal/store"
	"github.com/monitordev/monitor/internal/types"
	"github.com/monitordev/monitor/internal/util"
)

var userAdmin bool

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage API users",
}

var userCreateCmd = &cobra.Command{
	Use:   "create <username>",
	Short: "Create an API user and print its secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		st, err := store.Open(cmd.Context(), cfg.Database.Path)
		if err != nil {
			return err
		}
		defer st.Close()

		secret := uuid.NewString()
		hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		user := &types.User{
			Username:   args[0],
			Enabled:    true,
			Admin:      userAdmin,
			SecretHash: string(hash),
			CreatedAt:  util.UnixMillis(),
		}
		if _, err := st.Users.CreateOne(cmd.Context(), user); err != nil {
			return err
		}

		// the secret is shown exactly once, only the hash is stored
		fmt.Fprintf(cmd.OutOrStdout(), "created user %s\napi key:    %s\napi secret: %s\n",
			user.Username, user.Username, secret)
		return nil
	},
}

func init() {
	userCreateCmd.Flags().BoolVar(&userAdmin, "admin", false, "grant the user admin access")
	userCmd.AddCommand(userCreateCmd)
}
