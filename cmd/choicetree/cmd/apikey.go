package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/choicetree/internal/core/auth"
	"github.com/solatis/choicetree/internal/core/config"
	"github.com/solatis/choicetree/internal/core/db"
)

var apiKeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Issue and revoke API keys",
}

var apiKeyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue a key for an org; the key is printed once",
	RunE: func(cmd *cobra.Command, args []string) error {
		org, _ := cmd.Flags().GetString("org")
		name, _ := cmd.Flags().GetString("name")

		a, closeDB, err := authenticator(cmd)
		if err != nil {
			return err
		}
		defer closeDB()

		keyID, key, err := a.Issue(cmd.Context(), org, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "id:  %s\nkey: %s\n", keyID, key)
		return nil
	},
}

var apiKeyRevokeCmd = &cobra.Command{
	Use:   "revoke <key-id>",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeDB, err := authenticator(cmd)
		if err != nil {
			return err
		}
		defer closeDB()
		return a.Revoke(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(apiKeyCmd)
	apiKeyCmd.AddCommand(apiKeyCreateCmd, apiKeyRevokeCmd)
	apiKeyCreateCmd.Flags().String("org", "", "org the key authenticates as")
	apiKeyCreateCmd.Flags().String("name", "", "key description")
	apiKeyCreateCmd.MarkFlagRequired("org")
}

// authenticator opens the database and loads secrets for key management.
func authenticator(cmd *cobra.Command) (*auth.Authenticator, func(), error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	secrets, err := config.HMACSecrets()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load HMAC secrets: %w", err)
	}

	database, err := openDB(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	queries, err := db.LoadQueries(database)
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	return auth.NewAuthenticator(secrets, queries, logger), func() { database.Close() }, nil
}
