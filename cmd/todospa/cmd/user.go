package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/todospa/server"
)

var errNoDatabase = errors.New("a database file is needed, set --db or server.db_path")

// NewUserCommand creates the user command group.
func NewUserCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts of the todo server",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}
	cmd.AddCommand(newUserAddCommand(root))
	return cmd
}

func newUserAddCommand(root *rootOptions) *cobra.Command {
	var (
		dbPath   string
		email    string
		username string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account",
		Long: `Add creates an account in the server's bbolt database. The password is
read from the first line of stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, base, logger, err := root.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("db") {
				cfg.Server.DBPath = dbPath
			}
			if cfg.Server.DBPath == "" {
				return errNoDatabase
			}
			if err := cfg.Server.Validate(); err != nil {
				return err
			}

			password, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && password == "" {
				return fmt.Errorf("read password: %w", err)
			}
			u, err := server.NewUser(email, username, strings.TrimRight(password, "\r\n"), cfg.Server.PasswordCost)
			if err != nil {
				return err
			}

			st, err := server.OpenBoltStore(cfg.Server.DBPath)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := st.Close(); cerr != nil {
					base.WithError(cerr).Error("Failed to close store")
				}
			}()
			if err := st.CreateUser(cmd.Context(), u); err != nil {
				return err
			}
			logger.Info("Created user", "id", u.ID, "username", u.Username)
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", u.Username, u.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "bbolt database file")
	cmd.Flags().StringVar(&email, "email", "", "Email of the account")
	cmd.Flags().StringVar(&username, "username", "", "Username of the account")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}
