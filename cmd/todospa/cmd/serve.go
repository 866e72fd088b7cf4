package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/todospa/server"
)

// NewServeCommand creates the serve command, which runs the demo server.
func NewServeCommand(root *rootOptions) *cobra.Command {
	var (
		port   int
		dbPath string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the todo JSON:API server",
		Long: `Serve the SPA page at /c and /card and the todo collection at
/api/v1/todos. Todos are kept in memory unless a bbolt file is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, base, logger, err := root.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("db") {
				cfg.Server.DBPath = dbPath
			}
			if err := cfg.Server.Validate(); err != nil {
				return err
			}

			st, err := server.OpenStore(cfg.Server)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := st.Close(); cerr != nil {
					base.WithError(cerr).Error("Failed to close store")
				}
			}()

			srv, err := server.New(cfg.Server, st, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on")
	cmd.Flags().StringVar(&dbPath, "db", "", "bbolt database file")
	return cmd
}
