package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/internal/app"
)

func migrateCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := app.OpenStore(cmd.Context(), rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			defer closeStore(db, rt.logger)

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s store is up to date\n", db.Dialect())
			return err
		},
	}
}
