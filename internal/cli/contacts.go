package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/internal/services/identify"
	appcontext "github.com/Ramsey-B/fern/pkg/context"
)

func contactsCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "Inspect or reset the contact store",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print every stored contact row",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := appcontext.SetSource(cmd.Context(), appcontext.SourceCLI)
			return rt.withService(ctx, func(svc *identify.Service) error {
				list, err := svc.List(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), list)
			})
		},
	})

	var yes bool
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Delete every contact and restart id assignment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete every contact without --yes")
			}
			ctx := appcontext.SetSource(cmd.Context(), appcontext.SourceCLI)
			return rt.withService(ctx, func(svc *identify.Service) error {
				msg, err := svc.Reset(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), msg)
			})
		},
	}
	reset.Flags().BoolVar(&yes, "yes", false, "confirm deleting every contact")
	cmd.AddCommand(reset)

	return cmd
}
