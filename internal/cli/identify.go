package cli

import (
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/internal/services/identify"
	appcontext "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/models"
)

func identifyCmd(rt *runtime) *cobra.Command {
	var email, phone string

	cmd := &cobra.Command{
		Use:   "identify",
		Short: "Reconcile an email and/or phone number and print the consolidated contact",
		Example: `  fern identify --email mcfly@hillvalley.edu --phone 123456
  fern identify --phone 123456`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := appcontext.SetSource(cmd.Context(), appcontext.SourceCLI)

			return rt.withService(ctx, func(svc *identify.Service) error {
				resp, err := svc.Identify(ctx, models.IdentifyRequest{
					Email:       models.FlexString(email),
					PhoneNumber: models.FlexString(phone),
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&phone, "phone", "", "phone number")

	return cmd
}
