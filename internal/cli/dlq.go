package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/pkg/redis"
)

func dlqCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect purchase events that were dead-lettered",
	}

	var count int64
	list := &cobra.Command{
		Use:   "list",
		Short: "Print the newest dead-lettered purchase events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !rt.cfg.RedisEnabled {
				return fmt.Errorf("the dead letter queue needs REDIS_ENABLED=true")
			}
			ctx := cmd.Context()
			client, err := redis.NewClient(ctx, redis.Config{
				Addr:     rt.cfg.RedisAddr(),
				Password: rt.cfg.RedisPassword,
				DB:       rt.cfg.RedisDB,
			}, rt.logger)
			if err != nil {
				return err
			}
			defer client.Close()

			entries, err := redis.NewDeadLetterQueue(client, rt.cfg.DLQStream, rt.logger).List(ctx, count)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entries)
		},
	}
	list.Flags().Int64Var(&count, "count", 20, "how many entries to print")
	cmd.AddCommand(list)

	return cmd
}
