package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/shoplist/core/internal/mq"
	"github.com/spf13/cobra"
)

var watchCollection string

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Follow document changes published by the server",
}

var changesWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print document changes as they are published",
	Long: `Subscribes to the change channel (MQ_BACKEND, MQ_CHANNEL) and prints one
line per created, updated or deleted document. Usage:

	shoplist changes watch --collection products
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg, mq.WithLogger(logger))
		if err != nil {
			return err
		}
		if queue == nil {
			return errors.New("MQ_BACKEND is not configured")
		}
		defer queue.Close()

		logger.Info("watching document changes", "backend", cfg.MQ.Backend, "channel", cfg.MQ.Channel)
		err = queue.SubscribeChanges(ctx, cfg.MQ.Channel, func(_ context.Context, change mq.DocumentChange) error {
			if watchCollection != "" && change.Collection != watchCollection {
				return nil
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s/%s\t%s\n",
				change.At.Local().Format(time.DateTime), change.Action, change.Collection, change.ID, change.AccountID)
			return err
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(changesCmd)
	changesCmd.AddCommand(changesWatchCmd)
	changesWatchCmd.Flags().StringVar(&watchCollection, "collection", "", "only print changes to this collection")
}
