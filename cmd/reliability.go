package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/courier-dispatch/infra/reliability"
)

const reliabilityTimeout = 5 * time.Second

var reliabilityCmd = &cobra.Command{
	Use:   "reliability",
	Short: "Manage courier reliability scores stored in Redis",
}

var reliabilitySetCmd = &cobra.Command{
	Use:   "set <courierID> <score>",
	Short: "Set the reliability score of a courier",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		score, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid score %q: %w", args[1], err)
		}
		return withReliability(cmd.Context(), func(ctx context.Context, src *reliability.RedisSource) error {
			if err := src.Set(ctx, args[0], score); err != nil {
				return err
			}
			cmd.Printf("%s=%g\n", args[0], score)
			return nil
		})
	},
}

var reliabilityGetCmd = &cobra.Command{
	Use:   "get <courierID>",
	Short: "Print the reliability score of a courier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReliability(cmd.Context(), func(ctx context.Context, src *reliability.RedisSource) error {
			score, ok, err := src.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no score stored for courier %s", args[0])
			}
			cmd.Printf("%s=%g\n", args[0], score)
			return nil
		})
	},
}

var reliabilityDeleteCmd = &cobra.Command{
	Use:   "delete <courierID>",
	Short: "Remove the reliability score of a courier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReliability(cmd.Context(), func(ctx context.Context, src *reliability.RedisSource) error {
			return src.Delete(ctx, args[0])
		})
	},
}

func init() {
	reliabilityCmd.AddCommand(reliabilitySetCmd, reliabilityGetCmd, reliabilityDeleteCmd)
	rootCmd.AddCommand(reliabilityCmd)
}

// withReliability opens the Redis source configured under reliability,
// falling back to the default address when the backend is disabled.
func withReliability(parent context.Context, fn func(context.Context, *reliability.RedisSource) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rc := cfg.Reliability
	rc.Backend = reliability.BackendRedis
	rc.SetDefaults()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, reliabilityTimeout)
	defer cancel()

	src := reliability.NewRedisSource(rc)
	defer func() { _ = src.Close() }()
	return fn(ctx, src)
}
