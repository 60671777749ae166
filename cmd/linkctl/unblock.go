package main

import (
	"errors"
	"fmt"
	"time"

	"shortlinks/internal/ratelimit"
	redisCache "shortlinks/internal/repository/redis"

	"github.com/spf13/cobra"
)

var unblockCmd = &cobra.Command{
	Use:   "unblock IP",
	Short: "Clear the rate limit window of a client IP",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if !cfg.Redis.Enabled {
			return errors.New("rate limiting needs REDIS_ENABLED=true")
		}

		client, err := redisCache.InitRedis(ctx, cfg.Redis.RedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer client.Close()

		limiter := ratelimit.NewFixedWindowLimiter(client, cfg.App.RateLimitPerMinute, time.Minute)
		if err := limiter.Reset(ctx, args[0]); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Rate limit cleared for %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(unblockCmd)
}
