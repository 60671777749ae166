package main

import (
	"errors"
	"fmt"

	redisCache "shortlinks/internal/repository/redis"

	"github.com/spf13/cobra"
)

var flushCacheCmd = &cobra.Command{
	Use:   "flush-cache",
	Short: "Drop every cached link from Redis",
	Long: `Removes all link entries from the shared Redis cache. Servers fall
back to the store and repopulate the cache on demand.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if !cfg.Redis.Enabled {
			return errors.New("the shared cache needs REDIS_ENABLED=true")
		}

		client, err := redisCache.InitRedis(ctx, cfg.Redis.RedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer client.Close()

		deleted, err := redisCache.NewCache(client, cfg.Redis.CacheTTL).Clear(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached links\n", deleted)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(flushCacheCmd)
}
