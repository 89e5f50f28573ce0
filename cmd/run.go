package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/inkpress/inkpress/config"
	"github.com/inkpress/inkpress/internal/pipeline"
	srv "github.com/inkpress/inkpress/internal/server"
	"github.com/inkpress/inkpress/internal/store"
)

func runCMD() *cobra.Command {
	var cfgPath string
	var run = &cobra.Command{
		Use:   "run",
		Short: "Execute one publication run and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			ctx := context.Background()

			dsn, err := cfg.Storage.Postgres.DSN()
			if err != nil {
				return err
			}
			st, err := store.NewWithDSN(ctx, dsn)
			if err != nil {
				return fmt.Errorf("postgres connection failed: %w", err)
			}
			defer st.DB.Close()

			var rdb *redis.Client
			if addr := cfg.Storage.Redis.Addr(); addr != "" {
				rdb = redis.NewClient(&redis.Options{
					Addr:     addr,
					Password: cfg.Storage.Redis.Password,
					DB:       cfg.Storage.Redis.DB,
				})
				defer rdb.Close()
			}

			res := srv.BuildPipeline(cfg, st, rdb).Run(ctx, "cli")

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			if res.Status == pipeline.StatusFailed {
				return fmt.Errorf("run failed: %v", res.Errors)
			}
			return nil
		},
	}
	run.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return run
}
