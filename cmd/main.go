/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/containershare/lifecycle"
	"github.com/containershare/lifecycle/config"
	"github.com/containershare/lifecycle/gateway"
	"github.com/containershare/lifecycle/internal/notification"
	redis_db "github.com/containershare/lifecycle/internal/redis-db"
)

// CLI wraps the root Cobra command.
type CLI struct {
	cmd *cobra.Command
}

// lifecycleInstance holds what every command needs once configuration is loaded.
type lifecycleInstance struct {
	engine *lifecycle.Engine
	cnf    *config.Configuration
	redis  *redis_db.Redis
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and builds the engine before any command
// runs. Missing store credentials are fatal here.
func preRun(app *lifecycleInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(*configFile)
		if err != nil {
			log.Fatal("error loading config: ", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		engine, redisClient, err := setupEngine(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.engine = engine
		app.cnf = cnf
		app.redis = redisClient
		return nil
	}
}

// close releases the Redis connection opened for the batch lock, if any.
func (app *lifecycleInstance) close() error {
	if app.redis == nil {
		return nil
	}
	err := app.redis.Close()
	app.redis = nil
	return err
}

// setupEngine wires the records store client, the optional retry policy,
// the Redis batch lock and failure notifications into an Engine. Redis is
// optional: when it cannot be reached the engine runs without a lock.
func setupEngine(cfg *config.Configuration) (*lifecycle.Engine, *redis_db.Redis, error) {
	client, err := gateway.NewClient(cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating records store client: %w", err)
	}

	gw := gateway.WithRetry(client, gateway.RetryPolicy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: time.Duration(cfg.Retry.InitialIntervalMs) * time.Millisecond,
	})

	opts := []lifecycle.Option{lifecycle.WithFailureHook(notification.NotifyError)}

	var redisClient *redis_db.Redis
	if cfg.Redis.Dns != "" {
		redisClient, err = redis_db.NewRedisClient(cfg.Redis)
		if err != nil {
			logrus.WithError(err).Warn("Redis unavailable, expiration runs will not be serialised")
			redisClient = nil
		} else {
			opts = append(opts, lifecycle.WithBatchLock(redisClient.Client(), cfg.Expiration.RunTimeout()))
		}
	}

	return lifecycle.NewEngine(gw, cfg, opts...), redisClient, nil
}

// NewCLI creates the command-line interface with its subcommands.
func NewCLI() *CLI {
	var configFile string
	app := &lifecycleInstance{}

	var rootCmd = &cobra.Command{
		Use:   "lifecycle",
		Short: "Announcement lifecycle and expiration engine",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./lifecycle.json", "Configuration file for the expiration engine")
	rootCmd.PersistentPreRunE = preRun(app, &configFile)
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return app.close()
	}

	rootCmd.AddCommand(serverCommands(app))
	rootCmd.AddCommand(workerCommands(app))
	rootCmd.AddCommand(expireCommands(app))
	rootCmd.AddCommand(configCommands())

	return &CLI{cmd: rootCmd}
}

func (c CLI) executeCLI() {
	if err := c.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
