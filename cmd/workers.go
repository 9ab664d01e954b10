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
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.elastic.co/apm/module/apmlogrus/v2"

	"github.com/containershare/lifecycle/config"
	redis_db "github.com/containershare/lifecycle/internal/redis-db"
	"github.com/containershare/lifecycle/internal/tasks"
)

func init() {
	logrus.AddHook(&apmlogrus.Hook{})
}

func initializeWorkerServer(conf *config.Configuration, connOpt asynq.RedisClientOpt) *asynq.Server {
	return asynq.NewServer(
		connOpt,
		asynq.Config{
			Concurrency: 1,
			Queues:      map[string]int{conf.Schedule.Queue: 1},
		},
	)
}

func initializeScheduler(conf *config.Configuration, connOpt asynq.RedisClientOpt) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(connOpt, &asynq.SchedulerOpts{
		Location: conf.Expiration.Location(),
	})
	entryID, err := tasks.RegisterSchedule(scheduler, conf.Schedule, conf.Expiration.RunTimeout())
	if err != nil {
		return nil, fmt.Errorf("error registering expiration schedule %q: %w", conf.Schedule.Cron, err)
	}
	logrus.WithFields(logrus.Fields{"entry_id": entryID, "cron": conf.Schedule.Cron}).Info("Expiration run scheduled")
	return scheduler, nil
}

// workerCommands defines the "workers" command. It schedules the expiration
// task on the configured cron spec and processes it, one run at a time.
func workerCommands(app *lifecycleInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start the expiration scheduler and worker",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			conf := app.cnf

			shutdown, err := initializeObservability(ctx, conf)
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}()

			connOpt, err := redis_db.AsynqConnOpt(conf.Redis)
			if err != nil {
				log.Fatal("workers need Redis: ", err)
			}

			scheduler, err := initializeScheduler(conf, connOpt)
			if err != nil {
				log.Fatal(err)
			}
			if err := scheduler.Start(); err != nil {
				log.Fatalf("could not start scheduler: %v", err)
			}
			defer scheduler.Shutdown()

			mux := asynq.NewServeMux()
			tasks.NewHandler(app.engine, conf.Expiration.RunTimeout()).Register(mux)

			h := asynqmon.New(asynqmon.Options{
				RootPath:     "/monitoring",
				RedisConnOpt: connOpt,
			})
			go func() {
				monitoringAddr := fmt.Sprintf(":%s", conf.Schedule.MonitoringPort)
				log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
				if err := http.ListenAndServe(monitoringAddr, h); err != nil {
					log.Printf("could not start asynqmon server: %v", err)
				}
			}()

			srv := initializeWorkerServer(conf, connOpt)
			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
