package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/videlboga/scenarium"
	httpAdapter "github.com/videlboga/scenarium/pkg/adapters/http"
	redisAdapter "github.com/videlboga/scenarium/pkg/adapters/redis"
)

var serveCmd = &cobra.Command{
	Use:   "serve <scenario-dir>",
	Short: "Start the HTTP server",
	Long:  `Serves the engine over a JSON API and runs the task scheduler. With --redis, sessions, tasks and the traversal lock are backed by Redis and survive restarts.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetString("port")
		redisAddr, _ := cmd.Flags().GetString("redis")

		if err := runServe(args[0], port, redisAddr); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().String("redis", "", "Redis address (host:port); empty keeps everything in memory")
}

func runServe(dir, port, redisAddr string) error {
	logger := newLogger()

	opts := []scenarium.Option{scenarium.WithLogger(logger)}
	if redisAddr != "" {
		client := backend.NewClient(&backend.Options{Addr: redisAddr})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return fmt.Errorf("redis unreachable at %s: %w", redisAddr, err)
		}
		opts = append(opts,
			scenarium.WithSessionStore(redisAdapter.NewSessionStore(client)),
			scenarium.WithTaskStore(redisAdapter.NewTaskStore(client, "scenarium:")),
			scenarium.WithLocker(redisAdapter.NewLocker(client, "scenarium:")),
		)
	}

	engine, err := scenarium.New(dir, opts...)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: httpAdapter.NewHandler(engine, httpAdapter.WithLogger(logger), httpAdapter.WithTaskAdmin(engine.Scheduler())),
	}

	schedCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	go func() {
		if err := engine.RunScheduler(schedCtx); err != nil && schedCtx.Err() == nil {
			logger.Error("scheduler stopped", "err", err)
		}
	}()

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "scenarios", dir, "redis", redisAddr != "")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info("starting shutdown", "signal", sig.String())
		stopScheduler()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown did not complete", "err", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("could not stop server: %w", err)
			}
		}
		logger.Info("server stopped")
	}
	return nil
}
