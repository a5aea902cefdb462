package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/suPer8Hu/personachat/internal/chat"
	"github.com/suPer8Hu/personachat/internal/store/rabbitmq"
)

var workerConcurrency int

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume async chat jobs from RabbitMQ",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.RabbitURL == "" {
			return errors.New("rabbit_url is required for the worker")
		}
		if workerConcurrency > 0 {
			cfg.WorkerConcurrency = workerConcurrency
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		consumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, rabbitmq.ConsumerOptions{
			Queue:       cfg.RabbitQueue,
			Concurrency: cfg.WorkerConcurrency,
			MaxRetries:  cfg.JobMaxRetries,
			RetryDelay:  cfg.JobRetryDelay,
		})
		if err != nil {
			return err
		}
		defer consumer.Close()

		return consumer.Run(ctx, timedJob(a.svc))
	},
}

// timedJob logs slow or failed jobs the way the API logs slow requests.
func timedJob(svc *chat.Service) rabbitmq.HandlerFunc {
	return func(ctx context.Context, jobID string) error {
		start := time.Now()
		err := svc.RunJob(ctx, jobID)
		total := time.Since(start)
		if err != nil {
			log.Printf("job_timing_failed job=%s total=%s err=%v", jobID, total, err)
			return err
		}
		if total > 2*time.Second {
			log.Printf("job_timing job=%s total=%s", jobID, total)
		}
		return nil
	}
}

func init() {
	workerCmd.Flags().IntVar(&workerConcurrency, "concurrency", 0, "parallel jobs (overrides worker_concurrency)")
	rootCmd.AddCommand(workerCmd)
}
