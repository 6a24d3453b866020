package main

import (
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/jrsteele09/go-auth-core/internal/config"
	"github.com/jrsteele09/go-auth-core/internal/logging"
	"github.com/jrsteele09/go-auth-core/notify"
	"github.com/rs/zerolog/log"
)

// The mailer drains the email queue filled by NOTIFY_BACKEND=queue. Messages
// are written to the log; swap the Sender to deliver them for real.
func main() {
	c := config.Load()
	logging.Setup(c.GetEnv(), c.GetLogLevel())

	if err := run(c); err != nil {
		log.Fatal().Err(err).Msg("mailer stopped")
	}
}

func run(c config.Config) error {
	opt, err := asynq.ParseRedisURI(c.GetNotifyRedisURL())
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: 4,
		Queues:      map[string]int{notify.EmailQueue: 1},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(notify.TaskTypeEmail, notify.HandleEmailTask(notify.LogSender{From: c.GetEmailFrom()}))

	log.Info().Str("queue", notify.EmailQueue).Msg("mailer worker started")
	// Run blocks until SIGTERM or SIGINT
	if err := srv.Run(mux); err != nil {
		return fmt.Errorf("asynq server: %w", err)
	}
	return nil
}
