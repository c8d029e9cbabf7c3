package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/spf13/cobra"

	natsclient "github.com/telhawk-systems/rawproc/internal/messaging/nats"
	"github.com/telhawk-systems/rawproc/internal/notification"
	"github.com/telhawk-systems/rawproc/internal/processor"
	"github.com/telhawk-systems/rawproc/internal/server"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Consume bucket notifications from NATS JetStream",
	Long: `Pulls bucket notifications from a durable JetStream consumer and processes
each batch. Successful batches are acked, undecodable notifications are
terminated and failed batches are redelivered after nats.nak_delay until
nats.max_deliver is reached. Health and metrics are served on server.addr.`,
	Args: cobra.NoArgs,
	RunE: runConsume,
}

func init() {
	rootCmd.AddCommand(consumeCmd)
}

type batchHandler interface {
	Handle(ctx context.Context, evt events.S3Event) (processor.Result, error)
}

// notificationHandler adapts a batch handler to raw JetStream payloads.
func notificationHandler(h batchHandler) natsclient.Handler {
	return func(ctx context.Context, data []byte) error {
		evt, err := notification.Decode(data)
		if err != nil {
			return fmt.Errorf("%w: %v", natsclient.ErrTerminal, err)
		}
		if _, err := h.Handle(ctx, evt); err != nil {
			if errors.Is(err, notification.ErrMalformed) {
				return fmt.Errorf("%w: %v", natsclient.ErrTerminal, err)
			}
			return err
		}
		return nil
	}
}

func runConsume(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, "rawproc-consume")
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	if err := cfg.ValidateNATS(); err != nil {
		return err
	}

	js, err := natsclient.NewJetStreamClient(natsclient.Config{
		URL:           cfg.NATS.URL,
		Name:          cfg.NATS.Name,
		MaxReconnects: cfg.NATS.MaxReconnects,
		ReconnectWait: cfg.NATS.ReconnectWait,
		Timeout:       5 * time.Second,
	}, a.logger)
	if err != nil {
		return err
	}
	defer js.Drain()

	if _, err := js.CreateOrUpdateStream(ctx, natsclient.DefaultStreamConfig(cfg.NATS.Stream, []string{cfg.NATS.Subject})); err != nil {
		return err
	}

	consumerCfg := natsclient.DefaultConsumerConfig(cfg.NATS.Consumer, cfg.NATS.Subject)
	consumerCfg.AckWait = cfg.NATS.AckWait
	consumerCfg.MaxDeliver = cfg.NATS.MaxDeliver
	if _, err := js.CreateOrUpdateConsumer(ctx, cfg.NATS.Stream, consumerCfg); err != nil {
		return err
	}

	stopConsuming, err := js.ConsumeMessages(ctx, cfg.NATS.Stream, cfg.NATS.Consumer, notificationHandler(a.processor), cfg.NATS.NakDelay)
	if err != nil {
		return err
	}
	defer stopConsuming()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.NewRouter(a.processor, js.IsConnected),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	a.logger.Info("consuming notifications",
		"stream", cfg.NATS.Stream,
		"subject", cfg.NATS.Subject,
		"consumer", cfg.NATS.Consumer,
		"addr", cfg.Server.Addr,
	)

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("health server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
