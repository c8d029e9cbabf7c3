package cmd

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/spf13/cobra"

	"github.com/telhawk-systems/rawproc/internal/logging"
	natsclient "github.com/telhawk-systems/rawproc/internal/messaging/nats"
	"github.com/telhawk-systems/rawproc/internal/notification"
)

var replayCmd = &cobra.Command{
	Use:   "replay KEY...",
	Short: "Publish notifications for existing raw objects to JetStream",
	Long: `Publishes one notification per key onto nats.subject so that a running
consume process handles the objects again. Keys are given decoded.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().String("bucket", "", "bucket named in the notification (default: storage.raw_bucket)")
	rootCmd.AddCommand(replayCmd)
}

// replayDocument builds a single-record notification for a decoded key.
func replayDocument(bucket, key string) ([]byte, error) {
	evt := events.S3Event{Records: []events.S3EventRecord{
		notification.NewRecord(bucket, url.QueryEscape(key)),
	}}
	return json.Marshal(evt)
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateNATS(); err != nil {
		return err
	}
	logger := newLogger(cfg, "rawproc-replay")

	bucket, _ := cmd.Flags().GetString("bucket")
	if bucket == "" {
		bucket = cfg.Storage.RawBucket
	}

	js, err := natsclient.NewJetStreamClient(natsclient.Config{
		URL:     cfg.NATS.URL,
		Name:    cfg.NATS.Name + "-replay",
		Timeout: 5 * time.Second,
	}, logger)
	if err != nil {
		return err
	}
	defer js.Close()

	for _, key := range args {
		doc, err := replayDocument(bucket, key)
		if err != nil {
			return err
		}
		ack, err := js.PublishSync(cmd.Context(), cfg.NATS.Subject, doc)
		if err != nil {
			return fmt.Errorf("publish %s: %w", key, err)
		}
		logger.Info("replayed object", logging.Bucket(bucket), logging.Key(key), "stream", ack.Stream, "seq", ack.Sequence)
	}
	return nil
}
