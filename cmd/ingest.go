package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/energyledger/infra/logger"
	"github.com/kilianp07/energyledger/infra/mqtt"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Store MQTT meter telemetry in the configured source",
	RunE:  runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := loadService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	sink, ok := svc.Appender()
	if !ok {
		return errors.New("source is read-only; use source.type sqlite for ingest")
	}
	sub, err := mqtt.NewSubscriber(svc.Config().MQTT, sink)
	if err != nil {
		return fmt.Errorf("mqtt subscriber: %w", err)
	}
	defer sub.Disconnect()

	log := logger.New("ingest")
	log.Infof("ingesting %s from %s", svc.Config().MQTT.Topic, svc.Config().MQTT.Broker)
	<-ctx.Done()
	st := sub.Stats()
	log.Infof("stopped: %d samples stored, %d dropped", st.Stored, st.Dropped)
	return nil
}
