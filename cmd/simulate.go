package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rapidreach/rrops/infra/logger"
	"github.com/rapidreach/rrops/simulator"
)

var simEmbedded string

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Answer CLI bridge commands like a bench device",
	RunE:  runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simEmbedded, "embedded", "", "also run a broker on this host:port and connect to it")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.New("simulator")
	mc := cfg.MQTT
	if simEmbedded != "" {
		b, err := simulator.NewBroker(simEmbedded, logger.NewSlog("broker"))
		if err != nil {
			return err
		}
		if err := <-b.Start(); err != nil {
			return fmt.Errorf("embedded broker: %w", err)
		}
		defer func() {
			if err := b.Close(); err != nil {
				log.Errorf("close broker: %v", err)
			}
		}()
		mc.Broker = b.URL()
		log.Infof("embedded broker listening on %s", simEmbedded)
	}
	mc.ClientID = ""
	dev, err := simulator.NewDevice(mc, cfg.Simulator, log)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd.Context())
	defer stop()
	return dev.Run(ctx)
}
