package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"pushstream-latency/pkg/config"
	"pushstream-latency/pkg/telemetry"
	"pushstream-latency/pkg/utils"
)

// maxErrorTypes bounds the error breakdown in a status line.
const maxErrorTypes = 3

// CLI represents the periodic status reporter
type CLI struct {
	telemetry telemetry.TelemetryReader
	config    *config.Config
	logger    *log.Logger

	// State
	lastSnapshot telemetry.Snapshot
	printed      bool
	done         chan struct{}
}

// NewCLI creates a new status reporter
func NewCLI(telemetryReader telemetry.TelemetryReader, cfg *config.Config, logger *log.Logger) *CLI {
	return &CLI{
		telemetry: telemetryReader,
		config:    cfg,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Run prints a status block every StatusInterval until ctx is done or Stop is
// called.
func (c *CLI) Run(ctx context.Context) error {
	c.logger.Printf("Channel: %s, publish delay: %v, max latency: %vs", c.config.Channel, c.config.PublishDelay, c.config.MaxLatency)
	if c.config.Outfile != "" {
		c.logger.Printf("Writing last latency to %s", c.config.Outfile)
	}

	ticker := time.NewTicker(c.config.Telemetry.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.printStatus()
		case <-c.done:
			return nil
		}
	}
}

// Stop stops the status reporter
func (c *CLI) Stop() {
	close(c.done)
}

// printStatus prints current telemetry status
func (c *CLI) printStatus() {
	snapshot := c.telemetry.Snapshot()

	if c.shouldPrintStatus(snapshot) {
		c.logger.Printf("Status - published=%s, received=%s, samples=%s, alerts=%s, misses=%s, reconnects=%s, errors=%s",
			utils.FormatNumber(snapshot.MessagesPublished),
			utils.FormatNumber(snapshot.MessagesReceived),
			utils.FormatNumber(snapshot.SamplesTotal),
			utils.FormatNumber(snapshot.AlertsTotal),
			utils.FormatNumber(snapshot.TimestampMisses),
			utils.FormatNumber(snapshot.ReconnectsTotal),
			utils.FormatNumber(snapshot.ErrorsTotal))

		c.logger.Printf("Connections - publisher: %t, subscriber: %t",
			snapshot.PublisherConnected,
			snapshot.SubscriberConnected)

		if snapshot.SamplesTotal > 0 {
			c.logger.Printf("Latency - last=%s, avg=%s, p95=%s, max=%s, publish rtt=%.1fms",
				utils.FormatSeconds(snapshot.LastLatency),
				utils.FormatSeconds(snapshot.AvgLatency),
				utils.FormatSeconds(snapshot.P95Latency),
				utils.FormatSeconds(snapshot.MaxLatency),
				snapshot.AvgPublishMs)
		}

		if snapshot.ErrorsTotal > c.lastSnapshot.ErrorsTotal {
			c.logger.Printf("Errors - %s", formatErrorTypes(snapshot.ErrorsByType))
		}
	}

	c.lastSnapshot = snapshot
	c.printed = true
}

// shouldPrintStatus determines if we should print a status update
func (c *CLI) shouldPrintStatus(snapshot telemetry.Snapshot) bool {
	// Always print first status
	if !c.printed {
		return true
	}

	if snapshot.MessagesPublished != c.lastSnapshot.MessagesPublished ||
		snapshot.MessagesReceived != c.lastSnapshot.MessagesReceived {
		return true
	}

	if snapshot.ErrorsTotal > c.lastSnapshot.ErrorsTotal {
		return true
	}

	if snapshot.PublisherConnected != c.lastSnapshot.PublisherConnected ||
		snapshot.SubscriberConnected != c.lastSnapshot.SubscriberConnected {
		return true
	}

	return false
}

func formatErrorTypes(byType map[string]uint64) string {
	counts := utils.SortByCount(byType)
	if len(counts) > maxErrorTypes {
		counts = counts[:maxErrorTypes]
	}
	parts := make([]string, 0, len(counts))
	for _, nc := range counts {
		parts = append(parts, fmt.Sprintf("%s=%s", nc.Name, utils.FormatNumber(nc.Count)))
	}
	return strings.Join(parts, ", ")
}
