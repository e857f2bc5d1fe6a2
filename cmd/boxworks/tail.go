package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"boxworks/config"
	"boxworks/messaging"
	"boxworks/protocol"
)

// eventLogger prints published domain events. Task events are board chatter
// and stay silent.
type eventLogger struct {
	protocol.NoOpHandler
	log logrus.FieldLogger
}

func (l *eventLogger) entry(env *protocol.Envelope) *logrus.Entry {
	return l.log.WithFields(logrus.Fields{"type": env.Type, "id": env.ID, "src": env.Src.Node, "cor": env.CorID})
}

func (l *eventLogger) HandleOrderEvent(env *protocol.Envelope, p *protocol.OrderEvent) {
	l.entry(env).Infof("order %s: %s -> %s (v%d) by %s", p.OrderNumber, p.OldStatus, p.Status, p.Version, p.Actor)
}

func (l *eventLogger) HandleMaterialEvent(env *protocol.Envelope, p *protocol.MaterialEvent) {
	l.entry(env).Infof("material %s: stock %s %s (reorder at %s)", p.Name, p.CurrentStock, p.Unit, p.ReorderLevel)
}

func (l *eventLogger) HandleMovementEvent(env *protocol.Envelope, p *protocol.MovementEvent) {
	l.entry(env).Infof("%s of %s on %s: delta %s, stock %s", p.Type, p.Quantity, p.MaterialName, p.Delta, p.StockAfter)
}

func (l *eventLogger) HandleAlertEvent(env *protocol.Envelope, p *protocol.AlertEvent) {
	l.entry(env).Infof("alert %d for %s: %s (%s)", p.AlertID, p.MaterialName, p.Status, p.Priority)
}

func (l *eventLogger) HandleQualityEvent(env *protocol.Envelope, p *protocol.QualityEvent) {
	l.entry(env).Infof("quality check %d on order %d: %s, %d/%d items failed", p.CheckID, p.OrderID, p.OverallStatus, p.FailedItems, p.Items)
}

// typeFilter keeps messages whose type starts with one of the prefixes.
// An empty list keeps everything.
func typeFilter(list string) protocol.FilterFunc {
	var prefixes []string
	for _, p := range strings.Split(list, ",") {
		if p = strings.TrimSpace(p); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	if len(prefixes) == 0 {
		return nil
	}
	return func(hdr *protocol.RawHeader) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(hdr.Type, p) {
				return true
			}
		}
		return false
	}
}

func runTail(ctx context.Context, cfg *config.Config, logger *logrus.Logger, types string) error {
	if cfg.Messaging.Backend == "" || cfg.Messaging.Backend == "none" {
		return fmt.Errorf("messaging backend is disabled")
	}
	client := messaging.NewClient(&cfg.Messaging, logger)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	handler := &eventLogger{log: logger.WithField("module", "tail")}
	consumer := messaging.NewConsumer(client, cfg.Messaging.EventsTopic, handler, typeFilter(types), logger)
	if err := consumer.Start(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", cfg.Messaging.EventsTopic, err)
	}
	logger.Infof("tailing %s", cfg.Messaging.EventsTopic)
	<-ctx.Done()
	return nil
}
