package messaging

import (
	"context"

	"boxworks/protocol"

	"github.com/sirupsen/logrus"
)

// Consumer subscribes to the events topic and routes messages through a
// protocol ingestor.
type Consumer struct {
	client   *Client
	topic    string
	ingestor *protocol.Ingestor
}

func NewConsumer(client *Client, topic string, handler protocol.MessageHandler, filter protocol.FilterFunc, logger logrus.FieldLogger) *Consumer {
	return &Consumer{
		client:   client,
		topic:    topic,
		ingestor: protocol.NewIngestor(handler, filter, logger),
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	return c.client.Subscribe(ctx, c.topic, c.ingestor.HandleRaw)
}
