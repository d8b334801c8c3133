package mq

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/bayanihan-data/povassess/config"
)

const pubsubAckDeadline = 30 * time.Second

// PubSubClient publishes domain events to one Pub/Sub topic per channel.
// Topic ids carry the configured prefix so several deployments can share a
// project.
type PubSubClient struct {
	client             *pubsub.Client
	topicPrefix        string
	subscriptionSuffix string
	maxOutstanding     int

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// NewPubSubClient constructs a Pub/Sub client from config.
func NewPubSubClient(ctx context.Context, cfg config.PubSubConfig) (*PubSubClient, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("pubsub project id is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, err
	}
	return newPubSubClient(client, cfg), nil
}

func newPubSubClient(client *pubsub.Client, cfg config.PubSubConfig) *PubSubClient {
	return &PubSubClient{
		client:             client,
		topicPrefix:        cfg.TopicPrefix,
		subscriptionSuffix: cfg.SubscriptionSuffix,
		maxOutstanding:     cfg.MaxOutstanding,
		topics:             map[string]*pubsub.Topic{},
	}
}

// Publish sends data to the channel's topic and waits for the server id.
// Event attributes travel as Pub/Sub message attributes.
func (p *PubSubClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	topic, err := p.topic(ctx, channel)
	if err != nil {
		return "", err
	}
	return topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs}).Get(ctx)
}

// Subscribe receives the channel's events on a durable subscription until
// ctx is cancelled. A handler error nacks the message for redelivery.
func (p *PubSubClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	topic, err := p.topic(ctx, channel)
	if err != nil {
		return err
	}

	sub, err := p.subscription(ctx, topic)
	if err != nil {
		return err
	}
	if p.maxOutstanding > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = p.maxOutstanding
	}

	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		id := msg.Attributes[AttrEventID]
		if id == "" {
			id = msg.ID
		}
		if err := handler(ctx, Message{ID: id, Data: msg.Data, Attributes: msg.Attributes}); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Close flushes pending publishes and closes the client.
func (p *PubSubClient) Close() error {
	p.mu.Lock()
	for _, topic := range p.topics {
		topic.Stop()
	}
	p.topics = map[string]*pubsub.Topic{}
	p.mu.Unlock()
	return p.client.Close()
}

// topic returns the cached topic for channel, creating it on first use.
func (p *PubSubClient) topic(ctx context.Context, channel string) (*pubsub.Topic, error) {
	id, err := p.topicID(channel)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if topic, ok := p.topics[id]; ok {
		return topic, nil
	}

	topic := p.client.Topic(id)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		if topic, err = p.client.CreateTopic(ctx, id); err != nil {
			return nil, err
		}
	}
	p.topics[id] = topic
	return topic, nil
}

func (p *PubSubClient) subscription(ctx context.Context, topic *pubsub.Topic) (*pubsub.Subscription, error) {
	id := p.subscriptionID(topic.ID())
	sub := p.client.Subscription(id)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if exists {
		return sub, nil
	}
	return p.client.CreateSubscription(ctx, id, pubsub.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: pubsubAckDeadline,
	})
}

// topicID maps a channel such as "referral.status_changed" to its topic id.
func (p *PubSubClient) topicID(channel string) (string, error) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return "", errors.New("pubsub channel is required")
	}
	return p.topicPrefix + channel, nil
}

func (p *PubSubClient) subscriptionID(topicID string) string {
	return topicID + p.subscriptionSuffix
}
