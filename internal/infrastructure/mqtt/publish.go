package mqtt

import (
	"context"
	"fmt"
)

// Maximum payload size for MQTT messages (1MB).
const maxPayloadSize = 1 << 20

// PublishContext sends a message and waits until the broker acknowledges it
// or ctx is done, whichever comes first. Expiry of ctx yields ErrTimeout;
// the in-flight publish is abandoned, not retried.
//
// QoS 0 is fire and forget, 1 is at least once, 2 is exactly once. Retained
// messages are stored by the broker for new subscribers and suit state
// topics, not commands.
func (c *Client) PublishContext(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error {
	if err := validatePublish(topic, payload, qos); err != nil {
		return err
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("%w: %w", ErrPublishFailed, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: publish to %s: %w", ErrTimeout, topic, ctx.Err())
	}
}

func validatePublish(topic string, payload []byte, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	return nil
}
