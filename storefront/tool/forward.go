package tool

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/atelier-storefront/pkg/qstash"
	"github.com/tanpawarit/atelier-storefront/storefront/contract"
)

type publisher interface {
	Publish(ctx context.Context, destination string, body any, opts qstash.PublishOptions) (string, error)
}

// QStashForwarder publishes results to a queue destination. The call id is
// the dedup key, so a retried publish never reaches the agent twice.
type QStashForwarder struct {
	client      publisher
	destination string
}

func NewQStashForwarder(client *qstash.Client, destination string) *QStashForwarder {
	return &QStashForwarder{client: client, destination: destination}
}

func (f *QStashForwarder) Forward(ctx context.Context, result contract.ToolResult) error {
	id, err := f.client.Publish(ctx, f.destination, result, qstash.PublishOptions{DeduplicationID: result.CallID})
	if err != nil {
		return fmt.Errorf("%w: %v", contract.ErrUpstream, err)
	}
	log.Debug().Str("call_id", result.CallID).Str("message_id", id).Msg("tool result forwarded")
	return nil
}
