// Package channel defines how external transports hand messages to the assistant.
package channel

import (
	"context"

	"zeta/pkg/bus"
)

// Handler processes one inbound channel message and returns an outbound reply.
type Handler func(context.Context, bus.InboundMessage) (bus.OutboundMessage, error)

// Adapter bridges one external transport (for example Telegram) into the assistant.
type Adapter interface {
	Name() string
	Run(context.Context, Handler) error
}

// Commands recognized by every channel. Adapters map their native syntax to these values
// in InboundMessage.Metadata[MetadataCommand].
const (
	MetadataCommand = "command"

	CommandStart = "start"
	CommandReset = "reset"
)
