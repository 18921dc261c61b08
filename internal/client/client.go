package client

import (
	"context"

	"github.com/goodieshq/gotftp/internal/protocol"
)

const (
	DEFAULT_PORT = protocol.Port
	DEFAULT_MODE = protocol.Mode
)

// Client moves whole files to and from a server, one transfer at a time.
// Implementations are not safe for concurrent use. Cancelling the context of
// a transfer aborts only that transfer; the client remains usable.
type Client interface {
	// Upload sends the local file src and stores it on the server as dst
	Upload(ctx context.Context, src, dst string) error
	// Download fetches src from the server and writes it to the local path dst
	Download(ctx context.Context, src, dst string) error
	Close() error
}

var _ Client = (*ClientUDP)(nil)
