package solana

import "context"

// WSClient defines the Solana WebSocket subscription interface.
type WSClient interface {
	// SubscribeAccount streams changes of an account until unsubscribed or closed.
	SubscribeAccount(ctx context.Context, address string) (<-chan AccountNotification, error)

	// UnsubscribeAccount cancels every subscription for address and closes its channels.
	UnsubscribeAccount(ctx context.Context, address string) error

	// Close closes the WebSocket connection.
	Close() error
}

// AccountNotification represents an accountSubscribe message.
type AccountNotification struct {
	Address  string
	Slot     int64
	Lamports uint64
	Owner    string
	Data     string // base64
}
