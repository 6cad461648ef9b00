package models

import "context"

type channelContextKey struct{}

// ChannelContext identifies where an operation originated so audit lines and
// ledger entries can carry it without widening every method signature.
type ChannelContext struct {
	Channel    string // "http", "cli"
	RemoteAddr string
	RequestId  string
}

// WithChannelContext attaches channel data to a context.
func WithChannelContext(ctx context.Context, cc *ChannelContext) context.Context {
	return context.WithValue(ctx, channelContextKey{}, cc)
}

// GetChannelContext retrieves channel data from context, or nil if absent.
func GetChannelContext(ctx context.Context) *ChannelContext {
	cc, _ := ctx.Value(channelContextKey{}).(*ChannelContext)
	return cc
}
