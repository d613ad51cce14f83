package provider

import (
	"context"
	"fmt"

	"github.com/masjidconnect/reminder-service/internal/domain"
)

// Router picks the transport registered for the recipient's channel.
type Router struct {
	transports map[domain.Channel]domain.Transport
}

func NewRouter(transports map[domain.Channel]domain.Transport) *Router {
	return &Router{transports: transports}
}

func (r *Router) Send(ctx context.Context, to domain.Recipient, msg domain.Message) (*domain.SendResult, error) {
	t, ok := r.transports[to.Channel]
	if !ok || t == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoTransport, to.Channel)
	}
	return t.Send(ctx, to, msg)
}
