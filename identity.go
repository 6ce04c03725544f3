package shipdesk

import (
	"context"
	"strings"
)

// Identity is the caller as authenticated by the inbound channel (mail sender, chat phone).
// It never comes from text the model parsed.
type Identity struct {
	Email string
	Phone string
}

// IsZero reports whether neither email nor phone is known.
func (i Identity) IsZero() bool {
	return strings.TrimSpace(i.Email) == "" && strings.TrimSpace(i.Phone) == ""
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id. Tool handlers read it with IdentityFrom.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	id.Email = strings.ToLower(strings.TrimSpace(id.Email))
	id.Phone = strings.TrimSpace(id.Phone)
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the channel identity stored in ctx, if any.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || id.IsZero() {
		return Identity{}, false
	}
	return id, true
}
