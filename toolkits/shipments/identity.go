package shipments

import (
	"context"
	"errors"
	"strings"

	"github.com/skosovsky/shipdesk"
)

// ErrIdentityRequired is wrapped by the client error returned when an identity-scoped tool
// runs without a usable caller identity.
var ErrIdentityRequired = errors.New("verified sender required")

// IdentityPolicy decides where identity-scoped arguments come from.
type IdentityPolicy int

const (
	// IdentityFromChannel replaces requester_email, shipper_email and contact_number with
	// the identity the inbound channel authenticated, and refuses to run without one.
	IdentityFromChannel IdentityPolicy = iota
	// IdentityFromArguments trusts the values the model extracted from the message.
	// Use it for operator tooling only.
	IdentityFromArguments
)

func (p IdentityPolicy) String() string {
	switch p {
	case IdentityFromChannel:
		return "channel"
	case IdentityFromArguments:
		return "arguments"
	default:
		return "unknown"
	}
}

// ParseIdentityPolicy maps "channel" and "arguments" to a policy.
func ParseIdentityPolicy(s string) (IdentityPolicy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "channel":
		return IdentityFromChannel, true
	case "arguments", "args":
		return IdentityFromArguments, true
	default:
		return IdentityFromChannel, false
	}
}

type identityField int

const (
	fieldEmail identityField = iota
	fieldPhone
)

func (f identityField) String() string {
	if f == fieldPhone {
		return "contact number"
	}
	return "email address"
}

// resolveIdentity returns the value an identity-scoped argument must take.
// When required is false an empty result means "unscoped".
func (k *Toolkit) resolveIdentity(ctx context.Context, tool ToolName, field identityField, fromArgs string, required bool) (string, error) {
	fromArgs = strings.TrimSpace(fromArgs)
	id, ok := shipdesk.IdentityFrom(ctx)
	var fromChannel string
	if ok {
		if field == fieldPhone {
			fromChannel = id.Phone
		} else {
			fromChannel = id.Email
		}
	}

	switch k.policy {
	case IdentityFromArguments:
		if fromArgs == "" {
			fromArgs = fromChannel
		}
		if fromArgs == "" && required {
			return "", missingIdentity(field)
		}
		return fromArgs, nil
	default:
		if fromChannel == "" {
			return "", missingIdentity(field)
		}
		if fromArgs != "" && !strings.EqualFold(fromArgs, fromChannel) {
			k.logger.WarnContext(ctx, "ignoring model-supplied identity", "tool", string(tool), "field", field.String())
		}
		return fromChannel, nil
	}
}

// requireCaller fails under IdentityFromChannel when the channel established no identity.
func (k *Toolkit) requireCaller(ctx context.Context) error {
	if k.policy != IdentityFromChannel {
		return nil
	}
	if _, ok := shipdesk.IdentityFrom(ctx); !ok {
		return &shipdesk.ClientError{Reason: "this request must come from a verified sender", Err: ErrIdentityRequired}
	}
	return nil
}

func missingIdentity(field identityField) error {
	return &shipdesk.ClientError{
		Reason: "a verified sender " + field.String() + " is required; ask the customer to write from their registered " + field.String(),
		Err:    ErrIdentityRequired,
	}
}
