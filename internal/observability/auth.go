package observability

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Auth flows recorded by RecordAuthAttempt.
const (
	FlowSignIn  = "sign_in"
	FlowSignUp  = "sign_up"
	FlowSignOut = "sign_out"
	FlowOAuth   = "oauth"
)

// Auth outcomes recorded by RecordAuthAttempt.
const (
	OutcomeSuccess         = "success"
	OutcomeInvalid         = "invalid"
	OutcomeIncomplete      = "incomplete"
	OutcomeRejected        = "rejected"
	OutcomeError           = "error"
	OutcomeAlreadySignedIn = "already_signed_in"
)

// RecordAuthAttempt counts one auth attempt and tags the current span.
func (t *Telemetry) RecordAuthAttempt(ctx context.Context, flow, outcome string) {
	trace.SpanFromContext(ctx).SetAttributes(AttrAuthFlow.String(flow), AttrAuthOutcome.String(outcome))
	if m := t.Metrics(); m != nil {
		m.AuthAttempts.Add(ctx, 1, metric.WithAttributes(
			AttrAuthFlow.String(flow),
			AttrAuthOutcome.String(outcome),
		))
	}
}

// RecordHandshakeTransition counts one handshake state change.
func (t *Telemetry) RecordHandshakeTransition(ctx context.Context, intent, from, to string) {
	trace.SpanFromContext(ctx).AddEvent("handshake." + to)
	if m := t.Metrics(); m != nil {
		m.HandshakeTransitions.Add(ctx, 1, metric.WithAttributes(
			AttrAuthIntent.String(intent),
			AttrHandshakeFrom.String(from),
			AttrHandshakeTo.String(to),
		))
	}
}

// SetUserID tags the current span with the signed-in user.
func SetUserID(ctx context.Context, userID string) {
	if userID == "" {
		return
	}
	trace.SpanFromContext(ctx).SetAttributes(AttrUserID.String(userID))
}
