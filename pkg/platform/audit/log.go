package audit

import (
	"context"
	"log/slog"

	"poolshare/pkg/requestcontext"
)

// LogAudit mirrors an event to the structured log and the emitter.
//
// Action, timestamp and request id are filled in from the arguments and ctx.
// The emitter error is returned only for funds events; every other category
// is best effort and a failure is logged.
func LogAudit(ctx context.Context, logger *slog.Logger, emitter Emitter, action AuditEvent, event Event) error {
	event.Action = string(action)
	event.Category = action.Category()
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	if logger != nil {
		logger.InfoContext(ctx, string(action), attrs(event)...)
	}
	if emitter == nil {
		return nil
	}

	err := emitter.Emit(ctx, event)
	if err == nil {
		return nil
	}
	if event.Category == CategoryFunds {
		return err
	}
	if logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event", "event", string(action), "error", err)
	}
	return nil
}

func attrs(e Event) []any {
	out := []any{"event", e.Action, "log_type", "audit", "category", string(e.Category)}
	if !e.PrincipalID.IsNil() {
		out = append(out, "principal_id", e.PrincipalID.String())
	}
	if e.ActorID != "" {
		out = append(out, "actor_id", e.ActorID)
	}
	if e.ServiceID != "" {
		out = append(out, "service_id", string(e.ServiceID))
	}
	if e.GroupID != 0 {
		out = append(out, "group_id", uint64(e.GroupID))
	}
	if e.ProposalID != 0 {
		out = append(out, "proposal_id", uint64(e.ProposalID))
	}
	if e.Amount != 0 {
		out = append(out, "amount", e.Amount)
	}
	if e.MemberCount != 0 {
		out = append(out, "member_count", e.MemberCount)
	}
	if e.Detail != "" {
		out = append(out, "detail", e.Detail)
	}
	if e.RequestID != "" {
		out = append(out, "request_id", e.RequestID)
	}
	return out
}
