package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	id "poolshare/pkg/domain"
	dErrors "poolshare/pkg/domain-errors"
	"poolshare/pkg/platform/audit"
	"poolshare/pkg/platform/authz"
	"poolshare/pkg/platform/httputil"
	"poolshare/pkg/requestcontext"
)

const (
	defaultFeedLimit = 50
	maxFeedLimit     = 500
)

// NotificationFeed reads back the notification log.
type NotificationFeed interface {
	List(ctx context.Context, principalID id.PrincipalID) ([]audit.Event, error)
	Recent(ctx context.Context, limit int) ([]audit.Event, error)
}

// NotificationHandler exposes the log to its subjects and to the administrator.
type NotificationHandler struct {
	feed   NotificationFeed
	admin  id.PrincipalID
	logger *slog.Logger
}

func NewNotificationHandler(feed NotificationFeed, admin id.PrincipalID, logger *slog.Logger) *NotificationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationHandler{feed: feed, admin: admin, logger: logger}
}

func (h *NotificationHandler) Register(r chi.Router) {
	r.Get("/notifications", h.handleMine)
	r.Get("/admin/notifications", h.handleRecent)
}

type notificationView struct {
	Category    string    `json:"category"`
	Action      string    `json:"action"`
	Timestamp   time.Time `json:"timestamp"`
	PrincipalID string    `json:"principal_id,omitempty"`
	ActorID     string    `json:"actor_id,omitempty"`
	ServiceID   string    `json:"service_id,omitempty"`
	GroupID     uint64    `json:"group_id,omitempty"`
	ProposalID  uint64    `json:"proposal_id,omitempty"`
	Amount      int64     `json:"amount,omitempty"`
	MemberCount int       `json:"member_count,omitempty"`
	Detail      string    `json:"detail,omitempty"`
}

type notificationsResponse struct {
	Notifications []notificationView `json:"notifications"`
}

func (h *NotificationHandler) handleMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := requestcontext.PrincipalID(ctx)
	if err := authz.RequireCaller(caller); err != nil {
		httputil.WriteError(w, err)
		return
	}
	events, err := h.feed.List(ctx, caller)
	if err != nil {
		httputil.WriteFailure(ctx, h.logger, w, "list notifications", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, render(events))
}

func (h *NotificationHandler) handleRecent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := authz.RequireAdmin(requestcontext.PrincipalID(ctx), h.admin); err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit := defaultFeedLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxFeedLimit {
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "limit must be between 1 and %d", maxFeedLimit))
			return
		}
		limit = n
	}
	events, err := h.feed.Recent(ctx, limit)
	if err != nil {
		httputil.WriteFailure(ctx, h.logger, w, "recent notifications", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, render(events))
}

func render(events []audit.Event) notificationsResponse {
	out := notificationsResponse{Notifications: make([]notificationView, 0, len(events))}
	for _, e := range events {
		v := notificationView{
			Category:    string(e.Category),
			Action:      e.Action,
			Timestamp:   e.Timestamp.UTC(),
			ActorID:     e.ActorID,
			ServiceID:   string(e.ServiceID),
			GroupID:     uint64(e.GroupID),
			ProposalID:  uint64(e.ProposalID),
			Amount:      e.Amount,
			MemberCount: e.MemberCount,
			Detail:      e.Detail,
		}
		if !e.PrincipalID.IsNil() {
			v.PrincipalID = e.PrincipalID.String()
		}
		out.Notifications = append(out.Notifications, v)
	}
	return out
}
