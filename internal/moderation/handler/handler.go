package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"warden/internal/dispatch"
	"warden/internal/moderation/models"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/httputil"
	"warden/pkg/requestcontext"
)

// Handler serves moderator decisions and record lookups.
type Handler struct {
	dispatcher dispatch.Runner
	logger     *slog.Logger
}

func New(dispatcher dispatch.Runner, logger *slog.Logger) *Handler {
	return &Handler{dispatcher: dispatcher, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/records/{userID}/decision", h.HandleDecide)
	r.Get("/v1/records/{userID}", h.HandleGetRecord)
}

// DecisionRequest is the body of POST /v1/records/{userID}/decision.
type DecisionRequest struct {
	Kind        string `json:"kind" validate:"required,oneof=accept deny deny_with_reason kick"`
	ModeratorID string `json:"moderator_id" validate:"required,snowflake"`
	Reason      string `json:"reason" validate:"max=1000"`

	decision models.Decision
}

func (r *DecisionRequest) Prepare() error {
	kind, err := models.ParseKind(r.Kind)
	if err != nil {
		return err
	}
	moderator, err := id.ParseUserID(r.ModeratorID)
	if err != nil {
		return err
	}
	r.decision = models.Decision{Kind: kind, ModeratorID: moderator, Reason: r.Reason}
	return r.decision.Validate()
}

// RecordResponse is the public view of a moderation record.
type RecordResponse struct {
	ID           string     `json:"id"`
	UserID       id.UserID  `json:"user_id"`
	GuildID      id.GuildID `json:"guild_id"`
	Status       string     `json:"status"`
	Questions    []string   `json:"questions"`
	Answers      []string   `json:"answers"`
	Reason       string     `json:"reason,omitempty"`
	DecidedBy    string     `json:"decided_by,omitempty"`
	DecidedAt    *time.Time `json:"decided_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	LogMessageID string     `json:"log_message_id,omitempty"`
}

func toResponse(rec *models.Record) RecordResponse {
	resp := RecordResponse{
		ID:        rec.ID.String(),
		UserID:    rec.UserID,
		GuildID:   rec.GuildID,
		Status:    string(rec.Status),
		Questions: rec.Questions,
		Answers:   rec.Answers,
		Reason:    rec.Reason,
		DecidedAt: rec.DecidedAt,
		CreatedAt: rec.CreatedAt,
	}
	if !rec.DecidedBy.IsZero() {
		resp.DecidedBy = rec.DecidedBy.String()
	}
	if !rec.LogMessageID.IsZero() {
		resp.LogMessageID = rec.LogMessageID.String()
	}
	return resp
}

// HandleDecide applies a moderator decision to the user's pending record.
func (h *Handler) HandleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := userParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[DecisionRequest](w, r, h.logger)
	if !ok {
		return
	}

	rec, err := dispatch.Do[*models.Record](ctx, h.dispatcher, dispatch.Decide{UserID: user, Decision: req.decision})
	if err != nil {
		h.logger.InfoContext(ctx, "decision rejected",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", user.String(),
			"moderator_id", req.ModeratorID,
			"kind", req.Kind,
			"code", string(dErrors.CodeOf(err)),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(rec))
}

func (h *Handler) HandleGetRecord(w http.ResponseWriter, r *http.Request) {
	user, ok := userParam(w, r)
	if !ok {
		return
	}
	rec, err := dispatch.Do[*models.Record](r.Context(), h.dispatcher, dispatch.GetRecord{UserID: user})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(rec))
}

func userParam(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	user, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid user id"))
		return 0, false
	}
	return user, true
}
