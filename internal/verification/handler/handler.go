// Package handler receives the gateway events that drive verification
// sessions: the start button, applicant direct messages and members leaving.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"warden/internal/dispatch"
	"warden/internal/verification/models"
	"warden/internal/verification/service"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/httputil"
	"warden/pkg/requestcontext"
)

type Handler struct {
	dispatcher dispatch.Runner
	logger     *slog.Logger
}

func New(dispatcher dispatch.Runner, logger *slog.Logger) *Handler {
	return &Handler{dispatcher: dispatcher, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/guilds/{guildID}/verification", h.HandleStart)
	r.Post("/v1/users/{userID}/answers", h.HandleAnswer)
	r.Post("/v1/guilds/{guildID}/members/{userID}/left", h.HandleMemberLeft)
}

// StartRequest is the body of POST /v1/guilds/{guildID}/verification.
type StartRequest struct {
	UserID string `json:"user_id" validate:"required,snowflake"`

	user id.UserID
}

func (r *StartRequest) Prepare() error {
	var err error
	r.user, err = id.ParseUserID(r.UserID)
	return err
}

// AnswerRequest carries one direct message. Empty text is a valid answer.
type AnswerRequest struct {
	Text string `json:"text" validate:"max=4000"`
}

type SessionResponse struct {
	UserID   id.UserID  `json:"user_id"`
	GuildID  id.GuildID `json:"guild_id"`
	Position int        `json:"position"`
	Total    int        `json:"total"`
}

type AnswerResponse struct {
	Ignored   bool   `json:"ignored"`
	Completed bool   `json:"completed"`
	Position  int    `json:"position,omitempty"`
	Total     int    `json:"total,omitempty"`
	RecordID  string `json:"record_id,omitempty"`
}

// HandleStart handles the verification button press.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	guild, err := id.ParseGuildID(chi.URLParam(r, "guildID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid guild id"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[StartRequest](w, r, h.logger)
	if !ok {
		return
	}

	sess, err := dispatch.Do[*models.Session](ctx, h.dispatcher, dispatch.StartVerification{GuildID: guild, UserID: req.user})
	if err != nil {
		h.logger.InfoContext(ctx, "verification start rejected",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", req.user.String(),
			"guild_id", guild.String(),
			"code", string(dErrors.CodeOf(err)),
		)
		httputil.WriteError(w, err)
		return
	}
	pos, _, _ := sess.Current()
	httputil.WriteJSON(w, http.StatusCreated, SessionResponse{
		UserID:   sess.UserID,
		GuildID:  sess.GuildID,
		Position: pos,
		Total:    sess.Total(),
	})
}

// HandleAnswer handles a direct message from a user. Messages from users
// without a session are acknowledged and ignored.
func (h *Handler) HandleAnswer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid user id"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[AnswerRequest](w, r, h.logger)
	if !ok {
		return
	}

	res, err := dispatch.Do[service.AnswerResult](ctx, h.dispatcher, dispatch.SubmitAnswer{UserID: user, Text: req.Text})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := AnswerResponse{
		Ignored:   res.Ignored,
		Completed: res.Completed(),
		Position:  res.Position,
		Total:     res.Total,
	}
	if res.Record != nil {
		resp.RecordID = res.Record.ID.String()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleMemberLeft(w http.ResponseWriter, r *http.Request) {
	guild, err := id.ParseGuildID(chi.URLParam(r, "guildID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid guild id"))
		return
	}
	user, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid user id"))
		return
	}
	abandoned, err := dispatch.Do[bool](r.Context(), h.dispatcher, dispatch.MemberLeft{GuildID: guild, UserID: user})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"abandoned": abandoned})
}
