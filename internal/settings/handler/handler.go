package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"warden/internal/dispatch"
	"warden/internal/settings/models"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/httputil"
	"warden/pkg/requestcontext"
)

// Handler serves the administrator configuration endpoints. It expects to be
// mounted behind the admin token middleware.
type Handler struct {
	dispatcher dispatch.Runner
	logger     *slog.Logger
}

func New(dispatcher dispatch.Runner, logger *slog.Logger) *Handler {
	return &Handler{dispatcher: dispatcher, logger: logger}
}

// Register mounts the settings endpoints on r.
func (h *Handler) Register(r chi.Router) {
	r.Put("/v1/admin/guilds/{guildID}/channels", h.HandleSetChannels)
	r.Put("/v1/admin/guilds/{guildID}/roles", h.HandleSetRoles)
	r.Put("/v1/admin/guilds/{guildID}/questions", h.HandleSetQuestions)
	r.Get("/v1/admin/guilds/{guildID}/settings", h.HandleGetSettings)
}

func (h *Handler) HandleSetChannels(w http.ResponseWriter, r *http.Request) {
	guild, ok := guildParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SetChannelsRequest](w, r, h.logger)
	if !ok {
		return
	}
	h.update(w, r, dispatch.SetChannels{GuildID: guild, WelcomeID: req.welcome, LogID: req.logCh})
}

func (h *Handler) HandleSetRoles(w http.ResponseWriter, r *http.Request) {
	guild, ok := guildParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SetRolesRequest](w, r, h.logger)
	if !ok {
		return
	}
	h.update(w, r, dispatch.SetRoles{
		GuildID:    guild,
		TempID:     req.temp,
		VerifiedID: req.verified,
		AdminID:    req.admin,
	})
}

func (h *Handler) HandleSetQuestions(w http.ResponseWriter, r *http.Request) {
	guild, ok := guildParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SetQuestionsRequest](w, r, h.logger)
	if !ok {
		return
	}
	h.update(w, r, dispatch.SetQuestions{GuildID: guild, Raw: req.Questions})
}

// HandleGetSettings returns the status view; unconfigured guilds get an empty one.
func (h *Handler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	guild, ok := guildParam(w, r)
	if !ok {
		return
	}
	status, err := dispatch.Do[models.Status](r.Context(), h.dispatcher, dispatch.GetSettings{GuildID: guild})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, cmd dispatch.Command) {
	ctx := r.Context()
	st, err := dispatch.Do[*models.Settings](ctx, h.dispatcher, cmd)
	if err != nil {
		h.logger.WarnContext(ctx, "settings update rejected",
			"request_id", requestcontext.RequestID(ctx),
			"command", string(cmd.Kind()),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.StatusOf(st.GuildID, st))
}

func guildParam(w http.ResponseWriter, r *http.Request) (id.GuildID, bool) {
	guild, err := id.ParseGuildID(chi.URLParam(r, "guildID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid guild id"))
		return 0, false
	}
	return guild, true
}
