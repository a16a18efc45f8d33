package recadastro

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	httpmiddleware "github.com/gestaozabele/recadastro/internal/http/middleware"
)

// Handler orquestra as rotas do recadastramento.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/recadastro", func(r chi.Router) {
		r.Use(httpmiddleware.RequireServidor)
		r.Get("/campanhas", h.handleCampanhasAtivas)
		r.Get("/campanhas/{id}/formulario", h.handleFormulario)
		r.Put("/campanhas/{id}/rascunho", h.handleRascunho)
		r.Post("/campanhas/{id}/enviar", h.handleEnviar)
		r.Get("/campanhas/{id}/comprovante", h.handleComprovanteProprio)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(httpmiddleware.RequireRH)
		r.Post("/campanhas", h.handleCriarCampanha)
		r.Get("/campanhas", h.handleListarCampanhas)
		r.Get("/campanhas/{id}", h.handleGetCampanha)
		r.Put("/campanhas/{id}", h.handleAtualizarCampanha)
		r.Post("/campanhas/{id}/ativar", h.handleAtivarCampanha)
		r.Post("/campanhas/{id}/encerrar", h.handleEncerrarCampanha)
		r.Get("/campanhas/{id}/estatisticas", h.handleEstatisticas)
		r.Get("/campanhas/{id}/envios", h.handleListarEnvios)
		r.Post("/envios/{id}/aprovar", h.handleAprovar)
		r.Post("/envios/{id}/rejeitar", h.handleRejeitar)
		r.Post("/envios/{id}/devolver", h.handleDevolver)
		r.Post("/envios/aprovar-lote", h.handleAprovarLote)
		r.Post("/envios/devolver-lote", h.handleDevolverLote)
	})
}

// RegisterPublicRoutes registra as rotas sem autenticação.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/publico/verificacao/{codigo}", h.handleVerificacao)
	r.Get("/publico/comprovante/{token}", h.handleComprovante)
}

func (h *Handler) handleCampanhasAtivas(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	servidorID, err := subjectAsUUID(ctx)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}

	campanhas, err := h.service.CampanhasAtivas(ctx, servidorID)
	if err != nil {
		writeInternalError(w, err)
		return
	}

	logRequest(ctx, "GET /recadastro/campanhas", servidorID, start)
	writeJSON(w, http.StatusOK, map[string]any{"campanhas": campanhas})
}

func (h *Handler) handleFormulario(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	servidorID, err := subjectAsUUID(ctx)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}

	campanhaID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "campanha inválida", nil)
		return
	}

	campanha, envio, campos, err := h.service.FormularioAberto(ctx, campanhaID, servidorID)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"campanha": campanha,
		"envio":    envio,
		"campos":   campos,
		"opcoes": map[string]any{
			"sexo":         OpcoesSexo,
			"estado_civil": OpcoesEstadoCivil,
			"sindicato":    OpcoesSindicato,
			"divisoes":     Divisoes(),
		},
	})
}

type formularioPayload struct {
	Valores map[string]string `json:"valores"`
}

func (h *Handler) handleRascunho(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	servidorID, err := subjectAsUUID(ctx)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}

	campanhaID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "campanha inválida", nil)
		return
	}

	var payload formularioPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}

	envio, err := h.service.SalvarRascunho(ctx, campanhaID, servidorID, payload.Valores)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"envio": envio})
}

func (h *Handler) handleEnviar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	servidorID, err := subjectAsUUID(ctx)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}

	campanhaID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "campanha inválida", nil)
		return
	}

	var payload formularioPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}

	envio, erros, err := h.service.Enviar(ctx, campanhaID, servidorID, payload.Valores)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	if len(erros) > 0 {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION", "formulário com erros", erros)
		return
	}

	logRequest(ctx, "POST /recadastro/enviar", servidorID, start)
	writeJSON(w, http.StatusOK, map[string]any{"envio": envio})
}

func (h *Handler) handleComprovanteProprio(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	servidorID, err := subjectAsUUID(ctx)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}

	campanhaID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "campanha inválida", nil)
		return
	}

	envio, err := h.service.envios.GetForUser(ctx, campanhaID, servidorID)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	token, err := h.service.LinkComprovante(ctx, envio.ID)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"codigo": envio.CodigoAutenticacao,
		"token":  token,
	})
}

type campanhaPayload struct {
	Titulo           string      `json:"titulo"`
	Inicio           time.Time   `json:"inicio"`
	Fim              time.Time   `json:"fim"`
	AutoAprova       bool        `json:"auto_aprova"`
	EmailConvite     bool        `json:"email_convite"`
	EmailLembrete    bool        `json:"email_lembrete"`
	EmailConfirmacao bool        `json:"email_confirmacao"`
	LembreteDias     int         `json:"lembrete_dias"`
	GrupoIDs         []uuid.UUID `json:"grupo_ids"`
}

func (p *campanhaPayload) toCampanha() *Campanha {
	return &Campanha{
		Titulo:           strings.TrimSpace(p.Titulo),
		Inicio:           p.Inicio,
		Fim:              p.Fim,
		AutoAprova:       p.AutoAprova,
		EmailConvite:     p.EmailConvite,
		EmailLembrete:    p.EmailLembrete,
		EmailConfirmacao: p.EmailConfirmacao,
		LembreteDias:     p.LembreteDias,
		GrupoIDs:         p.GrupoIDs,
	}
}

func (h *Handler) handleCriarCampanha(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	atorID, err := subjectAsUUID(ctx)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}

	var payload campanhaPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}
	if strings.TrimSpace(payload.Titulo) == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION", "título obrigatório", nil)
		return
	}

	id, err := h.service.CriarCampanha(ctx, payload.toCampanha(), atorID)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (h *Handler) handleListarCampanhas(w http.ResponseWriter, r *http.Request) {
	campanhas, err := h.service.ListarCampanhas(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"campanhas": campanhas})
}

func (h *Handler) handleGetCampanha(w http.ResponseWriter, r *http.Request) {
	campanhaID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "campanha inválida", nil)
		return
	}

	campanha, err := h.service.GetCampanha(r.Context(), campanhaID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"campanha": campanha})
}

func (h *Handler) handleAtualizarCampanha(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	atorID, err := subjectAsUUID(ctx)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}

	campanhaID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "campanha inválida", nil)
		return
	}

	var payload campanhaPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}

	campanha := payload.toCampanha()
	campanha.ID = campanhaID
	if err := h.service.AtualizarCampanha(ctx, campanha, atorID); err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": campanhaID})
}

func (h *Handler) handleAtivarCampanha(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	atorID, err := subjectAsUUID(ctx)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}

	campanhaID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "campanha inválida", nil)
		return
	}

	criados, err := h.service.AtivarCampanha(ctx, campanhaID, atorID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"envios_criados": criados})
}

func (h *Handler) handleEncerrarCampanha(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	atorID, err := subjectAsUUID(ctx)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}

	campanhaID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "campanha inválida", nil)
		return
	}

	if err := h.service.EncerrarCampanha(ctx, campanhaID, atorID); err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": campanhaID})
}

func (h *Handler) handleEstatisticas(w http.ResponseWriter, r *http.Request) {
	campanhaID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "campanha inválida", nil)
		return
	}

	stats, err := h.service.EstatisticasCampanha(r.Context(), campanhaID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"estatisticas": stats})
}

func (h *Handler) handleListarEnvios(w http.ResponseWriter, r *http.Request) {
	campanhaID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "campanha inválida", nil)
		return
	}

	var status *StatusEnvio
	if raw := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))); raw != "" {
		s := StatusEnvio(raw)
		if !ValidStatusEnvio(s) {
			writeError(w, http.StatusBadRequest, "VALIDATION", "status desconhecido", nil)
			return
		}
		status = &s
	}

	envios, err := h.service.ListarEnvios(r.Context(), campanhaID, status)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"envios": envios})
}

func (h *Handler) reviewAction(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, envioID, revisorID uuid.UUID) error) {
	ctx := r.Context()
	revisorID, err := subjectAsUUID(ctx)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}

	envioID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "envio inválido", nil)
		return
	}

	if err := op(ctx, envioID, revisorID); err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": envioID})
}

func (h *Handler) handleAprovar(w http.ResponseWriter, r *http.Request) {
	h.reviewAction(w, r, h.service.AprovarEnvio)
}

func (h *Handler) handleRejeitar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	revisorID, err := subjectAsUUID(ctx)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}

	envioID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "envio inválido", nil)
		return
	}

	var payload struct {
		Observacoes string `json:"observacoes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}

	if err := h.service.RejeitarEnvio(ctx, envioID, revisorID, payload.Observacoes); err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": envioID})
}

func (h *Handler) handleDevolver(w http.ResponseWriter, r *http.Request) {
	h.reviewAction(w, r, h.service.DevolverEnvio)
}

func (h *Handler) bulkAction(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, ids []uuid.UUID, revisorID uuid.UUID) BulkResultado) {
	ctx := r.Context()
	revisorID, err := subjectAsUUID(ctx)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "AUTH", "identificação inválida", nil)
		return
	}

	var payload struct {
		IDs []uuid.UUID `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || len(payload.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION", "lista de envios obrigatória", nil)
		return
	}

	resultado := op(ctx, payload.IDs, revisorID)
	writeJSON(w, http.StatusOK, map[string]any{"resultado": resultado})
}

func (h *Handler) handleAprovarLote(w http.ResponseWriter, r *http.Request) {
	h.bulkAction(w, r, h.service.AprovarLote)
}

func (h *Handler) handleDevolverLote(w http.ResponseWriter, r *http.Request) {
	h.bulkAction(w, r, h.service.DevolverLote)
}

func (h *Handler) handleVerificacao(w http.ResponseWriter, r *http.Request) {
	codigo := strings.TrimSpace(chi.URLParam(r, "codigo"))
	if codigo == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION", "código obrigatório", nil)
		return
	}

	verificacao, err := h.service.VerificarCodigo(r.Context(), codigo)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"verificacao": verificacao})
}

func (h *Handler) handleComprovante(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(chi.URLParam(r, "token"))
	if token == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION", "token obrigatório", nil)
		return
	}

	envio, err := h.service.ComprovantePorToken(r.Context(), token)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"envio": envio})
}

func subjectAsUUID(ctx context.Context) (uuid.UUID, error) {
	return uuid.Parse(httpmiddleware.GetSubject(ctx))
}

func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrCampanhaNaoEncontrada), errors.Is(err, ErrEnvioNaoEncontrado):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrCampanhaInativa), errors.Is(err, ErrCampanhaStatus),
		errors.Is(err, ErrTransicao), errors.Is(err, ErrEnvioNaoEnviado):
		writeError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, ErrDatas):
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	default:
		writeInternalError(w, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data, "error": nil})
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]any{"code": code, "message": message}
	if details != nil {
		body["details"] = details
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"data": nil, "error": body})
}

func writeInternalError(w http.ResponseWriter, err error) {
	log.Error().Err(err).Msg("recadastro: erro interno")
	writeError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
}

func logRequest(ctx context.Context, rota string, subject uuid.UUID, start time.Time) {
	log.Info().Str("rota", rota).Stringer("subject", subject).
		Dur("duration", time.Since(start)).Msg("recadastro_request")
}
