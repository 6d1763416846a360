package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/linktally/linktally/internal/config"
	"github.com/linktally/linktally/internal/constants"
	"github.com/linktally/linktally/internal/infrastructure/logger"
	appvalidation "github.com/linktally/linktally/internal/infrastructure/validation"
	"github.com/linktally/linktally/internal/processing/links"
	"github.com/linktally/linktally/pkg/httputils"
	"go.uber.org/zap"
)

type LinksHandler struct {
	cfg *config.Config
	svc *links.Service

	publishTimeout time.Duration
}

type LinksHandlerOptions struct {
	// PublishTimeout bounds the async click event enqueue after a redirect.
	PublishTimeout time.Duration
}

func NewLinksHandler(cfg *config.Config, svc *links.Service) *LinksHandler {
	return NewLinksHandlerWithOptions(cfg, svc, LinksHandlerOptions{})
}

func NewLinksHandlerWithOptions(cfg *config.Config, svc *links.Service, opts LinksHandlerOptions) *LinksHandler {
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 2 * time.Second
	}

	return &LinksHandler{
		cfg:            cfg,
		svc:            svc,
		publishTimeout: opts.PublishTimeout,
	}
}

type shortenRequest struct {
	URL string `json:"url" validate:"required,notblank"`
}

type shortenResponse struct {
	ShortID  string `json:"shortId"`
	ShortURL string `json:"shortUrl"`
}

func (h *LinksHandler) Shorten(w http.ResponseWriter, r *http.Request) {
	var req shortenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody)
		return
	}
	if err := appvalidation.Validate(req); err != nil {
		httputils.WriteAPIError(w, r, constants.ErrInvalidURL)
		return
	}

	link, err := h.svc.CreateShortLink(r.Context(), req.URL)
	if err != nil {
		switch {
		case errors.Is(err, links.ErrInvalidURL):
			httputils.WriteAPIError(w, r, constants.ErrInvalidURL)
		case errors.Is(err, links.ErrIDExhausted):
			logger.Error("short id generation exhausted", zap.Error(err))
			httputils.WriteAPIError(w, r, constants.ErrShortIDExhausted)
		default:
			logger.Error("failed to create short link", zap.Error(err))
			httputils.WriteAPIError(w, r, constants.ErrInternalError)
		}
		return
	}

	httputils.WriteJSON(w, http.StatusCreated, shortenResponse{
		ShortID:  link.ShortID,
		ShortURL: strings.TrimRight(h.cfg.Shortener.BaseURL, "/") + "/" + link.ShortID,
	})
}

type linkResponse struct {
	ID           string        `json:"_id"`
	URL          string        `json:"url"`
	ShortID      string        `json:"shortId"`
	VisitHistory []links.Visit `json:"visitHistory"`
	CreatedAt    time.Time     `json:"createdAt"`
}

type listURLsResponse struct {
	URLs []linkResponse `json:"urls"`
}

func (h *LinksHandler) ListURLs(w http.ResponseWriter, r *http.Request) {
	all, err := h.svc.ListAll(r.Context())
	if err != nil {
		logger.Error("failed to list links", zap.Error(err))
		httputils.WriteAPIError(w, r, constants.ErrInternalError)
		return
	}

	urls := make([]linkResponse, 0, len(all))
	for _, link := range all {
		urls = append(urls, linkResponse{
			ID:           link.ID,
			URL:          link.URL,
			ShortID:      link.ShortID,
			VisitHistory: link.VisitHistory,
			CreatedAt:    link.CreatedAt,
		})
	}

	httputils.WriteJSON(w, http.StatusOK, listURLsResponse{URLs: urls})
}

func (h *LinksHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	shortID := r.PathValue("shortId")

	analytics, err := h.svc.GetAnalytics(r.Context(), shortID)
	if err != nil {
		switch {
		case errors.Is(err, links.ErrNotFound):
			httputils.WriteAPIError(w, r, constants.ErrLinkNotFound)
		default:
			logger.Error("failed to compute analytics", zap.Error(err), zap.String("short_id", shortID))
			httputils.WriteAPIError(w, r, constants.ErrInternalError)
		}
		return
	}

	httputils.WriteJSON(w, http.StatusOK, analytics)
}

func (h *LinksHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	shortID := r.PathValue("shortId")

	// The visit append is durable before we answer; only the event stream
	// enqueue below is fire-and-forget.
	url, err := h.svc.ResolveAndRecordVisit(r.Context(), shortID)
	if err != nil {
		switch {
		case errors.Is(err, links.ErrNotFound):
			httputils.WriteAPIError(w, r, constants.ErrLinkNotFound)
		default:
			logger.Error("failed to resolve short id", zap.Error(err), zap.String("short_id", shortID))
			httputils.WriteAPIError(w, r, constants.ErrInternalError)
		}
		return
	}

	occurredAt := time.Now().UTC()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.publishTimeout)
		defer cancel()
		if err := h.svc.PublishClick(ctx, shortID, occurredAt); err != nil {
			logger.Warn("failed to enqueue click event", zap.Error(err), zap.String("short_id", shortID))
		}
	}()

	http.Redirect(w, r, url, h.cfg.Shortener.RedirectStatus)
}
