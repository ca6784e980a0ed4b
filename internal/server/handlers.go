package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/paperlens/internal/chat"
	"github.com/mohammad-safakhou/paperlens/internal/helpers"
	"github.com/mohammad-safakhou/paperlens/internal/summarizer"
	"github.com/mohammad-safakhou/paperlens/models"
)

// Stable wire error codes; clients branch on these, humans read the logs.
const (
	errInvalidRequest   = "invalid_request"
	errExtractionFailed = "extraction_failed"
	errModelUnavailable = "model_unavailable"
	errNoDocument       = "no_document_for_session"
)

type summarizeRequest struct {
	PaperURL   string `json:"paper_url"`
	Complexity string `json:"complexity"`
}

type summarizeResponse struct {
	Success  bool   `json:"success"`
	Summary  string `json:"summary"`
	Level    string `json:"level"`
	PaperURL string `json:"paper_url"`
	Degraded bool   `json:"degraded,omitempty"`
}

type chatRequest struct {
	PaperURL  string `json:"paper_url"`
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Success   bool   `json:"success"`
	Answer    string `json:"answer"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleSummarize(c echo.Context) error {
	var req summarizeRequest
	if err := c.Bind(&req); err != nil {
		summarizeRequests.WithLabelValues("unknown", outcomeBadRequest).Inc()
		return echo.NewHTTPError(http.StatusBadRequest, errInvalidRequest).SetInternal(err)
	}
	if strings.TrimSpace(req.PaperURL) == "" {
		summarizeRequests.WithLabelValues("unknown", outcomeBadRequest).Inc()
		return echo.NewHTTPError(http.StatusBadRequest, errInvalidRequest)
	}
	tier := models.ParseTier(req.Complexity)

	canonical, err := helpers.CanonicalURL(req.PaperURL)
	if err != nil {
		summarizeRequests.WithLabelValues(string(tier), outcomeBadRequest).Inc()
		return echo.NewHTTPError(http.StatusBadRequest, errInvalidRequest).SetInternal(err)
	}
	fingerprint := helpers.Fingerprint(canonical)
	ctx := c.Request().Context()

	doc, ok, err := s.store.GetDocument(ctx, fingerprint)
	if err != nil {
		summarizeRequests.WithLabelValues(string(tier), outcomeError).Inc()
		return echo.NewHTTPError(http.StatusInternalServerError, "cache error").SetInternal(err)
	}
	if ok {
		documentLookups.WithLabelValues("hit").Inc()
	} else {
		documentLookups.WithLabelValues("miss").Inc()
		start := time.Now()
		text, kind, err := s.extractor.Extract(ctx, canonical)
		extractionDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			summarizeRequests.WithLabelValues(string(tier), outcomeExtractErr).Inc()
			return echo.NewHTTPError(http.StatusUnprocessableEntity, errExtractionFailed).SetInternal(err)
		}
		doc = models.Document{
			CanonicalURL: canonical,
			Text:         text,
			Kind:         kind,
			ExtractedAt:  time.Now().UTC(),
		}
		if err := s.store.PutDocument(ctx, fingerprint, doc); err != nil {
			summarizeRequests.WithLabelValues(string(tier), outcomeError).Inc()
			return echo.NewHTTPError(http.StatusInternalServerError, "cache error").SetInternal(err)
		}
	}

	sum, err := s.summarizer.Summarize(ctx, fingerprint, doc, tier)
	if err != nil {
		switch {
		case errors.Is(err, summarizer.ErrNoContent):
			summarizeRequests.WithLabelValues(string(tier), outcomeExtractErr).Inc()
			return echo.NewHTTPError(http.StatusUnprocessableEntity, errExtractionFailed).SetInternal(err)
		case errors.Is(err, summarizer.ErrModelUnavailable):
			summarizeRequests.WithLabelValues(string(tier), outcomeModelErr).Inc()
			return echo.NewHTTPError(http.StatusServiceUnavailable, errModelUnavailable).SetInternal(err)
		default:
			summarizeRequests.WithLabelValues(string(tier), outcomeError).Inc()
			return echo.NewHTTPError(http.StatusInternalServerError, "summarize error").SetInternal(err)
		}
	}
	if sum.Degraded {
		degradedSummaries.Inc()
	}
	summarizeRequests.WithLabelValues(string(tier), outcomeOK).Inc()
	return c.JSON(http.StatusOK, summarizeResponse{
		Success:  true,
		Summary:  sum.Text,
		Level:    string(sum.Tier),
		PaperURL: canonical,
		Degraded: sum.Degraded,
	})
}

func (s *Server) handleChat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		chatRequests.WithLabelValues(outcomeBadRequest).Inc()
		return echo.NewHTTPError(http.StatusBadRequest, errInvalidRequest).SetInternal(err)
	}
	if strings.TrimSpace(req.PaperURL) == "" || strings.TrimSpace(req.Message) == "" {
		chatRequests.WithLabelValues(outcomeBadRequest).Inc()
		return echo.NewHTTPError(http.StatusBadRequest, errInvalidRequest)
	}

	canonical, err := helpers.CanonicalURL(req.PaperURL)
	if err != nil {
		chatRequests.WithLabelValues(outcomeBadRequest).Inc()
		return echo.NewHTTPError(http.StatusBadRequest, errInvalidRequest).SetInternal(err)
	}
	fingerprint := helpers.Fingerprint(canonical)

	sid, err := s.ensureSession(c, strings.TrimSpace(req.SessionID))
	if err != nil {
		chatRequests.WithLabelValues(outcomeError).Inc()
		return echo.NewHTTPError(http.StatusInternalServerError, "session error").SetInternal(err)
	}

	answer, err := s.chat.Ask(c.Request().Context(), sid, fingerprint, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrNoDocument):
			chatRequests.WithLabelValues(outcomeNoDocument).Inc()
			return echo.NewHTTPError(http.StatusNotFound, errNoDocument).SetInternal(err)
		case errors.Is(err, chat.ErrModelFailed):
			chatRequests.WithLabelValues(outcomeModelErr).Inc()
			return echo.NewHTTPError(http.StatusServiceUnavailable, errModelUnavailable).SetInternal(err)
		default:
			chatRequests.WithLabelValues(outcomeError).Inc()
			return echo.NewHTTPError(http.StatusInternalServerError, "chat error").SetInternal(err)
		}
	}
	chatRequests.WithLabelValues(outcomeOK).Inc()
	return c.JSON(http.StatusOK, chatResponse{Success: true, Answer: answer, SessionID: sid})
}
