// Package handlers exposes the checker over HTTP.
package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"promowatch/internal/models"
	"promowatch/internal/ozon"
	"promowatch/internal/rules"
	"promowatch/internal/worker"
)

// CheckHandler serves the synchronous single-URL check.
type CheckHandler struct {
	sessions worker.SessionFactory
}

// NewCheckHandler creates a new CheckHandler.
func NewCheckHandler(sessions worker.SessionFactory) *CheckHandler {
	return &CheckHandler{sessions: sessions}
}

type checkRequest struct {
	URL   string    `json:"url"`
	Rules rules.Set `json:"rules"`
}

// Check opens one product page, inspects it and classifies the result in the
// same request.
func (h *CheckHandler) Check(c echo.Context) error {
	var req checkRequest
	_ = c.Bind(&req)

	url := strings.TrimSpace(req.URL)
	if url == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"ok": false, "error": "URL не указан."})
	}
	if !ozon.IsProductURL(url) {
		return c.JSON(http.StatusBadRequest, echo.Map{"ok": false, "error": "Нужна ссылка на карточку Ozon (/product/...)."})
	}

	sess, err := h.sessions(false)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"ok": false, "error": err.Error()})
	}
	defer sess.Close()

	var res models.CheckResult
	if sess.Open(c.Request().Context(), url) {
		res = sess.CheckCurrent(url)
	} else {
		res = models.CheckResult{URL: url, Error: "Не удалось открыть страницу после повторов."}
	}

	verdict, reason, trace := rules.Evaluate(res.LabelText, res.HasLabel, req.Rules)
	return c.JSON(http.StatusOK, echo.Map{
		"ok":             res.OK,
		"url":            res.URL,
		"has_label":      res.HasLabel,
		"seller_ok":      res.SellerOK,
		"seller_name":    res.SellerName,
		"label_text":     res.LabelText,
		"error":          res.Error,
		"verdict":        verdict,
		"verdict_reason": reason,
		"debug":          trace,
	})
}
