package handler

import (
	"time"

	billingapp "github.com/alttext/backend/internal/application/billing"
	"github.com/gin-gonic/gin"
)

// Accepted period query formats
var periodLayouts = []string{time.RFC3339, "2006-01-02"}

// UsageHandler serves usage breakdowns from the ledger
type UsageHandler struct {
	BaseHandler
	usage *billingapp.UsageService
}

// NewUsageHandler creates a new UsageHandler
func NewUsageHandler(usage *billingapp.UsageService) *UsageHandler {
	return &UsageHandler{usage: usage}
}

// GetUserUsage godoc
// @ID           getUserUsage
// @Summary      Per-user usage of one site
// @Description  Defaults to the current billing period when no range is given
// @Tags         usage
// @Produce      json
// @Param        X-License-Key header string true "License key"
// @Param        site_hash query string true "Site hash"
// @Param        period_start query string false "RFC3339 timestamp or YYYY-MM-DD"
// @Param        period_end query string false "RFC3339 timestamp or YYYY-MM-DD"
// @Success      200 {object} dto.Response{data=billingapp.UserUsageReport}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /usage/users [get]
func (h *UsageHandler) GetUserUsage(c *gin.Context) {
	key := licenseKey(c, c.Query("license_key"))
	if key == "" {
		h.InvalidLicense(c)
		return
	}
	siteHash := c.Query("site_hash")
	if siteHash == "" {
		h.BadRequest(c, "site_hash is required")
		return
	}
	start, end, ok := h.periodRange(c)
	if !ok {
		return
	}

	report, err := h.usage.UserReport(c.Request.Context(), key, siteHash, start, end)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, report)
}

// GetSiteUsage godoc
// @ID           getSiteUsage
// @Summary      Per-site usage of a license
// @Tags         usage
// @Produce      json
// @Param        X-License-Key header string true "License key"
// @Param        period_start query string false "RFC3339 timestamp or YYYY-MM-DD"
// @Param        period_end query string false "RFC3339 timestamp or YYYY-MM-DD"
// @Success      200 {object} dto.Response{data=billingapp.SiteUsageReport}
// @Router       /usage/sites [get]
func (h *UsageHandler) GetSiteUsage(c *gin.Context) {
	key := licenseKey(c, c.Query("license_key"))
	if key == "" {
		h.InvalidLicense(c)
		return
	}
	start, end, ok := h.periodRange(c)
	if !ok {
		return
	}

	report, err := h.usage.SiteReport(c.Request.Context(), key, start, end)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, report)
}

// periodRange parses period_start and period_end. Missing values are zero
// and resolved by the usage service.
func (h *UsageHandler) periodRange(c *gin.Context) (time.Time, time.Time, bool) {
	start, err := parsePeriodParam(c.Query("period_start"))
	if err != nil {
		h.BadRequest(c, "period_start must be an RFC3339 timestamp or YYYY-MM-DD")
		return time.Time{}, time.Time{}, false
	}
	end, err := parsePeriodParam(c.Query("period_end"))
	if err != nil {
		h.BadRequest(c, "period_end must be an RFC3339 timestamp or YYYY-MM-DD")
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func parsePeriodParam(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	var lastErr error
	for _, layout := range periodLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
