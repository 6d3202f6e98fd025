package handler

import (
	billingapp "github.com/alttext/backend/internal/application/billing"
	"github.com/gin-gonic/gin"
)

// QuotaHandler reports the credit position of a license
type QuotaHandler struct {
	BaseHandler
	quota *billingapp.QuotaService
}

// NewQuotaHandler creates a new QuotaHandler
func NewQuotaHandler(quota *billingapp.QuotaService) *QuotaHandler {
	return &QuotaHandler{quota: quota}
}

// GetStatus godoc
// @ID           getQuotaStatus
// @Summary      Get the quota status of a license
// @Description  Credits used and remaining in the current billing period, with the site-scoped position when site_hash is given
// @Tags         quota
// @Produce      json
// @Param        X-License-Key header string true "License key"
// @Param        site_hash query string false "Site hash"
// @Success      200 {object} dto.Response{data=billingapp.QuotaStatus}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /quota/status [get]
func (h *QuotaHandler) GetStatus(c *gin.Context) {
	key := licenseKey(c, c.Query("license_key"))
	if key == "" {
		h.InvalidLicense(c)
		return
	}

	status, err := h.quota.Status(c.Request.Context(), key, c.Query("site_hash"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, status)
}
