package handler

import (
	"github.com/alttext/backend/internal/application/metering"
	"github.com/gin-gonic/gin"
)

// GenerateRequest represents one metered generation
type GenerateRequest struct {
	LicenseKey string `json:"license_key" binding:"omitempty,max=64"`
	SiteHash   string `json:"site_hash" binding:"omitempty,max=64"`
	UserID     string `json:"user_id" binding:"omitempty,max=128"`
	Prompt     string `json:"prompt" binding:"omitempty,max=4000"`
	ImageURL   string `json:"image_url" binding:"omitempty,url,max=2048"`
}

// GenerateHandler runs the metering pipeline
type GenerateHandler struct {
	BaseHandler
	meter *metering.Meter
}

// NewGenerateHandler creates a new GenerateHandler
func NewGenerateHandler(meter *metering.Meter) *GenerateHandler {
	return &GenerateHandler{meter: meter}
}

// Generate godoc
// @ID           generateAltText
// @Summary      Generate text, charging the license's quota
// @Tags         generate
// @Accept       json
// @Produce      json
// @Param        request body GenerateRequest true "Generation request"
// @Success      200 {object} dto.Response{data=metering.GenerateOutput}
// @Failure      402 {object} dto.Response{error=dto.ErrorInfo} "QUOTA_EXCEEDED"
// @Failure      429 {object} dto.Response{error=dto.ErrorInfo} "RATE_LIMIT_EXCEEDED"
// @Router       /generate [post]
func (h *GenerateHandler) Generate(c *gin.Context) {
	var req GenerateRequest
	if !h.BindJSON(c, &req) {
		return
	}
	key := licenseKey(c, req.LicenseKey)
	if key == "" {
		h.InvalidLicense(c)
		return
	}

	out, err := h.meter.Generate(c.Request.Context(), metering.GenerateInput{
		LicenseKey: key,
		SiteHash:   req.SiteHash,
		UserID:     req.UserID,
		Prompt:     req.Prompt,
		ImageURL:   req.ImageURL,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, out)
}
