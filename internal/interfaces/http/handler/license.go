package handler

import (
	licensingapp "github.com/alttext/backend/internal/application/licensing"
	"github.com/gin-gonic/gin"
)

// LicenseHandler handles license validation and site binding endpoints.
// All endpoints authenticate with the license key itself.
type LicenseHandler struct {
	BaseHandler
	validator *licensingapp.Validator
	registry  *licensingapp.SiteRegistry
}

// NewLicenseHandler creates a new LicenseHandler
func NewLicenseHandler(validator *licensingapp.Validator, registry *licensingapp.SiteRegistry) *LicenseHandler {
	return &LicenseHandler{
		validator: validator,
		registry:  registry,
	}
}

// Validate godoc
// @ID           validateLicense
// @Summary      Validate a license key
// @Tags         license
// @Accept       json
// @Produce      json
// @Param        request body ValidateLicenseRequest false "License key (or X-License-Key header)"
// @Success      200 {object} dto.Response{data=ValidateLicenseResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      410 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /license/validate [post]
func (h *LicenseHandler) Validate(c *gin.Context) {
	var req ValidateLicenseRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}
	key := licenseKey(c, req.LicenseKey)
	if key == "" {
		h.InvalidLicense(c)
		return
	}

	validation, err := h.validator.Validate(c.Request.Context(), key)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, ValidateLicenseResponse{
		License: toLicenseResponse(validation.License),
		Limits:  validation.Limits,
	})
}

// Activate godoc
// @ID           activateSite
// @Summary      Bind a site to a license
// @Tags         license
// @Accept       json
// @Produce      json
// @Param        request body ActivateSiteRequest true "Site to activate"
// @Success      200 {object} dto.Response{data=ActivationResponse}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo} "MAX_SITES_REACHED"
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo} "LICENSE_ALREADY_ACTIVATED"
// @Router       /license/activate [post]
func (h *LicenseHandler) Activate(c *gin.Context) {
	var req ActivateSiteRequest
	if !h.BindJSON(c, &req) {
		return
	}
	key := licenseKey(c, req.LicenseKey)
	if key == "" {
		h.InvalidLicense(c)
		return
	}

	activation, err := h.registry.Activate(c.Request.Context(), licensingapp.ActivateInput{
		LicenseKey:  key,
		SiteHash:    req.SiteHash,
		SiteURL:     req.SiteURL,
		SiteName:    req.SiteName,
		Fingerprint: req.Fingerprint,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toActivationResponse(activation))
}

// Deactivate godoc
// @ID           deactivateSite
// @Summary      Release a site binding
// @Tags         license
// @Accept       json
// @Produce      json
// @Param        request body DeactivateSiteRequest true "Site to release"
// @Success      200 {object} dto.Response{data=DeactivationResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /license/deactivate [post]
func (h *LicenseHandler) Deactivate(c *gin.Context) {
	var req DeactivateSiteRequest
	if !h.BindJSON(c, &req) {
		return
	}
	key := licenseKey(c, req.LicenseKey)
	if key == "" {
		h.InvalidLicense(c)
		return
	}

	if err := h.registry.Deactivate(c.Request.Context(), key, req.SiteHash); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, DeactivationResponse{Deactivated: true, SiteHash: req.SiteHash})
}

// Transfer godoc
// @ID           transferSite
// @Summary      Move a license from one site to another
// @Tags         license
// @Accept       json
// @Produce      json
// @Param        request body TransferSiteRequest true "Old and new site"
// @Success      200 {object} dto.Response{data=ActivationResponse}
// @Router       /license/transfer [post]
func (h *LicenseHandler) Transfer(c *gin.Context) {
	var req TransferSiteRequest
	if !h.BindJSON(c, &req) {
		return
	}
	key := licenseKey(c, req.LicenseKey)
	if key == "" {
		h.InvalidLicense(c)
		return
	}

	activation, err := h.registry.Transfer(c.Request.Context(), licensingapp.TransferInput{
		LicenseKey:     key,
		OldSiteHash:    req.OldSiteHash,
		NewSiteHash:    req.NewSiteHash,
		NewFingerprint: req.NewFingerprint,
		NewURL:         req.NewURL,
		NewName:        req.NewName,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toActivationResponse(activation))
}

// SetSiteQuota godoc
// @ID           setSiteQuota
// @Summary      Set or clear a site's credit cap (agency plan)
// @Tags         license
// @Accept       json
// @Produce      json
// @Param        site_hash path string true "Site hash"
// @Param        request body SetSiteQuotaRequest true "Quota limit, null clears it"
// @Success      200 {object} dto.Response{data=SiteResponse}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo} "PLAN_NOT_SUPPORTED"
// @Router       /license/sites/{site_hash}/quota [put]
func (h *LicenseHandler) SetSiteQuota(c *gin.Context) {
	var req SetSiteQuotaRequest
	if !h.BindJSON(c, &req) {
		return
	}
	key := licenseKey(c, req.LicenseKey)
	if key == "" {
		h.InvalidLicense(c)
		return
	}

	site, err := h.registry.SetSiteQuota(c.Request.Context(), key, c.Param("site_hash"), req.QuotaLimit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toSiteResponse(site))
}

// ListSites godoc
// @ID           listSites
// @Summary      List the sites bound to a license
// @Tags         license
// @Produce      json
// @Param        X-License-Key header string true "License key"
// @Param        active query bool false "Only active bindings"
// @Success      200 {object} dto.Response{data=[]SiteResponse}
// @Router       /license/sites [get]
func (h *LicenseHandler) ListSites(c *gin.Context) {
	key := licenseKey(c, c.Query("license_key"))
	if key == "" {
		h.InvalidLicense(c)
		return
	}

	sites, err := h.registry.ListSites(c.Request.Context(), key, c.Query("active") == "true")
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toSiteResponses(sites))
}

func toActivationResponse(a *licensingapp.Activation) ActivationResponse {
	return ActivationResponse{
		License: toLicenseResponse(a.License),
		Limits:  a.Limits,
		Site:    toSiteResponse(a.Site),
	}
}
