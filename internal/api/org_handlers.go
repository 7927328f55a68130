package api

import (
	"net/http"

	"github.com/hyrelay/hyrelay/internal/api/helpers"
	"github.com/hyrelay/hyrelay/internal/auth"
	"github.com/hyrelay/hyrelay/internal/domain"
)

// OrgHandler serves tenant provisioning and organization management.
type OrgHandler struct {
	service *auth.AuthService
}

func NewOrgHandler(service *auth.AuthService) *OrgHandler {
	return &OrgHandler{service: service}
}

type provisionRequest struct {
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	Industry      string `json:"industry"`
	AdminEmail    string `json:"admin_email"`
	AdminPassword string `json:"admin_password"`
	AdminName     string `json:"admin_name"`
}

type orgResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Industry string `json:"industry,omitempty"`
	IsActive bool   `json:"is_active"`
}

func toOrgResponse(org *domain.Organization) orgResponse {
	return orgResponse{
		ID:       org.ID.String(),
		Name:     org.Name,
		Slug:     org.Slug,
		Industry: org.Industry,
		IsActive: org.IsActive,
	}
}

// Provision is the public signup endpoint: organization, system roles, and
// the first administrator in one shot.
func (h *OrgHandler) Provision(w http.ResponseWriter, r *http.Request) {
	var req provisionRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	res, err := h.service.ProvisionOrganization(r.Context(), auth.ProvisionInput{
		Name:          req.Name,
		Slug:          req.Slug,
		Industry:      req.Industry,
		AdminEmail:    req.AdminEmail,
		AdminPassword: req.AdminPassword,
		AdminName:     req.AdminName,
	})
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	helpers.RespondJSON(w, http.StatusCreated, map[string]any{
		"organization": toOrgResponse(res.Organization),
		"admin": userResponse{
			ID:       res.Admin.ID.String(),
			Email:    res.Admin.Email.String(),
			FullName: res.Admin.FullName,
			IsActive: res.Admin.IsActive,
		},
	})
}

func (h *OrgHandler) Get(w http.ResponseWriter, r *http.Request) {
	org, err := h.service.GetOrganization(r.Context())
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, toOrgResponse(org))
}

// GetByID serves a lookup by organization id. Cross-tenant reads are refused
// by the service unless the caller is a super admin.
func (h *OrgHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	orgID, err := uuidParam(r, "orgID")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	org, err := h.service.GetOrganizationByID(r.Context(), orgID)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, toOrgResponse(org))
}

type updateOrgRequest struct {
	Name     string                       `json:"name"`
	Industry string                       `json:"industry"`
	Metadata *domain.OrganizationMetadata `json:"metadata,omitempty"`
}

func (h *OrgHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateOrgRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	org, err := h.service.UpdateOrganization(r.Context(), req.Name, req.Industry, req.Metadata)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, toOrgResponse(org))
}

// Deactivate suspends a tenant. super_admin only; enforced by the service.
func (h *OrgHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	orgID, err := uuidParam(r, "orgID")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	if err := h.service.DeactivateOrganization(r.Context(), orgID); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
