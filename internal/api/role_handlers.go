package api

import (
	"net/http"

	"github.com/hyrelay/hyrelay/internal/api/helpers"
	"github.com/hyrelay/hyrelay/internal/auth"
	"github.com/hyrelay/hyrelay/internal/domain"
)

// RoleHandler serves role management and user administration.
type RoleHandler struct {
	service *auth.RBACService
}

func NewRoleHandler(service *auth.RBACService) *RoleHandler {
	return &RoleHandler{service: service}
}

type roleRequest struct {
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

type roleResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Permissions []string `json:"permissions"`
	IsSystem    bool     `json:"is_system"`
}

func toRoleResponse(role *domain.Role) roleResponse {
	perms := make([]string, 0, len(role.Permissions))
	for _, p := range role.Permissions {
		perms = append(perms, p.String())
	}
	return roleResponse{
		ID:          role.ID.String(),
		Name:        role.Name,
		Description: role.Description,
		Permissions: perms,
		IsSystem:    role.IsSystem,
	}
}

func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	role, err := h.service.CreateRole(r.Context(), req.Name, req.Description, req.Permissions)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusCreated, toRoleResponse(role))
}

func (h *RoleHandler) Update(w http.ResponseWriter, r *http.Request) {
	roleID, err := uuidParam(r, "roleID")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	var req roleRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	role, err := h.service.UpdateRole(r.Context(), roleID, req.Description, req.Permissions)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *RoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	roleID, err := uuidParam(r, "roleID")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	if err := h.service.DeleteRole(r.Context(), roleID); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)
	roles, err := h.service.ListRoles(r.Context(), skip, limit)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, toRoleResponse(role))
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"roles": out})
}

func (h *RoleHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuidParam(r, "userID")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	roles, err := h.service.ListUserRoles(r.Context(), userID)
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, toRoleResponse(role))
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"roles": out})
}

type assignmentRequest struct {
	RoleID string `json:"role_id"`
}

func (h *RoleHandler) Assign(w http.ResponseWriter, r *http.Request) {
	userID, err := uuidParam(r, "userID")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	var req assignmentRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	roleID, err := parseUUID(req.RoleID, "role_id")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	if err := h.service.AssignRole(r.Context(), userID, roleID); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RoleHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	userID, err := uuidParam(r, "userID")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	roleID, err := uuidParam(r, "roleID")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	if err := h.service.RevokeRole(r.Context(), userID, roleID); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RoleHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuidParam(r, "userID")
	if err != nil {
		helpers.RespondError(w, r, err)
		return
	}

	if err := h.service.DeactivateUser(r.Context(), userID); err != nil {
		helpers.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
