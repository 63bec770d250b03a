package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"userhub/internal/common"
	"userhub/internal/models"
	"userhub/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type UserHandlers struct {
	accounts services.AccountService
}

func NewUserHandlers(accounts services.AccountService) *UserHandlers {
	return &UserHandlers{accounts: accounts}
}

func requireActor(c echo.Context) (*models.User, error) {
	actor, ok := common.GetActorFromContext(c.Request().Context())
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Unauthenticated")
	}
	return actor, nil
}

func parseUserID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	return id, nil
}

func queryInt(c echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// Profile returns the caller's own record.
func (h *UserHandlers) Profile(c echo.Context) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	view, err := h.accounts.Profile(c.Request().Context(), actor)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"user": view})
}

// UpdateProfile is the self-service update; a password change must
// carry the verified current password.
func (h *UserHandlers) UpdateProfile(c echo.Context) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}

	var req services.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	view, err := h.accounts.UpdateProfile(c.Request().Context(), actor, &req)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Profile updated successfully",
		"user":    view,
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *UserHandlers) ChangePassword(c echo.Context) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}

	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := h.accounts.ChangePassword(c.Request().Context(), actor, req.CurrentPassword, req.NewPassword); err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

// ListUsers is the paginated admin listing with optional role and
// search filters.
func (h *UserHandlers) ListUsers(c echo.Context) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}

	req := services.ListUsersRequest{
		Role:    c.QueryParam("role"),
		Search:  c.QueryParam("search"),
		Page:    queryInt(c, "page", 1),
		PerPage: queryInt(c, "per_page", 10),
	}
	page, err := h.accounts.ListUsers(c.Request().Context(), actor, &req)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"users":      page.Users,
		"pagination": page.Pagination,
		"filters": map[string]string{
			"role":   req.Role,
			"search": req.Search,
		},
	})
}

func (h *UserHandlers) GetUser(c echo.Context) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	id, err := parseUserID(c)
	if err != nil {
		return err
	}

	view, err := h.accounts.GetUser(c.Request().Context(), actor, id)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"user": view})
}

func (h *UserHandlers) UpdateUser(c echo.Context) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	id, err := parseUserID(c)
	if err != nil {
		return err
	}

	var req services.UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	view, err := h.accounts.UpdateUser(c.Request().Context(), actor, id, &req)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "User updated successfully",
		"user":    view,
	})
}

func (h *UserHandlers) DeleteUser(c echo.Context) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	id, err := parseUserID(c)
	if err != nil {
		return err
	}

	deleted, err := h.accounts.DeleteUser(c.Request().Context(), actor, id)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":      "User deleted successfully",
		"deleted_user": deleted,
	})
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

func (h *UserHandlers) ChangeRole(c echo.Context) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	id, err := parseUserID(c)
	if err != nil {
		return err
	}

	var req changeRoleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	view, err := h.accounts.ChangeRole(c.Request().Context(), actor, id, req.Role)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "User role updated successfully",
		"user": map[string]interface{}{
			"id":        view.ID,
			"full_name": view.FullName,
			"email":     view.Email,
			"role":      view.Role,
		},
	})
}

type bulkUpdateRolesRequest struct {
	UserIDs []uuid.UUID `json:"user_ids"`
	Role    string      `json:"role"`
}

func (h *UserHandlers) BulkUpdateRoles(c echo.Context) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}

	var req bulkUpdateRolesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result, err := h.accounts.BulkChangeRole(c.Request().Context(), actor, req.UserIDs, req.Role)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":       "User roles updated successfully",
		"updated_count": result.UpdatedCount,
		"new_role":      result.NewRole,
	})
}

func (h *UserHandlers) Statistics(c echo.Context) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}

	result, err := h.accounts.Statistics(c.Request().Context(), actor)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"statistics": result.Statistics,
		"timeframe": map[string]interface{}{
			"recent_days": result.RecentDays,
			"active_days": result.ActiveDays,
		},
	})
}

func (h *UserHandlers) Activity(c echo.Context) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}

	entries, err := h.accounts.Activity(c.Request().Context(), actor)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"users": entries,
		"total": len(entries),
	})
}

type searchRequest struct {
	Search    string `json:"search"`
	Role      string `json:"role"`
	SortBy    string `json:"sort_by"`
	SortOrder string `json:"sort_order"`
	Page      int    `json:"page"`
}

func (h *UserHandlers) Search(c echo.Context) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}

	var body searchRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	req := services.SearchRequest{
		Term:      body.Search,
		Role:      body.Role,
		SortBy:    body.SortBy,
		SortOrder: body.SortOrder,
		Page:      body.Page,
	}
	result, err := h.accounts.Search(c.Request().Context(), actor, &req)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"search_results": result.Page.Users,
		"pagination":     result.Page.Pagination,
		"search_params": map[string]string{
			"search_term": result.Term,
			"role_filter": result.Role,
			"sort_by":     result.SortBy,
			"sort_order":  result.SortOrder,
		},
	})
}

// Export streams the full user set as a downloadable JSON or CSV file.
func (h *UserHandlers) Export(c echo.Context) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}

	export, err := h.accounts.ExportUsers(c.Request().Context(), actor, c.QueryParam("format"), c.QueryParam("role"))
	if err != nil {
		return common.RespondError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", export.Filename))
	return c.Blob(http.StatusOK, export.ContentType, export.Data)
}
