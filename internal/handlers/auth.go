package handlers

import (
	"errors"
	"net/http"

	"bombona_tracker/internal/models"
	"bombona_tracker/internal/service"

	"github.com/gin-gonic/gin"
)

type signUpInput struct {
	Email    string `json:"email" binding:"required"`
	FullName string `json:"full_name"`
	Password string `json:"password" binding:"required"`
}

type signInInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// bindJSONOrBadRequest tries to bind the request body into dst and writes a 400 JSON on failure.
// Returns false if the request was already handled (aborted), true otherwise.
func (h *Handler) bindJSONOrBadRequest(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.badRequest(c, "bad_request_body", err)
		return false
	}
	return true
}

// @Summary      Sign up
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signUpInput  true  "Account"
// @Success      200   {object}  map[string]int
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /auth/sign-up [post]
func (h *Handler) signUp(c *gin.Context) {
	var input signUpInput
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}

	id, err := h.services.SignUp(input.Email, input.FullName, input.Password)
	if err != nil {
		h.respondError(c, "auth_sign_up_failed", err, "email", input.Email)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id})
}

// @Summary      Sign in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signInInput  true  "Credentials"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /auth/sign-in [post]
func (h *Handler) signIn(c *gin.Context) {
	var input signInInput
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}

	token, err := h.services.GenerateToken(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		code := http.StatusUnauthorized
		if !errors.Is(err, service.ErrUserNotFound) && !errors.Is(err, service.ErrInvalidPassword) {
			code = http.StatusInternalServerError
		}
		kind := kindUnauthorized
		msg := "invalid credentials"
		if code != http.StatusUnauthorized {
			kind, msg = kindInternal, errInternal
		}
		h.logAndJSONError(c, code, kind, msg, "auth_sign_in_failed", err, "email", input.Email)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// identity loads the signed-in user, writing the error response when it fails.
func (h *Handler) identity(c *gin.Context) (models.Identity, bool) {
	id, err := h.services.CurrentUser(userID(c))
	if err != nil {
		h.respondError(c, "auth_current_user_failed", err, "user_id", userID(c))
		return models.Identity{}, false
	}
	return id, true
}

// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Success      200  {object}  models.Identity
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/me [get]
// @Security     BearerAuth
func (h *Handler) me(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, id)
}

// @Summary      Log out
// @Description  Revokes the bearer token until it expires
// @Tags         auth
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/logout [post]
// @Security     BearerAuth
func (h *Handler) logout(c *gin.Context) {
	h.services.Logout(c.Request.Context(), c.GetString(accessTokenKey))
	h.services.Release(userID(c))
	c.JSON(http.StatusOK, gin.H{"status": statusLoggedOut})
}
