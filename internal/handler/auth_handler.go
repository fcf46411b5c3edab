package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/epicbank/ledger/internal/cqrs"
	"github.com/epicbank/ledger/internal/middleware"
	"github.com/epicbank/ledger/internal/models"
)

// Registrar creates user records.
type Registrar interface {
	RegisterUser(context.Context, cqrs.RegisterUserCommand) (*models.UserRecord, error)
}

// Authenticator issues and refreshes tokens.
type Authenticator interface {
	Login(context.Context, cqrs.LoginCommand) (string, error)
	RefreshToken(context.Context, cqrs.RefreshTokenCommand) (string, error)
}

type AuthHandler struct {
	registrar Registrar
	auth      Authenticator
}

func NewAuthHandler(registrar Registrar, auth Authenticator) *AuthHandler {
	return &AuthHandler{registrar: registrar, auth: auth}
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Mobile   string `json:"mobile" validate:"required,min=10"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	PIN      string `json:"pin" validate:"required,len=4,numeric"`
	UPI      string `json:"upi"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	Token string `json:"token" validate:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	record, err := h.registrar.RegisterUser(c.Request.Context(), cqrs.RegisterUserCommand{
		Name:     req.Name,
		Mobile:   req.Mobile,
		Email:    req.Email,
		Password: req.Password,
		PIN:      req.PIN,
		UPI:      req.UPI,
	})
	if err != nil {
		if errors.Is(err, models.ErrDuplicateUser) {
			middleware.RespondWithError(c, http.StatusConflict, "A user with this email already exists")
			return
		}
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to register")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"crn": record.User.CRN})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	token, err := h.auth.Login(c.Request.Context(), cqrs.LoginCommand{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		middleware.RespondWithError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	token, err := h.auth.RefreshToken(c.Request.Context(), cqrs.RefreshTokenCommand{Token: req.Token})
	if err != nil {
		middleware.RespondWithError(c, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}
