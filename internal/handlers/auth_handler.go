package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "pulpe/internal/errors"
	"pulpe/internal/middleware"
	"pulpe/internal/models"
	"pulpe/internal/services"
)

// AuthHandler handles authentication and profile requests.
type AuthHandler struct {
	userService   services.UserServicer
	mutations     services.MutationRecorder
	tokens        *middleware.TokenIssuer
	defaultPayDay int
}

// NewAuthHandler creates a new AuthHandler. defaultPayDay applies to
// registrations that do not choose one.
func NewAuthHandler(userService services.UserServicer, mutations services.MutationRecorder, tokens *middleware.TokenIssuer, defaultPayDay int) *AuthHandler {
	return &AuthHandler{userService: userService, mutations: mutations, tokens: tokens, defaultPayDay: defaultPayDay}
}

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Email         string `json:"email" binding:"required,email,max=255"`
	Password      string `json:"password" binding:"required,min=8,max=128"`
	FirstName     string `json:"first_name" binding:"max=100"`
	LastName      string `json:"last_name" binding:"max=100"`
	PayDayOfMonth *int   `json:"pay_day_of_month" binding:"omitempty,min=1,max=31"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UpdatePayDayRequest represents the pay day update payload.
type UpdatePayDayRequest struct {
	PayDayOfMonth int `json:"pay_day_of_month" binding:"required,min=1,max=31"`
}

// UserResponse represents the user data in the response
type UserResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	PayDayOfMonth int    `json:"pay_day_of_month"`
}

// AuthResponse represents the authentication response with token
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

func newUserResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:            user.ID,
		Email:         user.Email,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		PayDayOfMonth: user.PayDayOfMonth,
	}
}

// Register handles user registration
// @Summary     Register a new user
// @Description Register a new user with email, password and optional pay day
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body RegisterRequest true "User registration data"
// @Success     201 {object} AuthResponse "User registered and token generated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     409 {object} ErrorResponse "Email already registered"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	payDay := h.defaultPayDay
	if req.PayDayOfMonth != nil {
		payDay = *req.PayDayOfMonth
	}

	user, err := h.userService.CreateUser(req.Email, req.Password, req.FirstName, req.LastName, payDay)
	if err != nil {
		respondWithError(c, err)
		return
	}

	token, err := h.tokens.Generate(user)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	h.mutations.Record(user.ID, "REGISTER", "user", user.ID, c.ClientIP(), nil)

	c.JSON(http.StatusCreated, AuthResponse{Token: token, User: newUserResponse(user)})
}

// Login handles user login
// @Summary     Login user
// @Description Authenticate a user and get a token
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body LoginRequest true "User login credentials"
// @Success     200 {object} AuthResponse "User authenticated and token generated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Invalid credentials"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	user, err := h.userService.GetUserByEmail(req.Email)
	if err != nil {
		respondWithError(c, apperrors.ErrInvalidCredentials)
		return
	}

	if !h.userService.VerifyPassword(user, req.Password) {
		respondWithError(c, apperrors.ErrInvalidCredentials)
		return
	}

	token, err := h.tokens.Generate(user)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	c.JSON(http.StatusOK, AuthResponse{Token: token, User: newUserResponse(user)})
}

// GetProfile returns the user's profile
// @Summary     Get user profile
// @Description Get the authenticated user's profile information
// @Tags        user
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} UserResponse "User profile"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /profile [get]
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	user, err := h.userService.GetUserByID(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(user)})
}

// UpdatePayDay changes the day of the month on which the user's periods start
// @Summary     Update pay day
// @Description Change the pay day used to map dates onto budget periods
// @Tags        user
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body UpdatePayDayRequest true "New pay day"
// @Success     200 {object} UserResponse "Updated profile"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /profile/pay-day [put]
func (h *AuthHandler) UpdatePayDay(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdatePayDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	user, err := h.userService.UpdatePayDay(userID, req.PayDayOfMonth)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.mutations.Record(userID, "UPDATE_PAY_DAY", "user", userID, c.ClientIP(),
		map[string]interface{}{"pay_day_of_month": req.PayDayOfMonth})

	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(user)})
}
