package http

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"flock/internal/domain"
	"flock/internal/service"
	"flock/internal/token"
)

// sessionCookie is the cookie carrying the session token.
const sessionCookie = "jwt"

// identityKey is the gin context key the session middleware stores the
// resolved identity under.
const identityKey = "currentUser"

// Handler wires HTTP routes to domain services.
type Handler struct {
	accounts service.AccountService
	graph    service.GraphService
	tokens   *token.Service
	devMode  bool
	logger   *logrus.Logger
}

func NewHandler(accounts service.AccountService, graph service.GraphService, tokens *token.Service, devMode bool, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		accounts: accounts,
		graph:    graph,
		tokens:   tokens,
		devMode:  devMode,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		api.POST("/signup", h.signup)
		api.POST("/login", h.login)
		api.POST("/logout", h.logout)
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})

		authed := api.Group("")
		authed.Use(h.requireAuth)
		{
			authed.GET("/me", h.getMe)
			authed.PATCH("/users/me", h.updateProfile)
			authed.GET("/users/suggested", h.suggestedUsers)
			authed.GET("/users/:username", h.getUserProfile)
			authed.POST("/users/follow/:id", h.followUser)
			authed.GET("/notifications", h.listNotifications)
		}
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requireAuth resolves the session cookie to an authenticated identity and
// attaches its public projection to the request context. It is the only way
// downstream handlers learn who is calling.
func (h *Handler) requireAuth(c *gin.Context) {
	tokenString, err := c.Cookie(sessionCookie)
	if err != nil || tokenString == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "no token provided, unauthorized"})
		return
	}

	userID, err := h.tokens.Verify(tokenString)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token, unauthorized"})
		return
	}

	user, err := h.accounts.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.logger.Errorf("resolve session identity: %v", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.Set(identityKey, user)
	c.Next()
}

func currentUser(c *gin.Context) *domain.User {
	value, _ := c.Get(identityKey)
	user, _ := value.(*domain.User)
	return user
}

type signupRequest struct {
	FullName string `json:"full_name"`
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type updateProfileRequest struct {
	FullName        string `json:"full_name"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	Bio             string `json:"bio"`
	Link            string `json:"link"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ProfileImage    string `json:"profile_image"`
	CoverImage      string `json:"cover_image"`
}

func (h *Handler) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.accounts.Signup(c.Request.Context(), service.SignupInput{
		FullName: req.FullName,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	if !h.startSession(c, user.ID) {
		return
	}
	c.JSON(http.StatusCreated, userToResponse(user))
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.accounts.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if !h.startSession(c, user.ID) {
		return
	}
	c.JSON(http.StatusOK, userToResponse(user))
}

func (h *Handler) logout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "logged out successfully"})
}

func (h *Handler) getMe(c *gin.Context) {
	c.JSON(http.StatusOK, userToResponse(currentUser(c)))
}

func (h *Handler) getUserProfile(c *gin.Context) {
	user, err := h.accounts.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(user))
}

func (h *Handler) followUser(c *gin.Context) {
	targetID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || targetID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	transition, err := h.graph.FollowOrUnfollow(c.Request.Context(), currentUser(c).ID, targetID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transition": transition})
}

func (h *Handler) suggestedUsers(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "4"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	users, err := h.graph.SuggestUsers(c.Request.Context(), currentUser(c).ID, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]UserResponse, len(users))
	for i := range users {
		resp[i] = userToResponse(&users[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profileImage, err := decodeImage(req.ProfileImage)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid profile image encoding"})
		return
	}
	coverImage, err := decodeImage(req.CoverImage)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cover image encoding"})
		return
	}

	user, err := h.accounts.UpdateProfile(c.Request.Context(), currentUser(c).ID, service.ProfileUpdate{
		FullName:        req.FullName,
		Username:        req.Username,
		Email:           req.Email,
		Bio:             req.Bio,
		Link:            req.Link,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		ProfileImage:    profileImage,
		CoverImage:      coverImage,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(user))
}

func (h *Handler) listNotifications(c *gin.Context) {
	notifications, err := h.graph.Notifications(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]NotificationResponse, len(notifications))
	for i := range notifications {
		resp[i] = notificationToResponse(notifications[i])
	}
	c.JSON(http.StatusOK, resp)
}

// startSession issues a token for the user and sets the session cookie.
// Returns false after writing an error response when signing fails.
func (h *Handler) startSession(c *gin.Context, userID int64) bool {
	signed, err := h.tokens.Issue(userID)
	if err != nil {
		h.logger.Errorf("issue session token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return false
	}
	h.setSessionCookie(c, signed, int(h.tokens.TTL().Seconds()))
	return true
}

func (h *Handler) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(sessionCookie, value, maxAge, "/", "", !h.devMode, true)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.Errorf("unhandled error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// decodeImage accepts either plain base64 or a data URI and returns the raw
// bytes; an empty input means no image was supplied.
func decodeImage(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, nil
	}
	if idx := strings.Index(encoded, ";base64,"); idx >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[idx+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(encoded)
}

type UserResponse struct {
	ID           int64   `json:"id"`
	Username     string  `json:"username"`
	Email        string  `json:"email"`
	FullName     string  `json:"full_name"`
	Bio          string  `json:"bio"`
	Link         string  `json:"link"`
	ProfileImage string  `json:"profile_image"`
	CoverImage   string  `json:"cover_image"`
	Followers    []int64 `json:"followers"`
	Following    []int64 `json:"following"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

type NotificationResponse struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	From      int64  `json:"from"`
	To        int64  `json:"to"`
	CreatedAt string `json:"created_at"`
}

func userToResponse(user *domain.User) UserResponse {
	resp := UserResponse{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		FullName:     user.FullName,
		Bio:          user.Bio,
		Link:         user.Link,
		ProfileImage: user.ProfileImage,
		CoverImage:   user.CoverImage,
		Followers:    user.Followers,
		Following:    user.Following,
		CreatedAt:    user.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    user.UpdatedAt.Format(time.RFC3339),
	}
	if resp.Followers == nil {
		resp.Followers = []int64{}
	}
	if resp.Following == nil {
		resp.Following = []int64{}
	}
	return resp
}

func notificationToResponse(n domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		From:      n.FromID,
		To:        n.ToID,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}
}
