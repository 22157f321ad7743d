package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"authflow/internal/apperror"
	"authflow/internal/domain"
	"authflow/internal/service"
)

// Handler wires HTTP routes to the auth service.
type Handler struct {
	auth           service.AuthService
	cookies        CookieConfig
	allowedOrigins []string
	logger         *logrus.Logger
}

func NewHandler(auth service.AuthService, cookies CookieConfig, allowedOrigins []string, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		auth:           auth,
		cookies:        cookies,
		allowedOrigins: allowedOrigins,
		logger:         logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(h.corsMiddleware())

	api := router.Group("/api")
	{
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})

		users := api.Group("/users")
		users.POST("/signup", h.signup)
		users.POST("/login", h.login)
		users.GET("/logout", h.logout)
		users.GET("/protected", h.Protect(), h.protected)
		users.PATCH("/updateMyPassword", h.Protect(), h.updatePassword)
	}
}

func (h *Handler) corsMiddleware() gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if len(h.allowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = h.allowedOrigins
		// the dashboard sends the session cookie along
		cfg.AllowCredentials = true
	}
	cfg.AllowMethods = []string{"GET", "POST", "PATCH", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	return cors.New(cfg)
}

type signupRequest struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
	Role            string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

func (h *Handler) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, apperror.NewValidation("Invalid request body", err))
		return
	}

	sess, err := h.auth.Signup(c.Request.Context(), domain.NewUser{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Username:        req.Username,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		Role:            domain.Role(req.Role),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.logger.WithFields(logrus.Fields{"user_id": sess.User.ID, "email": sess.User.Email}).Info("signed up")
	h.sendSession(c, http.StatusCreated, sess)
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, apperror.NewValidation("Invalid request body", err))
		return
	}

	sess, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.logger.WithField("user_id", sess.User.ID).Info("logged in")
	h.sendSession(c, http.StatusOK, sess)
}

func (h *Handler) logout(c *gin.Context) {
	clearTokenCookie(c, h.cookies)
	h.logger.Info("logged out")
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h *Handler) protected(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		h.writeError(c, apperror.NewNotAuthenticated())
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userToResponse(user)})
}

func (h *Handler) updatePassword(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		h.writeError(c, apperror.NewNotAuthenticated())
		return
	}

	var req updatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, apperror.NewValidation("Invalid request body", err))
		return
	}

	sess, err := h.auth.ChangePassword(c.Request.Context(), user.ID, req.PasswordCurrent, req.Password, req.PasswordConfirm)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.sendSession(c, http.StatusOK, sess)
}

func (h *Handler) sendSession(c *gin.Context, status int, sess *service.Session) {
	setTokenCookie(c, h.cookies, sess.Token)
	h.logger.WithField("user_id", sess.User.ID).Debug("session cookie set")

	c.JSON(status, SessionResponse{
		Status: "Success",
		Token:  sess.Token,
		Data:   SessionData{User: userToResponse(sess.User)},
	})
}

// writeError answers with {message}; causes only reach the log.
func (h *Handler) writeError(c *gin.Context, err error) {
	appErr, ok := apperror.As(err)
	if !ok {
		appErr = apperror.New(apperror.Unknown, "Internal server error", err)
	}

	status := appErr.StatusCode()
	entry := h.logger.WithFields(logrus.Fields{
		"kind":   appErr.Kind.String(),
		"status": status,
		"path":   c.FullPath(),
	})
	if status >= http.StatusInternalServerError {
		entry.WithError(err).Error("request failed")
	} else {
		entry.Debug(appErr.Message)
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{Message: appErr.Message})
}

type ErrorResponse struct {
	Message string `json:"message"`
}

type SessionResponse struct {
	Status string      `json:"status"`
	Token  string      `json:"token"`
	Data   SessionData `json:"data"`
}

type SessionData struct {
	User UserResponse `json:"user"`
}

type UserResponse struct {
	ID                string  `json:"id"`
	FirstName         string  `json:"firstName"`
	LastName          string  `json:"lastName"`
	Email             string  `json:"email"`
	Username          string  `json:"username"`
	Role              string  `json:"role"`
	PasswordChangedAt *string `json:"passwordChangedAt,omitempty"`
	CreatedAt         string  `json:"createdAt,omitempty"`
}

func userToResponse(user *domain.User) UserResponse {
	resp := UserResponse{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
		Username:  user.Username,
		Role:      string(user.Role),
	}
	if !user.CreatedAt.IsZero() {
		resp.CreatedAt = user.CreatedAt.Format(time.RFC3339)
	}
	if user.PasswordChangedAt != nil {
		v := user.PasswordChangedAt.Format(time.RFC3339)
		resp.PasswordChangedAt = &v
	}
	return resp
}
