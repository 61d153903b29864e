package httpapi

import (
	"net/http"
	"strings"

	"github.com/MrEthical07/donorhub"
	"github.com/MrEthical07/donorhub/middleware"
	"github.com/labstack/echo/v4"
)

type userView struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type sessionResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	User    userView `json:"user"`
	Token   string   `json:"token"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return badRequest("Email and password are required")
	}

	res, err := a.engine.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionResponse{
		Success: true,
		Message: "Login successful",
		User:    userView{Email: res.User.Email, Name: res.User.Name},
		Token:   res.Token,
	})
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Name      string `json:"name"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
}

func (a *API) register(c echo.Context) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" ||
		(strings.TrimSpace(req.Name) == "" && strings.TrimSpace(req.FirstName) == "") {
		return badRequest("Email, password, and name are required")
	}

	res, err := a.engine.Register(c.Request().Context(), donorhub.RegisterRequest{
		Email:     req.Email,
		Password:  req.Password,
		Name:      req.Name,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sessionResponse{
		Success: true,
		Message: "Registration successful. Please check your email to verify your account.",
		User:    userView{Email: res.User.Email, Name: res.User.Name},
		Token:   res.Token,
	})
}

// logout always succeeds. A valid token is revoked when revocation is on.
func (a *API) logout(c echo.Context) error {
	if token, found := middleware.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization)); found {
		a.engine.Logout(c.Request().Context(), token)
	}
	return c.JSON(http.StatusOK, ok("Logged out successfully"))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (a *API) changePassword(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	var req changePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return badRequest("Current password and new password are required")
	}

	if err := a.engine.ChangePassword(c.Request().Context(), id.Email, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ok("Password changed successfully"))
}

type emailRequest struct {
	Email string `json:"email"`
}

const forgotPasswordMessage = "If an account exists with that email, a password reset link has been sent."

// forgotPassword answers identically whether or not the account exists.
func (a *API) forgotPassword(c echo.Context) error {
	var req emailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Email) == "" {
		return badRequest("Email is required")
	}

	if _, err := a.engine.RequestPasswordReset(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ok(forgotPasswordMessage))
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (a *API) resetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Token) == "" || req.NewPassword == "" {
		return badRequest("Token and new password are required")
	}

	if err := a.engine.ConfirmPasswordReset(c.Request().Context(), req.Token, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ok("Password reset successfully"))
}

func (a *API) verifyEmail(c echo.Context) error {
	token := strings.TrimSpace(c.QueryParam("token"))
	if token == "" {
		return badRequest("Verification token is required")
	}

	ctx := c.Request().Context()
	res, err := a.engine.VerifyEmail(ctx, token)
	if err != nil {
		return err
	}
	if res.AlreadyVerified {
		return c.JSON(http.StatusOK, ok("Email already verified"))
	}

	if a.welcome != nil {
		profile, err := a.engine.Profile(ctx, res.Email)
		if err == nil {
			err = a.welcome.SendWelcomeEmail(ctx, res.Email, profile.Name)
		}
		if err != nil {
			a.logger.WarnContext(ctx, "welcome email not sent", "email", res.Email, "error", err)
		}
	}
	return c.JSON(http.StatusOK, ok("Email verified successfully"))
}

func (a *API) resendVerification(c echo.Context) error {
	var req emailRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Email) == "" {
		return badRequest("Email is required")
	}

	if err := a.engine.ResendVerification(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ok("Verification email sent"))
}

type meResponse struct {
	Success bool             `json:"success"`
	User    donorhub.Profile `json:"user"`
}

func (a *API) me(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	profile, err := a.engine.Profile(c.Request().Context(), id.Email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, meResponse{Success: true, User: profile})
}
