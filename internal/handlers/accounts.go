package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	iauth "github.com/mysterymsg/mystery/internal/auth"
	"github.com/mysterymsg/mystery/internal/models"
	"github.com/mysterymsg/mystery/internal/services"
	"github.com/mysterymsg/mystery/pkg/response"
)

// AccountHandler exposes registration, verification and sign-in endpoints.
type AccountHandler struct {
	accounts *services.AccountService
	jwt      *iauth.JWTService
}

// NewAccountHandler constructs an AccountHandler.
func NewAccountHandler(accounts *services.AccountService, jwt *iauth.JWTService) *AccountHandler {
	return &AccountHandler{accounts: accounts, jwt: jwt}
}

type signUpRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type resendCodeRequest struct {
	Identifier string `json:"identifier"`
}

type verifyCodeRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

type signInRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type accountPayload struct {
	ID                  string    `json:"id"`
	Username            string    `json:"username"`
	Email               string    `json:"email"`
	IsVerified          bool      `json:"is_verified"`
	IsAcceptingMessages bool      `json:"is_accepting_messages"`
	CreatedAt           time.Time `json:"created_at"`
}

type pendingPayload struct {
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"code_expires_at"`
}

type sessionPayload struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresIn   int            `json:"expires_in"`
	Identity    iauth.Identity `json:"identity"`
}

// POST /api/sign-up
func (h *AccountHandler) SignUp(c *gin.Context) {
	var req signUpRequest
	if !bindJSON(c, &req) {
		return
	}

	account, err := h.accounts.Register(requestContext(c), services.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, "User registered successfully. Please verify your account.", pendingOf(account))
}

// POST /api/resend-code
func (h *AccountHandler) ResendCode(c *gin.Context) {
	var req resendCodeRequest
	if !bindJSON(c, &req) {
		return
	}

	account, err := h.accounts.ResendVerificationCode(requestContext(c), req.Identifier)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Verification code sent. Please check your email.", pendingOf(account))
}

// POST /api/verify-code
func (h *AccountHandler) VerifyCode(c *gin.Context) {
	var req verifyCodeRequest
	if !bindJSON(c, &req) {
		return
	}

	account, err := h.accounts.VerifyAccount(requestContext(c), req.Username, req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Account verified successfully", accountOf(account))
}

// POST /api/sign-in
func (h *AccountHandler) SignIn(c *gin.Context) {
	var req signInRequest
	if !bindJSON(c, &req) {
		return
	}

	identity, err := h.accounts.Authenticate(requestContext(c), req.Identifier, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	session, err := issueSession(h.jwt, identity)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Signed in successfully", session)
}

// GET /api/check-username-unique?username=
func (h *AccountHandler) CheckUsernameUnique(c *gin.Context) {
	if err := h.accounts.CheckUsernameAvailable(requestContext(c), c.Query("username")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Username is unique", nil)
}

// GET /api/me
func (h *AccountHandler) Me(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	account, err := h.accounts.GetAccount(requestContext(c), identity.AccountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, "", gin.H{
		"identity": identity,
		"account":  accountOf(account),
	})
}

func issueSession(jwt *iauth.JWTService, identity iauth.Identity) (sessionPayload, error) {
	token, err := jwt.GenerateAccessToken(identity)
	if err != nil {
		return sessionPayload{}, err
	}
	return sessionPayload{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(jwt.TTL().Seconds()),
		Identity:    identity,
	}, nil
}

func accountOf(account *models.Account) accountPayload {
	return accountPayload{
		ID:                  account.ID,
		Username:            account.Username,
		Email:               account.Email,
		IsVerified:          account.IsVerified,
		IsAcceptingMessages: account.IsAcceptingMessages,
		CreatedAt:           account.CreatedAt,
	}
}

func pendingOf(account *models.Account) pendingPayload {
	return pendingPayload{
		Username:  account.Username,
		Email:     account.Email,
		ExpiresAt: account.VerifyCodeExpiry,
	}
}
