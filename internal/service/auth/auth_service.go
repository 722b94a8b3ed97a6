package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"autobook/internal/model"
	"autobook/internal/repository"
	"autobook/internal/utils"
	"autobook/pkg/log"
)

// RegisterRequest register request
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	FullName string `json:"full_name" binding:"required,min=2,max=100"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Phone    string `json:"phone" binding:"omitempty,max=20"`
}

// LoginRequest login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse token response
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// AuthService authentication service interface
type AuthService interface {
	// Register user
	Register(ctx context.Context, req *RegisterRequest) (*model.User, error)

	// Login user
	Login(ctx context.Context, req *LoginRequest, ip string) (*TokenResponse, error)

	// Logout user
	Logout(ctx context.Context, userID uint64, token string) error

	// Validate token
	ValidateToken(ctx context.Context, token string) (*utils.JWTClaims, error)

	// Refresh token
	RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error)
}

// authService authentication service implementation
type authService struct {
	userRepo   repository.UserRepository
	jwtManager *utils.JWTManager
	redis      *redis.Client
}

// NewAuthService creates an authentication service
func NewAuthService(
	userRepo repository.UserRepository,
	jwtManager *utils.JWTManager,
	redis *redis.Client,
) AuthService {
	return &authService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
		redis:      redis,
	}
}

// Register registers a user
func (s *authService) Register(ctx context.Context, req *RegisterRequest) (*model.User, error) {
	log.Info("user register", "email", req.Email)

	exists, err := s.userRepo.ExistsByEmail(ctx, req.Email)
	if err != nil {
		log.Error("check email failed", "error", err)
		return nil, errors.New("system error")
	}
	if exists {
		return nil, errors.New("email already registered")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("hash password failed", "error", err)
		return nil, errors.New("system error")
	}

	user := &model.User{
		Email:        req.Email,
		PasswordHash: string(passwordHash),
		FullName:     req.FullName,
		Status:       model.UserStatusNormal,
	}
	if req.Phone != "" {
		user.Phone = &req.Phone
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		log.Error("create user failed", "error", err)
		return nil, errors.New("registration failed")
	}

	log.Info("user register success", "user_id", user.ID, "email", user.Email)
	return user, nil
}

// Login logs in a user
func (s *authService) Login(ctx context.Context, req *LoginRequest, ip string) (*TokenResponse, error) {
	log.Info("user login", "email", req.Email, "ip", ip)

	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		log.Warn("user not found", "email", req.Email)
		return nil, errors.New("email or password incorrect")
	}

	if !user.IsActive() {
		return nil, errors.New("account disabled")
	}

	if err := s.checkLoginAttempts(ctx, user.ID); err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		s.recordLoginFailure(ctx, user.ID)
		return nil, errors.New("email or password incorrect")
	}

	accessToken, err := s.jwtManager.GenerateAccessToken(user.ID, user.Email, "user")
	if err != nil {
		log.Error("generate access token failed", "error", err)
		return nil, errors.New("system error")
	}

	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		log.Error("generate refresh token failed", "error", err)
		return nil, errors.New("system error")
	}

	tokenKey := fmt.Sprintf("auth:token:%d", user.ID)
	s.redis.Set(ctx, tokenKey, accessToken, 2*time.Hour)

	s.userRepo.UpdateLastLogin(ctx, user.ID, ip)
	s.clearLoginFailures(ctx, user.ID)

	log.Info("user login success", "user_id", user.ID, "email", user.Email)

	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    7200, // 2 hours
		TokenType:    "Bearer",
	}, nil
}

// Logout logs out a user
func (s *authService) Logout(ctx context.Context, userID uint64, token string) error {
	tokenKey := fmt.Sprintf("auth:token:%d", userID)
	s.redis.Del(ctx, tokenKey)

	// Blacklist the token so it cannot be replayed until it expires
	blacklistKey := fmt.Sprintf("auth:blacklist:%s", token)
	s.redis.Set(ctx, blacklistKey, "1", 2*time.Hour)

	log.Info("user logout", "user_id", userID)
	return nil
}

// ValidateToken validates a token
func (s *authService) ValidateToken(ctx context.Context, token string) (*utils.JWTClaims, error) {
	blacklistKey := fmt.Sprintf("auth:blacklist:%s", token)
	exists, _ := s.redis.Exists(ctx, blacklistKey).Result()
	if exists > 0 {
		return nil, errors.New("token invalid")
	}

	claims, err := s.jwtManager.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	tokenKey := fmt.Sprintf("auth:token:%d", claims.UserID)
	storedToken, err := s.redis.Get(ctx, tokenKey).Result()
	if err != nil || storedToken != token {
		return nil, errors.New("token invalid")
	}

	return claims, nil
}

// RefreshToken refreshes a token
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	claims, err := s.jwtManager.ValidateToken(refreshToken)
	if err != nil {
		return nil, errors.New("refresh token invalid")
	}

	accessToken, err := s.jwtManager.GenerateAccessToken(claims.UserID, claims.Email, claims.Role)
	if err != nil {
		return nil, errors.New("generate token failed")
	}

	tokenKey := fmt.Sprintf("auth:token:%d", claims.UserID)
	s.redis.Set(ctx, tokenKey, accessToken, 2*time.Hour)

	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    7200,
		TokenType:    "Bearer",
	}, nil
}

// checkLoginAttempts checks login attempts
func (s *authService) checkLoginAttempts(ctx context.Context, userID uint64) error {
	key := fmt.Sprintf("auth:login_attempts:%d", userID)
	attempts, _ := s.redis.Get(ctx, key).Int()

	if attempts >= 5 {
		return errors.New("login failed too many times, please try again in 30 minutes")
	}

	return nil
}

// recordLoginFailure records a login failure
func (s *authService) recordLoginFailure(ctx context.Context, userID uint64) {
	key := fmt.Sprintf("auth:login_attempts:%d", userID)
	s.redis.Incr(ctx, key)
	s.redis.Expire(ctx, key, 30*time.Minute)
}

// clearLoginFailures clears login failures
func (s *authService) clearLoginFailures(ctx context.Context, userID uint64) {
	key := fmt.Sprintf("auth:login_attempts:%d", userID)
	s.redis.Del(ctx, key)
}
