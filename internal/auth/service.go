package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/bareeqalyusr/bnpl-backend/internal"
	"github.com/bareeqalyusr/bnpl-backend/internal/user"
)

type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetByID(ctx context.Context, id int64) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
}

// ProfileRegistrar creates the role-specific profile (customer ledger account
// or merchant record) when a user registers.
type ProfileRegistrar interface {
	RegisterCustomer(ctx context.Context, userID int64) error
	RegisterMerchant(ctx context.Context, userID int64, shopName string) error
}

type Claims struct {
	UserID int64     `json:"uid"`
	Role   user.Role `json:"role"`
	jwt.RegisteredClaims
}

type Service struct {
	users         UserRepository
	registrar     ProfileRegistrar
	privateKey    *rsa.PrivateKey
	publicKey     *rsa.PublicKey
	tokenDuration time.Duration
	bcryptCost    int
	logger        *slog.Logger
}

func NewService(users UserRepository, registrar ProfileRegistrar, cfg internal.SecurityConfig, logger *slog.Logger) (*Service, error) {
	priv, err := cfg.GetPrivateKey()
	if err != nil {
		return nil, err
	}
	pub, err := cfg.GetPublicKey()
	if err != nil {
		return nil, err
	}
	return &Service{
		users:         users,
		registrar:     registrar,
		privateKey:    priv,
		publicKey:     pub,
		tokenDuration: cfg.AccessTokenDuration,
		bcryptCost:    cfg.BCryptCost,
		logger:        logger,
	}, nil
}

func (s *Service) Register(ctx context.Context, dto RegisterDTO) (*user.User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), s.bcryptCost)
	if err != nil {
		return nil, internal.NewInternalError("could not hash password", err)
	}

	u := &user.User{
		Email:        dto.Email,
		PasswordHash: string(hash),
		FullName:     dto.FullName,
		Phone:        dto.Phone,
		Role:         dto.Role,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		s.logger.Error("failed to create user", "error", err, "email", dto.Email)
		return nil, internal.NewInternalError("could not create user", err)
	}

	switch u.Role {
	case user.RoleCustomer:
		err = s.registrar.RegisterCustomer(ctx, u.ID)
	case user.RoleMerchant:
		err = s.registrar.RegisterMerchant(ctx, u.ID, dto.ShopName)
	}
	if err != nil {
		s.logger.Error("failed to create profile", "error", err, "user_id", u.ID, "role", u.Role)
		return nil, internal.NewInternalError("could not create profile", err)
	}

	return u, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (string, *user.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, internal.ErrInvalidCredentials
	}
	if !u.IsActive {
		return "", nil, internal.ErrUserInactive
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, internal.ErrInvalidCredentials
	}

	token, err := s.issueToken(u)
	if err != nil {
		return "", nil, internal.NewInternalError("could not issue token", err)
	}
	return token, u, nil
}

func (s *Service) issueToken(u *user.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: u.ID,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenDuration)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.privateKey)
}

// ValidateToken parses a bearer token and resolves the authenticated user.
func (s *Service) ValidateToken(tokenString string) (*AuthUser, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.publicKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, internal.ErrTokenExpired
		}
		return nil, internal.ErrInvalidToken
	}
	if !token.Valid {
		return nil, internal.ErrInvalidToken
	}
	return &AuthUser{UserID: claims.UserID, Email: claims.Subject, Role: claims.Role}, nil
}
