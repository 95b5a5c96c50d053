package auth

import (
	"context"

	"github.com/bareeqalyusr/bnpl-backend/internal/user"
)

// AuthUser is the authenticated principal carried through request context.
type AuthUser struct {
	UserID int64
	Email  string
	Role   user.Role
}

type ctxKey string

const userCtxKey ctxKey = "auth_user"

func ContextWithUser(ctx context.Context, u *AuthUser) context.Context {
	return context.WithValue(ctx, userCtxKey, u)
}

func UserFromContext(ctx context.Context) (*AuthUser, bool) {
	u, ok := ctx.Value(userCtxKey).(*AuthUser)
	return u, ok
}
