package auth

import "context"

type contextKey struct{}

const roleAdmin = "admin"

// AuthContext identifies the signed-in user behind a request.
type AuthContext struct {
	UserID    int64
	Email     string
	Role      string
	SessionID int64
}

func (a AuthContext) IsAdmin() bool { return a.Role == roleAdmin }

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

// Current returns the request's AuthContext, or the zero value for an
// anonymous request.
func Current(ctx context.Context) AuthContext {
	ac, _ := FromContext(ctx)
	return ac
}

func UserID(ctx context.Context) int64    { return Current(ctx).UserID }
func SessionID(ctx context.Context) int64 { return Current(ctx).SessionID }
func IsAdmin(ctx context.Context) bool    { return Current(ctx).IsAdmin() }
