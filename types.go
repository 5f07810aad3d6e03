package authcore

import "context"

// User is the minimal account view the Engine needs: identity plus whether
// the account may still authenticate.
type User struct {
	ID       string
	Disabled bool
}

// UserProvider resolves subjects against the host application's user store.
// FindUser returns ErrUserNotFound for unknown ids; implementations may
// also return ErrUserDisabled, or a User with Disabled set.
type UserProvider interface {
	FindUser(ctx context.Context, id string) (User, error)
}

// UserProviderFunc adapts a function to the UserProvider interface.
type UserProviderFunc func(ctx context.Context, id string) (User, error)

// FindUser calls f.
func (f UserProviderFunc) FindUser(ctx context.Context, id string) (User, error) {
	return f(ctx, id)
}

// Pair is an access credential plus the raw refresh credential that renews
// it. The refresh value is shown to the caller exactly once; only its hash
// is stored.
type Pair struct {
	AccessToken  string
	RefreshToken string
}
