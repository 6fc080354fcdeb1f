package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"presence-service/internal/client"
	"presence-service/internal/domain"
)

const unknownDisplayName = "Unknown"

// Resolver authenticates a bearer token and describes its owner.
// workspaceID selects the organization when the token does not name one;
// pass uuid.Nil to rely on the token alone.
type Resolver interface {
	Resolve(ctx context.Context, token string, workspaceID uuid.UUID) (domain.Identity, error)
}

// TokenValidator checks a token with the auth service.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (uuid.UUID, error)
}

type Options struct {
	// Remote validation; nil disables it.
	Auth TokenValidator
	// Workspace profile and membership lookups; nil disables them.
	Users client.UserClient
	// Local validation key source. Either SecretKey (HMAC) or Keyfunc (JWKS).
	SecretKey string
	Keyfunc   jwt.Keyfunc
	Logger    *zap.Logger
}

// TokenResolver validates tokens with auth-service when configured and falls
// back to local JWT verification, then enriches the identity from user-service.
type TokenResolver struct {
	auth    TokenValidator
	users   client.UserClient
	keyfunc jwt.Keyfunc
	methods []string
	logger  *zap.Logger
}

func NewTokenResolver(opts Options) (*TokenResolver, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := &TokenResolver{auth: opts.Auth, users: opts.Users, logger: opts.Logger}
	switch {
	case opts.Keyfunc != nil:
		r.keyfunc = opts.Keyfunc
		r.methods = []string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}
	case opts.SecretKey != "":
		secret := []byte(opts.SecretKey)
		r.keyfunc = func(*jwt.Token) (interface{}, error) { return secret, nil }
		r.methods = []string{"HS256", "HS384", "HS512"}
	}

	if r.auth == nil && r.keyfunc == nil {
		return nil, errors.New("identity: no token validation configured")
	}
	return r, nil
}

func (r *TokenResolver) Resolve(ctx context.Context, token string, workspaceID uuid.UUID) (domain.Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return domain.Identity{}, fmt.Errorf("%w: token required", domain.ErrAuthentication)
	}

	userID, claims, err := r.validate(ctx, token)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrAuthentication, err)
	}

	orgID, err := r.organization(ctx, token, userID, claims, workspaceID)
	if err != nil {
		return domain.Identity{}, err
	}

	identity := domain.Identity{
		UserID:         userID,
		OrganizationID: orgID,
		DisplayName:    claims.displayName(),
		AvatarRef:      claims.str("picture", "profileImageUrl"),
		Roles:          claims.roles(),
	}
	r.enrich(ctx, token, &identity)

	if identity.DisplayName == "" {
		identity.DisplayName = unknownDisplayName
	}
	return identity, nil
}

func (r *TokenResolver) validate(ctx context.Context, token string) (uuid.UUID, tokenClaims, error) {
	if r.auth != nil {
		userID, err := r.auth.ValidateToken(ctx, token)
		if err == nil {
			// auth-service가 검증했으므로 서명 확인 없이 클레임만 읽는다
			claims, _ := parseUnverified(token)
			return userID, claims, nil
		}
		if r.keyfunc == nil {
			return uuid.Nil, nil, err
		}
		r.logger.Debug("Auth service validation failed, falling back to local", zap.Error(err))
	}

	claims, err := r.parseLocal(token)
	if err != nil {
		return uuid.Nil, nil, err
	}
	userID, err := claims.userID()
	if err != nil {
		return uuid.Nil, nil, err
	}
	return userID, claims, nil
}

func (r *TokenResolver) parseLocal(token string) (tokenClaims, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, r.keyfunc,
		jwt.WithValidMethods(r.methods),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return tokenClaims(claims), nil
}

func (r *TokenResolver) organization(ctx context.Context, token string, userID uuid.UUID, claims tokenClaims, workspaceID uuid.UUID) (uuid.UUID, error) {
	if claimed, ok := claims.organizationID(); ok {
		if workspaceID != uuid.Nil && workspaceID != claimed {
			return uuid.Nil, fmt.Errorf("%w: token is not valid for workspace %s", domain.ErrAuthentication, workspaceID)
		}
		return claimed, nil
	}

	if workspaceID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: no organization in token", domain.ErrAuthentication)
	}
	if r.users == nil {
		return uuid.Nil, fmt.Errorf("%w: workspace membership cannot be verified", domain.ErrAuthentication)
	}

	member, err := r.users.ValidateMember(ctx, workspaceID, userID, token)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: membership lookup: %v", domain.ErrUpstream, err)
	}
	if !member {
		return uuid.Nil, fmt.Errorf("%w: not a member of workspace %s", domain.ErrAuthentication, workspaceID)
	}
	return workspaceID, nil
}

// enrich fills profile fields from user-service. Failures keep the token's values.
func (r *TokenResolver) enrich(ctx context.Context, token string, identity *domain.Identity) {
	if r.users == nil {
		return
	}

	profile, err := r.users.GetWorkspaceProfile(ctx, identity.OrganizationID, identity.UserID, token)
	if err != nil {
		r.logger.Warn("Failed to get user profile",
			zap.String("user_id", identity.UserID.String()),
			zap.String("organization_id", identity.OrganizationID.String()),
			zap.Error(err))
		return
	}

	if profile.NickName != "" {
		identity.DisplayName = profile.NickName
	}
	if profile.ProfileImageURL != "" {
		identity.AvatarRef = profile.ProfileImageURL
	}
	identity.RoleLabel = profile.JobTitle
	identity.DepartmentLabel = profile.Department
}
