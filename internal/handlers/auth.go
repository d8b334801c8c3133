package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bayanihan-data/povassess/internal/apperr"
	"github.com/bayanihan-data/povassess/internal/policy"
	"github.com/bayanihan-data/povassess/internal/session"
	"github.com/bayanihan-data/povassess/types"
)

const defaultTokenTTL = time.Hour

// Authenticator is the slice of the user service the auth endpoints need.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (types.User, error)
	ResolveActor(ctx context.Context, userID int, role types.Role) (policy.Actor, error)
	Get(ctx context.Context, actor policy.Actor, id int) (types.User, error)
}

// AuthHandler provides JWT authentication endpoints.
type AuthHandler struct {
	users    Authenticator
	revoked  session.RevocationList
	secret   []byte
	tokenTTL time.Duration
	logger   *zap.Logger
}

// NewAuthHandler constructs an AuthHandler. A zero ttl uses one hour.
func NewAuthHandler(users Authenticator, revoked session.RevocationList, jwtSecret string, ttl time.Duration, logger *zap.Logger) *AuthHandler {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		users:    users,
		revoked:  revoked,
		secret:   []byte(jwtSecret),
		tokenTTL: ttl,
		logger:   logger,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler) {
	r.Post("/login", handler.Login)
	r.With(handler.RequireAuth).Get("/me", handler.Me)
	r.With(handler.RequireAuth).Post("/logout", handler.Logout)
}

// tokenClaims carries the actor id in sub and the role. The area is never
// taken from the token.
type tokenClaims struct {
	Role types.Role `json:"role"`
	jwt.RegisteredClaims
}

// RequireAuth enforces a valid, unrevoked bearer token and injects the
// resolved actor into the request context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		claims, err := parseToken(tokenString, h.secret)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		if h.revoked != nil {
			revoked, err := h.revoked.IsRevoked(r.Context(), claims.ID)
			if err != nil {
				h.logger.Error("check token revocation failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "failed to verify token")
				return
			}
			if revoked {
				writeError(w, http.StatusUnauthorized, "token revoked")
				return
			}
		}

		userID, _ := strconv.Atoi(claims.Subject)
		actor, err := h.users.ResolveActor(r.Context(), userID, claims.Role)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			writeServiceError(w, h.logger, err)
			return
		}

		ctx := withActor(r.Context(), actor)
		ctx = context.WithValue(ctx, contextTokenKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Login verifies credentials and returns a JWT.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	token, claims, err := issueToken(user.ID, user.Role, h.secret, h.tokenTTL)
	if err != nil {
		h.logger.Error("sign token failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: user})
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.users.Get(r.Context(), actor, actor.ID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Logout revokes the presented token until it would have expired anyway.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := r.Context().Value(contextTokenKey).(*tokenClaims)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if h.revoked != nil && claims.ExpiresAt != nil {
		if err := h.revoked.Revoke(r.Context(), claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil {
			h.logger.Error("revoke token failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to revoke token")
			return
		}
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "logged out"})
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      types.User `json:"user"`
}

func issueToken(userID int, role types.Role, secret []byte, ttl time.Duration) (string, *tokenClaims, error) {
	now := time.Now()
	claims := &tokenClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.Itoa(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

func parseToken(tokenString string, secret []byte) (*tokenClaims, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if id, err := strconv.Atoi(claims.Subject); err != nil || id < 1 {
		return nil, errors.New("invalid subject")
	}
	if !claims.Role.Valid() {
		return nil, errors.New("invalid role")
	}
	if claims.ID == "" {
		return nil, errors.New("missing token id")
	}
	return claims, nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
