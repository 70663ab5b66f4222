package echoapi

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/elimu-cd/elimu/core"
	"github.com/elimu-cd/elimu/core/user"
)

// Token types
const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"
)

var (
	// appJWTConfig is the default JWT auth middleware config. The signing key is
	// filled in lazily so the config can exist before core.InitConf has run.
	appJWTConfig = middleware.JWTConfig{
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    "userToken",
		Claims:        new(Claims),
	}
	contextUserKey = "user"
)

// Claims represents the authorization claims transmitted via a JWT.
// SessionHash is derived from the password hash: changing the password rotates
// it and invalidates every token minted before the change.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	TokenType    string `json:"type,omitempty"`
	SessionHash  string `json:"shash,omitempty"`
	Username     string `json:"username,omitempty"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role,omitempty"`
	IsStudent    bool   `json:"is_student,omitempty"` // -> STUDENT PORTAL
	IsTeacher    bool   `json:"is_teacher,omitempty"` // -> TEACHER PORTAL
	IsAdmin      bool   `json:"is_admin,omitempty"`   // -> ADMIN PORTAL
}

// TokenPair is an access + refresh token couple issued on login/register.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

func signingKey() []byte {
	return []byte(core.Conf.SecretKey)
}

func jwtMiddleware() echo.MiddlewareFunc {
	cfg := appJWTConfig
	cfg.SigningKey = signingKey()
	return middleware.JWTWithConfig(cfg)
}

// sessionHash derives the shash claim from the user's password hash.
func sessionHash(usr user.User) string {
	sum := sha256.Sum256(usr.PasswordHash)
	return hex.EncodeToString(sum[:])[:12]
}

func GetUserClaims(usr user.User, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	var oriat int64
	if len(origIat) > 0 {
		oriat = origIat[0]
	} else {
		oriat = nownix
	}

	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    core.Conf.AppName,
			Subject:   usr.ID,
			Audience:  "Elimu",
			ExpiresAt: now.Add(core.Conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		TokenType:    tokenAccess,
		SessionHash:  sessionHash(usr),
		Username:     usr.Username,
		Email:        usr.Email,
		Role:         usr.Role,
		IsStudent:    usr.IsStudent(),
		IsTeacher:    usr.IsTeacher(),
		IsAdmin:      usr.IsAdmin(),
	}
	return claims
}

// GetRefreshClaims mints the long-lived refresh claims. The jti identifies the
// token in the blacklist once the user logs out.
func GetRefreshClaims(usr user.User) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.New().String(),
			Issuer:    core.Conf.AppName,
			Subject:   usr.ID,
			Audience:  "Elimu",
			ExpiresAt: now.Add(core.Conf.Server.JWTRefreshExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		TokenType:   tokenRefresh,
		SessionHash: sessionHash(usr),
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(appJWTConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(signingKey())
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

// GenerateTokenPair mints a fresh access + refresh pair for the user.
func GenerateTokenPair(usr user.User) (TokenPair, error) {
	access, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		return TokenPair{}, errors.Wrap(err, "generating access token")
	}
	refresh, err := GenerateToken(GetRefreshClaims(usr))
	if err != nil {
		return TokenPair{}, errors.Wrap(err, "generating refresh token")
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// parseToken validates the signature and expiry of a raw token string.
func parseToken(tokenStr string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != appJWTConfig.SigningMethod {
			return nil, errors.New("unexpected signing method")
		}
		return signingKey(), nil
	})
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}
	return claims, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(appJWTConfig.ContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			// a refresh token cannot be used to access the API
			if claims.TokenType == tokenRefresh {
				return Claims{}, errUnauthorized
			}
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextUser(ctx echo.Context, svc *user.Service, clms ...Claims) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	var claims Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else {
		claims, err = getContextClaims(ctx)
		if err != nil {
			return user.User{}, errors.Wrap(err, "getting context claims")
		}
	}

	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	// tokens minted before a password change carry a stale session hash
	if claims.SessionHash != sessionHash(usr) {
		return user.User{}, errUnauthorized
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

// refreshToken exchanges a valid, un-blacklisted refresh token for a fresh
// access token.
func refreshToken(ctx echo.Context, tokenStr string, svc *user.Service) (string, error) {
	claims, err := parseToken(tokenStr)
	if err != nil {
		return "", err
	}
	if claims.TokenType != tokenRefresh {
		return "", errInvalidToken
	}

	blacklisted, err := svc.IsTokenBlacklisted(ctx.Request().Context(), claims.Id)
	if err != nil {
		return "", errors.Wrap(err, "checking token blacklist")
	}
	if blacklisted {
		return "", errInvalidToken
	}

	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return "", errInvalidToken
		}
		return "", errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive {
		return "", errAccountDeactivated
	}
	if claims.SessionHash != sessionHash(usr) {
		return "", errInvalidToken
	}

	return GenerateToken(GetUserClaims(usr, claims.IssuedAt))
}
