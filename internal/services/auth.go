package services

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/dataimport-backend/internal/data/repos"
	"github.com/yungbote/dataimport-backend/internal/domain/csvimport"
	"github.com/yungbote/dataimport-backend/internal/platform/apierr"
	"github.com/yungbote/dataimport-backend/internal/platform/dbctx"
	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

type ContributorClaims struct {
	ContributorID string `json:"contributor_id"`
	jwt.RegisteredClaims
}

// AuthService issues and resolves the HS256 tokens operators act with.
type AuthService interface {
	RegisterContributor(dbc dbctx.Context, displayName string, admin bool) (*csvimport.Contributor, error)
	IssueToken(c *csvimport.Contributor, ttl time.Duration) (string, error)
	ContributorFromToken(dbc dbctx.Context, token string) (*csvimport.Contributor, error)
}

type authService struct {
	log          *logger.Logger
	contributors repos.ContributorRepo
	jwtSecretKey []byte
	now          func() time.Time
}

func NewAuthService(baseLog *logger.Logger, contributors repos.ContributorRepo, jwtSecretKey string) AuthService {
	return &authService{
		log:          baseLog.With("service", "AuthService"),
		contributors: contributors,
		jwtSecretKey: []byte(jwtSecretKey),
		now:          time.Now,
	}
}

func (as *authService) RegisterContributor(dbc dbctx.Context, displayName string, admin bool) (*csvimport.Contributor, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, apierr.New(http.StatusBadRequest, "invalid_command", fmt.Errorf("display name required"))
	}
	c := &csvimport.Contributor{
		ID:          uuid.New(),
		DisplayName: displayName,
		IsAdmin:     admin,
		CreatedAt:   as.now().UTC(),
	}
	if err := as.contributors.Upsert(dbc, c); err != nil {
		return nil, fmt.Errorf("save contributor: %w", err)
	}
	as.log.Info("Contributor registered", "contributor_id", c.ID, "admin", admin)
	return c, nil
}

func (as *authService) IssueToken(c *csvimport.Contributor, ttl time.Duration) (string, error) {
	if len(as.jwtSecretKey) == 0 {
		return "", fmt.Errorf("JWT_SECRET_KEY not configured")
	}
	now := as.now()
	claims := ContributorClaims{
		ContributorID: c.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  c.ID.String(),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(as.jwtSecretKey)
}

func (as *authService) ContributorFromToken(dbc dbctx.Context, tokenString string) (*csvimport.Contributor, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tokenString), "Bearer "))
	if tokenString == "" {
		return nil, unauthorized(fmt.Errorf("missing token"))
	}
	claims := &ContributorClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return as.jwtSecretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(as.now))
	if err != nil {
		return nil, unauthorized(err)
	}
	id, err := uuid.Parse(claims.ContributorID)
	if err != nil {
		return nil, unauthorized(fmt.Errorf("bad contributor id: %w", err))
	}
	c, err := as.contributors.GetByID(dbc, id)
	if err != nil {
		return nil, fmt.Errorf("load contributor: %w", err)
	}
	if c == nil {
		return nil, unauthorized(fmt.Errorf("unknown contributor %s", id))
	}
	return c, nil
}

func unauthorized(err error) *apierr.Error {
	return apierr.New(http.StatusUnauthorized, "invalid_token", err)
}
