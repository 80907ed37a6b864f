// Package jwttoken issues and validates the bearer tokens participants use
// against the HTTP API. Tokens carry only the participant identity; role and
// capability checks always go through the registry so revocation and
// deactivation take effect immediately.
package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// Claims are the JWT claims of a participant access token.
type Claims struct {
	ParticipantID string `json:"participant_id"`
	jwt.RegisteredClaims
}

// JWTService signs and verifies participant tokens with a shared HMAC key.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewJWTService(signingKey, issuer, audience string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// GenerateAccessToken issues a token for the participant.
func (s *JWTService) GenerateAccessToken(participantID id.ParticipantID, expiresIn time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ParticipantID: participantID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   participantID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// ValidateToken verifies the signature and expiry and returns the
// authenticated participant.
func (s *JWTService) ValidateToken(tokenString string) (id.ParticipantID, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return id.ParticipantID{}, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return id.ParticipantID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return id.ParticipantID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return id.ParseParticipantID(claims.ParticipantID)
}
