package jwt

import (
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/turtacn/credkit/pkg/constants"
)

// Header is the JOSE header of an identity token.
type Header struct {
	Algorithm   string `json:"alg"`
	Type        string `json:"typ"`
	ContentType string `json:"cty"`
	KeyID       string `json:"kid"`
}

// NewHeader returns a header with the fixed type and content type set.
func NewHeader(algorithm, keyID string) Header {
	return Header{
		Algorithm:   algorithm,
		Type:        constants.JWTType,
		ContentType: constants.JWTContentType,
		KeyID:       keyID,
	}
}

// Body is the claim set of an identity token. Issuer and Subject hold the
// prefixed forms ("virgil-<appId>", "identity-<identity>").
type Body struct {
	Issuer         string            `json:"iss"`
	Subject        string            `json:"sub"`
	IssuedAt       int64             `json:"iat"`
	ExpiresAt      int64             `json:"exp"`
	AdditionalData map[string]string `json:"ada,omitempty"`
}

// NewBody builds a body for appID and identity valid for ttl from issuedAt.
func NewBody(appID, identity string, issuedAt time.Time, ttl time.Duration, ada map[string]string) Body {
	return Body{
		Issuer:         constants.IssuerPrefix + appID,
		Subject:        constants.SubjectPrefix + identity,
		IssuedAt:       issuedAt.Unix(),
		ExpiresAt:      issuedAt.Add(ttl).Unix(),
		AdditionalData: ada,
	}
}

// Body satisfies gojwt.Claims so tokens can be handed to golang-jwt tooling.
var _ gojwt.Claims = Body{}

func (b Body) GetExpirationTime() (*gojwt.NumericDate, error) {
	return gojwt.NewNumericDate(time.Unix(b.ExpiresAt, 0)), nil
}

func (b Body) GetIssuedAt() (*gojwt.NumericDate, error) {
	return gojwt.NewNumericDate(time.Unix(b.IssuedAt, 0)), nil
}

func (b Body) GetNotBefore() (*gojwt.NumericDate, error) {
	return nil, nil
}

func (b Body) GetIssuer() (string, error) {
	return b.Issuer, nil
}

func (b Body) GetSubject() (string, error) {
	return b.Subject, nil
}

func (b Body) GetAudience() (gojwt.ClaimStrings, error) {
	return nil, nil
}

func (b Body) clone() Body {
	c := b
	if b.AdditionalData != nil {
		c.AdditionalData = make(map[string]string, len(b.AdditionalData))
		for k, v := range b.AdditionalData {
			c.AdditionalData[k] = v
		}
	}
	return c
}
