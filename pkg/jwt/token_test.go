package jwt_test

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/credkit/pkg/errors"
	"github.com/turtacn/credkit/pkg/jwt"
)

func testBody(exp int64) jwt.Body {
	return jwt.Body{
		Issuer:    "virgil-app123",
		Subject:   "identity-alice",
		IssuedAt:  exp - 600,
		ExpiresAt: exp,
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		header    jwt.Header
		body      jwt.Body
		signature []byte
	}{
		{
			name:      "minimal",
			header:    jwt.NewHeader("VEDS512", "kid-1"),
			body:      testBody(1700000600),
			signature: []byte{0x01, 0x02, 0x03},
		},
		{
			name:   "with additional data",
			header: jwt.NewHeader("HS256", "b5a0e1b6"),
			body: jwt.Body{
				Issuer:         "virgil-x",
				Subject:        "identity-bob@example.com",
				IssuedAt:       1,
				ExpiresAt:      2,
				AdditionalData: map[string]string{"role": "admin", "unicode": "ключ"},
			},
			signature: []byte(strings.Repeat("\xff", 64)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := jwt.New(tt.header, tt.body, tt.signature)
			require.NoError(t, err)

			parsed, err := jwt.Parse(tok.String())
			require.NoError(t, err)

			assert.Equal(t, tok.Header(), parsed.Header())
			assert.Equal(t, tok.Body(), parsed.Body())
			assert.Equal(t, tok.Signature(), parsed.Signature())
			assert.Equal(t, tok.UnsignedBytes(), parsed.UnsignedBytes())
			assert.Equal(t, tok.String(), parsed.String())
		})
	}
}

func TestTokenStringIsStable(t *testing.T) {
	tok, err := jwt.New(jwt.NewHeader("VEDS512", "k"), testBody(100), []byte("sig"))
	require.NoError(t, err)

	assert.Equal(t, tok.String(), tok.String())
	assert.Equal(t, 3, len(strings.Split(tok.String(), ".")))
	assert.NotContains(t, tok.String(), "=")
}

func TestUnsignedTokenHasTwoSegments(t *testing.T) {
	tok, err := jwt.New(jwt.NewHeader("VEDS512", "k"), testBody(100), nil)
	require.NoError(t, err)

	assert.Nil(t, tok.Signature())
	assert.Equal(t, string(tok.UnsignedBytes()), tok.String())
	assert.Equal(t, 2, len(strings.Split(tok.String(), ".")))
}

func TestEmptySignatureRendersUnsigned(t *testing.T) {
	unsigned, err := jwt.New(jwt.NewHeader("VEDS512", "k"), testBody(100), nil)
	require.NoError(t, err)
	tok, err := jwt.New(jwt.NewHeader("VEDS512", "k"), testBody(100), []byte{})
	require.NoError(t, err)

	assert.Nil(t, tok.Signature())
	assert.Equal(t, unsigned.String(), tok.String())
	assert.False(t, strings.HasSuffix(tok.String(), "."))

	// Signing the rendered input yields a token that parses back to the same parts.
	signed := tok.String() + "." + base64.RawURLEncoding.EncodeToString([]byte("sig"))
	parsed, err := jwt.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, tok.UnsignedBytes(), parsed.UnsignedBytes())
	assert.Equal(t, tok.Header(), parsed.Header())
	assert.Equal(t, tok.Body(), parsed.Body())
}

func TestHeaderWireKeys(t *testing.T) {
	tok, err := jwt.New(jwt.NewHeader("VEDS512", "kid-1"), testBody(100), []byte("s"))
	require.NoError(t, err)

	headerJSON, err := base64.RawURLEncoding.DecodeString(strings.Split(tok.String(), ".")[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"alg":"VEDS512","typ":"JWT","cty":"virgil-jwt;v=1","kid":"kid-1"}`, string(headerJSON))

	bodyJSON, err := base64.RawURLEncoding.DecodeString(strings.Split(tok.String(), ".")[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"iss":"virgil-app123","sub":"identity-alice","iat":-500,"exp":100}`, string(bodyJSON))
}

func TestParsePreservesForeignEncoding(t *testing.T) {
	// Key order and whitespace differ from what Encode would produce.
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"kid":"k", "alg":"VEDS512","typ":"JWT","cty":"virgil-jwt;v=1"}`))
	body := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"identity-a","iss":"virgil-b","iat":1,"exp":2}`))
	wire := header + "." + body + "." + base64.RawURLEncoding.EncodeToString([]byte("sig"))

	tok, err := jwt.Parse(wire)
	require.NoError(t, err)
	assert.Equal(t, wire, tok.String())
	assert.Equal(t, header+"."+body, string(tok.UnsignedBytes()))
}

func TestParseAcceptsPaddedSegments(t *testing.T) {
	tok, err := jwt.New(jwt.NewHeader("VEDS512", "k"), testBody(100), []byte{1})
	require.NoError(t, err)

	parts := strings.Split(tok.String(), ".")
	padded := parts[0] + "." + parts[1] + "." + base64.URLEncoding.EncodeToString([]byte{1})
	parsed, err := jwt.Parse(padded)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, parsed.Signature())
}

func TestParseMalformed(t *testing.T) {
	valid, err := jwt.New(jwt.NewHeader("VEDS512", "k"), testBody(100), []byte("sig"))
	require.NoError(t, err)
	parts := strings.Split(valid.String(), ".")
	notJSON := base64.RawURLEncoding.EncodeToString([]byte("not json"))
	wrongTypes := base64.RawURLEncoding.EncodeToString([]byte(`{"iat":"yesterday"}`))

	tests := []struct {
		name string
		wire string
	}{
		{"four segments", "not.a.valid.token"},
		{"one segment", "onepart"},
		{"two segments", parts[0] + "." + parts[1]},
		{"empty", ""},
		{"empty signature", parts[0] + "." + parts[1] + "."},
		{"empty header", "." + parts[1] + "." + parts[2]},
		{"bad base64", "!!!." + parts[1] + "." + parts[2]},
		{"header not json", notJSON + "." + parts[1] + "." + parts[2]},
		{"body not json", parts[0] + "." + notJSON + "." + parts[2]},
		{"body wrong types", parts[0] + "." + wrongTypes + "." + parts[2]},
		{"null header and body", "bnVsbA.bnVsbA.c2ln"},
		{"null header", "bnVsbA." + parts[1] + "." + parts[2]},
		{"null body", parts[0] + ".bnVsbA." + parts[2]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := jwt.Parse(tt.wire)
			assert.Nil(t, tok)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.CodeMalformedToken), "got %v", err)
		})
	}
}

func TestIdentityAndAppID(t *testing.T) {
	tok, err := jwt.New(jwt.NewHeader("VEDS512", "k"), jwt.NewBody("app123", "alice", time.Unix(0, 0), time.Hour, nil), nil)
	require.NoError(t, err)

	identity, err := tok.Identity()
	require.NoError(t, err)
	assert.Equal(t, "alice", identity)

	appID, err := tok.AppID()
	require.NoError(t, err)
	assert.Equal(t, "app123", appID)
}

func TestPrefixViolationsAreLazy(t *testing.T) {
	body := jwt.Body{Issuer: "someone-app", Subject: "alice", IssuedAt: 1, ExpiresAt: 2}
	tok, err := jwt.New(jwt.NewHeader("VEDS512", "k"), body, []byte("s"))
	require.NoError(t, err)

	// Parsing succeeds; only the accessors complain.
	parsed, err := jwt.Parse(tok.String())
	require.NoError(t, err)

	_, err = parsed.Identity()
	assert.True(t, errors.HasCode(err, errors.CodeTokenFormat))

	_, err = parsed.AppID()
	assert.True(t, errors.HasCode(err, errors.CodeTokenFormat))
}

func TestIsExpiredIsStrict(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tok, err := jwt.New(jwt.NewHeader("VEDS512", "k"), testBody(now.Unix()), nil)
	require.NoError(t, err)

	assert.False(t, tok.IsExpired(now.Add(-time.Second)))
	assert.False(t, tok.IsExpired(now))
	assert.False(t, tok.IsExpired(now.Add(999*time.Millisecond)))
	assert.True(t, tok.IsExpired(now.Add(time.Second)))
	assert.Equal(t, now, tok.ExpiresAt())
}

func TestBodyIsCopied(t *testing.T) {
	ada := map[string]string{"a": "b"}
	tok, err := jwt.New(jwt.NewHeader("VEDS512", "k"), jwt.Body{Issuer: "virgil-x", Subject: "identity-y", AdditionalData: ada}, nil)
	require.NoError(t, err)

	ada["a"] = "changed"
	b := tok.Body()
	b.AdditionalData["a"] = "mutated"

	assert.Equal(t, "b", tok.Body().AdditionalData["a"])
}

func TestVerify(t *testing.T) {
	secret := []byte("shared-secret")
	header := jwt.NewHeader("HS256", "k")
	body := testBody(time.Now().Add(time.Hour).Unix())

	unsigned, err := jwt.New(header, body, nil)
	require.NoError(t, err)
	sig, err := gojwt.SigningMethodHS256.Sign(string(unsigned.UnsignedBytes()), secret)
	require.NoError(t, err)

	signed, err := jwt.New(header, body, sig)
	require.NoError(t, err)
	parsed, err := jwt.Parse(signed.String())
	require.NoError(t, err)

	assert.NoError(t, parsed.Verify(secret))
	assert.ErrorIs(t, parsed.Verify([]byte("other")), gojwt.ErrTokenSignatureInvalid)
	assert.ErrorIs(t, unsigned.Verify(secret), gojwt.ErrTokenUnverifiable)

	unknown, err := jwt.New(jwt.NewHeader("VEDS512", "k"), body, sig)
	require.NoError(t, err)
	assert.ErrorIs(t, unknown.Verify(secret), gojwt.ErrTokenUnverifiable)
}

func TestBodyAsClaims(t *testing.T) {
	body := jwt.NewBody("app", "alice", time.Unix(1000, 0), time.Minute, nil)

	var claims gojwt.Claims = body
	exp, err := claims.GetExpirationTime()
	require.NoError(t, err)
	assert.Equal(t, int64(1060), exp.Unix())

	sub, err := claims.GetSubject()
	require.NoError(t, err)
	assert.Equal(t, "identity-alice", sub)
}
