package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "matchroom/errors"
)

func Test_Generate_And_Validate_Access_Token(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer("test_secret_for_units_only")

	// Given a freshly issued access token
	token, err := issuer.Generate("42", time.Hour)
	req.NoError(err)

	// When it is validated
	subject, exp, err := issuer.Validate(token)

	// Then the subject and expiry round-trip
	req.NoError(err)
	req.Equal("42", subject)
	req.WithinDuration(time.Now().Add(time.Hour), exp, 5*time.Second)
}

func Test_Validate_Rejects_Expired_Token(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer("test_secret_for_units_only")

	token, err := issuer.Generate("42", -time.Minute)
	req.NoError(err)

	_, _, err = issuer.Validate(token)
	req.Error(err)
}

func Test_Validate_Rejects_Refresh_Token(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer("test_secret_for_units_only")

	token, err := issuer.GenerateRefresh("42", time.Hour)
	req.NoError(err)

	_, _, err = issuer.Validate(token)
	req.ErrorIs(err, apperrors.ErrNotAccessToken)
}

func Test_Validate_Rejects_Foreign_Signature(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer("test_secret_for_units_only")
	other := NewTokenIssuer("a_completely_different_secret")

	token, err := other.Generate("42", time.Hour)
	req.NoError(err)

	_, _, err = issuer.Validate(token)
	req.Error(err)
}

func Test_ExtractToken_Prefers_Query_Parameter(t *testing.T) {
	req := require.New(t)

	r := httptest.NewRequest("GET", "/ws?token=from_query", nil)
	r.Header.Set("Authorization", "Bearer from_header")

	token, err := ExtractToken(r)
	req.NoError(err)
	req.Equal("from_query", token)
}

func Test_ExtractToken_Accepts_Bearer_And_Bare_Forms(t *testing.T) {
	req := require.New(t)

	r := httptest.NewRequest("GET", "/ws?token=Bearer%20abc", nil)
	token, err := ExtractToken(r)
	req.NoError(err)
	req.Equal("abc", token)

	r = httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Bearer xyz")
	token, err = ExtractToken(r)
	req.NoError(err)
	req.Equal("xyz", token)

	r = httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "raw_token")
	token, err = ExtractToken(r)
	req.NoError(err)
	req.Equal("raw_token", token)
}

func Test_ExtractToken_Rejects_Missing_Or_Wrong_Scheme(t *testing.T) {
	req := require.New(t)

	r := httptest.NewRequest("GET", "/ws", nil)
	_, err := ExtractToken(r)
	req.ErrorIs(err, apperrors.ErrMissingToken)

	r = httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	_, err = ExtractToken(r)
	req.ErrorIs(err, apperrors.ErrMissingToken)
}
