package auth

import (
	"net/http"
	"strings"

	apperrors "matchroom/errors"
)

// ExtractToken pulls the bearer credential off a session-establishment
// request. The query parameter is preferred, the Authorization header
// is the fallback; both accept "Bearer <token>" or a bare token string.
func ExtractToken(r *http.Request) (string, error) {
	if raw := r.URL.Query().Get("token"); raw != "" {
		return stripBearer(raw), nil
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", apperrors.ErrMissingToken
	}
	token := stripBearer(header)
	if token == "" {
		return "", apperrors.ErrMissingToken
	}
	return token, nil
}

func stripBearer(raw string) string {
	raw = strings.TrimSpace(raw)
	scheme, rest, found := strings.Cut(raw, " ")
	if !found {
		return raw
	}
	if strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(rest)
	}
	// a non-bearer scheme is not a usable credential
	return ""
}
