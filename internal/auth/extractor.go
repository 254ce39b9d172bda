package auth

import (
	"net/http"
	"strings"
)

// TokenSource indicates where a token was extracted from
type TokenSource int

const (
	// TokenSourceNone indicates no token was found
	TokenSourceNone TokenSource = iota
	// TokenSourceBearerHeader indicates token from Authorization: Bearer header
	TokenSourceBearerHeader
	// TokenSourceAPIKeyHeader indicates token from X-API-Key header
	TokenSourceAPIKeyHeader
	// TokenSourceQueryParam indicates token from ?token= query parameter
	TokenSourceQueryParam
)

// String returns the human-readable name of the token source
func (s TokenSource) String() string {
	switch s {
	case TokenSourceBearerHeader:
		return "bearer_header"
	case TokenSourceAPIKeyHeader:
		return "api_key_header"
	case TokenSourceQueryParam:
		return "query_param"
	default:
		return "none"
	}
}

// ExtractedToken contains the extracted token and metadata about extraction
type ExtractedToken struct {
	// Token is the raw token value (may be empty if not found)
	Token string
	// Source indicates where the token was extracted from
	Source TokenSource
	// IsMalformed indicates the token location was found but format was wrong
	// (e.g., "Authorization: Bearer" with no actual token)
	IsMalformed bool
}

// ExtractToken pulls the API token from an HTTP request. Extraction is
// attempted in priority order: Authorization bearer header, X-API-Key
// header, then token query parameter (websocket clients cannot always set
// headers).
func ExtractToken(r *http.Request) ExtractedToken {
	if authz := r.Header.Get("Authorization"); authz != "" {
		const prefix = "Bearer "
		if !strings.HasPrefix(authz, prefix) {
			return ExtractedToken{Source: TokenSourceBearerHeader, IsMalformed: true}
		}
		token := strings.TrimSpace(authz[len(prefix):])
		if token == "" {
			return ExtractedToken{Source: TokenSourceBearerHeader, IsMalformed: true}
		}
		return ExtractedToken{Token: token, Source: TokenSourceBearerHeader}
	}

	if key := r.Header.Get("X-API-Key"); key != "" {
		return ExtractedToken{Token: key, Source: TokenSourceAPIKeyHeader}
	}

	if tok := r.URL.Query().Get("token"); tok != "" {
		return ExtractedToken{Token: tok, Source: TokenSourceQueryParam}
	}

	return ExtractedToken{Source: TokenSourceNone}
}
