package auth

import (
	"net/http/httptest"
	"testing"
)

func TestExtractTokenBearer(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/auth/status", nil)
	r.Header.Set("Authorization", "Bearer voiceauth_v1_abc")

	got := ExtractToken(r)
	if got.Token != "voiceauth_v1_abc" || got.Source != TokenSourceBearerHeader {
		t.Errorf("got %+v, want bearer token", got)
	}
}

func TestExtractTokenMalformedBearer(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	got := ExtractToken(r)
	if !got.IsMalformed || got.Token != "" {
		t.Errorf("non-bearer Authorization should be malformed, got %+v", got)
	}

	r2 := httptest.NewRequest("GET", "/", nil)
	r2.Header.Set("Authorization", "Bearer ")
	if got := ExtractToken(r2); !got.IsMalformed {
		t.Errorf("empty bearer token should be malformed, got %+v", got)
	}
}

func TestExtractTokenAPIKeyHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-API-Key", "voiceauth_v1_xyz")

	got := ExtractToken(r)
	if got.Token != "voiceauth_v1_xyz" || got.Source != TokenSourceAPIKeyHeader {
		t.Errorf("got %+v, want api key header token", got)
	}
}

func TestExtractTokenQueryParam(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/auth/stream?token=voiceauth_v1_ws", nil)

	got := ExtractToken(r)
	if got.Token != "voiceauth_v1_ws" || got.Source != TokenSourceQueryParam {
		t.Errorf("got %+v, want query param token", got)
	}
}

func TestExtractTokenPriority(t *testing.T) {
	// Bearer header wins over the other sources.
	r := httptest.NewRequest("GET", "/?token=fromquery", nil)
	r.Header.Set("Authorization", "Bearer frombearer")
	r.Header.Set("X-API-Key", "fromheader")

	got := ExtractToken(r)
	if got.Token != "frombearer" {
		t.Errorf("bearer header should take priority, got %+v", got)
	}
}

func TestExtractTokenNone(t *testing.T) {
	got := ExtractToken(httptest.NewRequest("GET", "/", nil))
	if got.Token != "" || got.Source != TokenSourceNone || got.IsMalformed {
		t.Errorf("bare request: got %+v, want none", got)
	}
}
