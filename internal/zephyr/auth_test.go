package zephyr

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		AccessKey: "access-key",
		SecretKey: "secret-key",
		AccountID: "account-123",
		ProjectID: 10000,
		Timeout:   5 * time.Second,
	}
}

func TestCanonicalizeDeterministic(t *testing.T) {
	cfg := testConfig("https://zephyr.example.com")
	_, _, first := Canonicalize(cfg.BaseURL, "GET", "/public/rest/api/1.0/teststep/123", "projectId=10000")
	_, _, second := Canonicalize(cfg.BaseURL, "GET", "/public/rest/api/1.0/teststep/123", "projectId=10000")
	if first != second {
		t.Fatalf("qsh not deterministic: %s vs %s", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("qsh length = %d, want 64 hex chars", len(first))
	}
}

func TestCanonicalizeParamOrderIrrelevant(t *testing.T) {
	base := "https://zephyr.example.com"
	_, _, a := Canonicalize(base, "GET", "/executions", "issueId=5&projectId=10000&cycleId=7")
	_, _, b := Canonicalize(base, "GET", "/executions", "projectId=10000&cycleId=7&issueId=5")
	if a != b {
		t.Fatalf("qsh depends on parameter order: %s vs %s", a, b)
	}
}

func TestCanonicalizeValueChangesHash(t *testing.T) {
	base := "https://zephyr.example.com"
	_, _, a := Canonicalize(base, "GET", "/executions", "issueId=5")
	_, _, b := Canonicalize(base, "GET", "/executions", "issueId=6")
	if a == b {
		t.Fatal("qsh unchanged when a parameter value changed")
	}
}

func TestCanonicalizeMethodChangesHash(t *testing.T) {
	base := "https://zephyr.example.com"
	_, _, a := Canonicalize(base, "GET", "/execution", "issueId=5")
	_, _, b := Canonicalize(base, "POST", "/execution", "issueId=5")
	if a == b {
		t.Fatal("qsh unchanged when the method changed")
	}
}

func TestCanonicalizeDropsJWTParam(t *testing.T) {
	base := "https://zephyr.example.com"
	_, _, a := Canonicalize(base, "GET", "/executions", "issueId=5")
	_, _, b := Canonicalize(base, "GET", "/executions", "issueId=5&jwt=should-not-count")
	if a != b {
		t.Fatal("jwt parameter was hashed into the qsh")
	}
	_, canonical, _ := Canonicalize(base, "GET", "/executions", "issueId=5&JWT=mixed-case")
	if strings.Contains(strings.ToLower(canonical), "jwt") {
		t.Fatalf("canonical query still carries jwt: %s", canonical)
	}
}

func TestCanonicalizeMergesURIQuery(t *testing.T) {
	base := "https://zephyr.example.com"
	_, canonical, _ := Canonicalize(base, "GET", "/executions?issueId=5", "projectId=10000")
	if canonical != "issueId=5&projectId=10000" {
		t.Fatalf("canonical query = %q", canonical)
	}
}

func TestCanonicalizeMultiValueSorted(t *testing.T) {
	base := "https://zephyr.example.com"
	_, canonical, _ := Canonicalize(base, "GET", "/search", "tag=zulu&tag=alpha")
	if canonical != "tag=alpha,zulu" {
		t.Fatalf("canonical query = %q, want sorted comma-joined values", canonical)
	}
}

func TestCanonicalizeStripsBasePrefix(t *testing.T) {
	_, _, withPrefix := Canonicalize("https://zephyr.example.com/connect", "GET", "/teststep/5", "projectId=1")
	_, _, bare := Canonicalize("https://zephyr.example.com", "GET", "/teststep/5", "projectId=1")
	if withPrefix != bare {
		t.Fatal("base path prefix leaked into the signed path")
	}
}

func TestPctEncode(t *testing.T) {
	cases := []struct{ in, want string }{
		{"abcXYZ019", "abcXYZ019"},
		{"-._~", "-._~"},
		{"a b", "a%20b"},
		{"a/b", "a%2Fb"},
		{"café", "caf%C3%A9"},
	}
	for _, tc := range cases {
		if got := pctEncode(tc.in); got != tc.want {
			t.Errorf("pctEncode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestGenerateTokenClaims(t *testing.T) {
	cfg := testConfig("https://zephyr.example.com")
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	token, err := GenerateToken(cfg, "GET", "/public/rest/api/1.0/teststep/123", "projectId=10000", now)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("token has %d segments, want 3", len(parts))
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	var claims struct {
		Sub string `json:"sub"`
		Iss string `json:"iss"`
		QSH string `json:"qsh"`
		Iat int64  `json:"iat"`
		Exp int64  `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		t.Fatalf("unmarshal claims: %v", err)
	}
	if claims.Sub != "account-123" {
		t.Errorf("sub = %q, want account id", claims.Sub)
	}
	if claims.Iss != "access-key" {
		t.Errorf("iss = %q, want access key", claims.Iss)
	}
	if claims.Exp-claims.Iat != 3600 {
		t.Errorf("exp-iat = %d, want 3600", claims.Exp-claims.Iat)
	}
	_, _, wantQSH := Canonicalize(cfg.BaseURL, "GET", "/public/rest/api/1.0/teststep/123", "projectId=10000")
	if claims.QSH != wantQSH {
		t.Errorf("qsh = %q, want %q", claims.QSH, wantQSH)
	}
}

func TestGenerateTokenShortSecretVerifiable(t *testing.T) {
	cfg := testConfig("https://zephyr.example.com")
	cfg.SecretKey = "s3cr3t"

	token, err := GenerateToken(cfg, "GET", "/executions", "issueId=5", time.Now().UTC())
	if err != nil {
		t.Fatalf("GenerateToken with short secret: %v", err)
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("token has %d segments, want 3", len(parts))
	}

	header, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	var hdr struct {
		Alg string `json:"alg"`
		Typ string `json:"typ"`
	}
	if err := json.Unmarshal(header, &hdr); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if hdr.Alg != "HS256" || hdr.Typ != "JWT" {
		t.Errorf("header = %+v, want HS256/JWT", hdr)
	}

	// Recompute the signature the way the remote does, with the secret
	// exactly as configured.
	mac := hmac.New(sha256.New, []byte(cfg.SecretKey))
	mac.Write([]byte(parts[0] + "." + parts[1]))
	want := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	if parts[2] != want {
		t.Errorf("signature = %q, want %q", parts[2], want)
	}
}

func TestGenerateTokenSubjectFallsBackToAccessKey(t *testing.T) {
	cfg := testConfig("https://zephyr.example.com")
	cfg.AccountID = ""
	token, err := GenerateToken(cfg, "GET", "/executions", "", time.Now().UTC())
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.Split(token, ".")[1])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	var claims struct {
		Sub string `json:"sub"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		t.Fatalf("unmarshal claims: %v", err)
	}
	if claims.Sub != "access-key" {
		t.Errorf("sub = %q, want access key fallback", claims.Sub)
	}
}

func TestGenerateTokenRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig("https://zephyr.example.com")
	cfg.SecretKey = ""
	if _, err := GenerateToken(cfg, "GET", "/executions", "", time.Now()); err == nil {
		t.Fatal("expected error for missing secret key")
	}
}
