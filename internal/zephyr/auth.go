package zephyr

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4/jwt"
)

const tokenTTL = time.Hour

// pctEncode applies RFC 3986 percent-encoding: unreserved characters
// (ALPHA / DIGIT / "-" / "." / "_" / "~") pass through, space becomes %20,
// everything else is encoded with uppercase hex. The remote side recomputes
// the hash from the same encoding, so this must not drift.
func pctEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == '-' || c == '.' || c == '_' || c == '~':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// parsePairs splits a raw query string into decoded key/value pairs,
// keeping blank values. Malformed segments are skipped rather than failing
// the whole signature.
func parsePairs(rawQuery string) [][2]string {
	var pairs [][2]string
	for _, seg := range strings.Split(rawQuery, "&") {
		if seg == "" {
			continue
		}
		key, value, _ := strings.Cut(seg, "=")
		dk, err := url.QueryUnescape(key)
		if err != nil {
			continue
		}
		dv, err := url.QueryUnescape(value)
		if err != nil {
			continue
		}
		pairs = append(pairs, [2]string{dk, dv})
	}
	return pairs
}

// Canonicalize produces the request path to call, the canonical query and
// the query string hash (QSH) binding method+path+query for token signing.
func Canonicalize(baseURL, method, uri, queryParams string) (requestPath, canonicalQuery, qsh string) {
	method = strings.ToUpper(method)

	path := uri
	uriQuery := ""
	if u, err := url.Parse(uri); err == nil {
		if u.Path != "" {
			path = u.Path
		}
		uriQuery = u.RawQuery
	}

	basePrefix := ""
	if bu, err := url.Parse(baseURL); err == nil {
		basePrefix = strings.TrimRight(bu.Path, "/")
	}

	// The requested path carries the base prefix; the signed path does not.
	if basePrefix != "" && !strings.HasPrefix(path, basePrefix) {
		requestPath = basePrefix + "/" + strings.TrimLeft(path, "/")
	} else {
		requestPath = path
	}
	qshPath := requestPath
	if basePrefix != "" && strings.HasPrefix(qshPath, basePrefix) {
		qshPath = strings.TrimPrefix(qshPath, basePrefix)
		if !strings.HasPrefix(qshPath, "/") {
			qshPath = "/" + qshPath
		}
	}

	merged := make([]string, 0, 2)
	for _, q := range []string{uriQuery, queryParams} {
		if q != "" {
			merged = append(merged, q)
		}
	}

	grouped := make(map[string][]string)
	for _, pair := range parsePairs(strings.Join(merged, "&")) {
		// The token parameter itself must never be hashed into the token.
		if strings.EqualFold(pair[0], "jwt") {
			continue
		}
		k := pctEncode(pair[0])
		grouped[k] = append(grouped[k], pctEncode(pair[1]))
	}

	keys := make([]string, 0, len(grouped))
	for k := range grouped {
		sort.Strings(grouped[k])
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+strings.Join(grouped[k], ","))
	}
	canonicalQuery = strings.Join(parts, "&")

	canonical := method + "&" + qshPath + "&" + canonicalQuery
	sum := sha256.Sum256([]byte(canonical))
	qsh = hex.EncodeToString(sum[:])
	return requestPath, canonicalQuery, qsh
}

type tokenClaims struct {
	jwt.Claims
	QSH string `json:"qsh"`
}

// tokenHeader is the fixed compact-JWS header for every generated token.
const tokenHeader = `{"alg":"HS256","typ":"JWT"}`

// GenerateToken signs a short-lived HS256 token binding the request's
// method, path and query via the QSH claim. The compact serialization is
// assembled directly: the remote verifies with the shared secret exactly
// as configured, and secrets shorter than the RFC 7518 minimum must still
// sign, which jose.NewSigner refuses.
func GenerateToken(cfg Config, method, uri, queryParams string, now time.Time) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	_, _, qsh := Canonicalize(cfg.BaseURL, method, uri, queryParams)

	subject := cfg.AccountID
	if subject == "" {
		subject = cfg.AccessKey
	}

	claims := tokenClaims{
		Claims: jwt.Claims{
			Subject:  subject,
			Issuer:   cfg.AccessKey,
			IssuedAt: jwt.NewNumericDate(now),
			Expiry:   jwt.NewNumericDate(now.Add(tokenTTL)),
		},
		QSH: qsh,
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}

	enc := base64.RawURLEncoding
	signingInput := enc.EncodeToString([]byte(tokenHeader)) + "." + enc.EncodeToString(payload)
	mac := hmac.New(sha256.New, []byte(cfg.SecretKey))
	mac.Write([]byte(signingInput))
	return signingInput + "." + enc.EncodeToString(mac.Sum(nil)), nil
}
