package ibkr_auth

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Signer implements IBKR Client Portal request signing: OAuth 1.0a with
// RSA-SHA256 over the signature base string. Every REST call goes through it.
type Signer struct {
	consumerKey string
	accessToken string
	realm       string
	privateKey  *rsa.PrivateKey
}

// NewSignerFromFile loads an RSA private key from a PEM file and returns a
// Signer. Returns (nil, nil) when consumerKey or keyFilePath is empty,
// allowing callers to run without broker credentials (dry-run only).
func NewSignerFromFile(consumerKey, accessToken, realm, keyFilePath string) (*Signer, error) {
	if consumerKey == "" || keyFilePath == "" {
		return nil, nil
	}

	pemData, err := os.ReadFile(keyFilePath)
	if err != nil {
		return nil, fmt.Errorf("read key file %s: %w", keyFilePath, err)
	}

	key, err := ParsePrivateKey(pemData)
	if err != nil {
		return nil, fmt.Errorf("key file %s: %w", keyFilePath, err)
	}

	return &Signer{
		consumerKey: consumerKey,
		accessToken: accessToken,
		realm:       realm,
		privateKey:  key,
	}, nil
}

// ParsePrivateKey decodes a PEM-encoded RSA private key.
// Tries PKCS#8 first, falls back to PKCS#1.
func ParsePrivateKey(pemData []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	if parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("key is not RSA (got %T)", parsed)
		}
		return rsaKey, nil
	}
	if pk1, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return pk1, nil
	}
	return nil, fmt.Errorf("parse private key: not PKCS#8 or PKCS#1")
}

// SignRequest sets the OAuth Authorization header on req. Query parameters
// are folded into the signature base string per RFC 5849; JSON bodies are
// not. No-op when s is nil.
func (s *Signer) SignRequest(req *http.Request) error {
	if s == nil {
		return nil
	}

	nonce, err := newNonce()
	if err != nil {
		return err
	}

	oauth := map[string]string{
		"oauth_consumer_key":     s.consumerKey,
		"oauth_nonce":            nonce,
		"oauth_signature_method": "RSA-SHA256",
		"oauth_timestamp":        strconv.FormatInt(time.Now().Unix(), 10),
	}
	if s.accessToken != "" {
		oauth["oauth_token"] = s.accessToken
	}

	base := signatureBase(req.Method, req.URL, oauth)
	hash := sha256.Sum256([]byte(base))

	sig, err := rsa.SignPKCS1v15(rand.Reader, s.privateKey, crypto.SHA256, hash[:])
	if err != nil {
		return fmt.Errorf("rsa sign: %w", err)
	}

	req.Header.Set("Authorization", s.authHeader(oauth, base64.StdEncoding.EncodeToString(sig)))
	return nil
}

// Enabled reports whether this signer has credentials loaded.
func (s *Signer) Enabled() bool {
	return s != nil && s.consumerKey != ""
}

// authHeader renders the Authorization header value: realm first, then the
// oauth_* parameters in sorted order, signature last.
func (s *Signer) authHeader(oauth map[string]string, signature string) string {
	keys := make([]string, 0, len(oauth))
	for k := range oauth {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(`OAuth realm="`)
	b.WriteString(s.realm)
	b.WriteString(`"`)
	for _, k := range keys {
		b.WriteString(`, `)
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(percentEncode(oauth[k]))
		b.WriteString(`"`)
	}
	b.WriteString(`, oauth_signature="`)
	b.WriteString(percentEncode(signature))
	b.WriteString(`"`)
	return b.String()
}

// signatureBase builds METHOD&encode(url)&encode(sorted-params) per RFC 5849.
func signatureBase(method string, u *url.URL, oauth map[string]string) string {
	type pair struct{ k, v string }
	var params []pair
	for k, v := range oauth {
		params = append(params, pair{percentEncode(k), percentEncode(v)})
	}
	for k, vs := range u.Query() {
		for _, v := range vs {
			params = append(params, pair{percentEncode(k), percentEncode(v)})
		}
	}
	sort.Slice(params, func(i, j int) bool {
		if params[i].k != params[j].k {
			return params[i].k < params[j].k
		}
		return params[i].v < params[j].v
	})

	joined := make([]string, len(params))
	for i, p := range params {
		joined[i] = p.k + "=" + p.v
	}

	baseURL := strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + u.EscapedPath()
	return strings.ToUpper(method) + "&" + percentEncode(baseURL) + "&" + percentEncode(strings.Join(joined, "&"))
}

// percentEncode implements RFC 3986 strict encoding: everything except
// unreserved characters is escaped, space becomes %20 (never "+").
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '.', c == '_', c == '~':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func newNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
