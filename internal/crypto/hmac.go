package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Venue gateway auth headers.
const (
	HeaderAPIKey     = "X-PD-API-KEY"
	HeaderTimestamp  = "X-PD-TIMESTAMP"
	HeaderPassphrase = "X-PD-PASSPHRASE"
	HeaderSignature  = "X-PD-SIGNATURE"
	HeaderAddress    = "X-PD-ADDRESS"
)

// HMACAuth signs gateway requests as
// base64(HMAC-SHA256(secret, timestamp+method+path+body)). Secret is
// base64 encoded; a secret that does not decode is used as raw bytes.
type HMACAuth struct {
	Key        string
	Secret     string
	Passphrase string
}

// Apply sets the auth headers on h for the given request parts.
func (a *HMACAuth) Apply(h http.Header, address, method, path string, body []byte) {
	a.applyAt(h, address, method, path, body, time.Now().Unix())
}

func (a *HMACAuth) applyAt(h http.Header, address, method, path string, body []byte, unix int64) {
	ts := strconv.FormatInt(unix, 10)
	h.Set(HeaderAPIKey, a.Key)
	h.Set(HeaderTimestamp, ts)
	h.Set(HeaderPassphrase, a.Passphrase)
	h.Set(HeaderSignature, a.sign(ts+method+path+string(body)))
	if address != "" {
		h.Set(HeaderAddress, address)
	}
}

func (a *HMACAuth) sign(msg string) string {
	secret, err := base64.StdEncoding.DecodeString(a.Secret)
	if err != nil {
		secret = []byte(a.Secret)
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(msg))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// String redacts the credentials.
func (a *HMACAuth) String() string {
	return fmt.Sprintf("HMACAuth{key=%s, secret=%s}", redact(a.Key), redact(a.Secret))
}

func redact(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}
