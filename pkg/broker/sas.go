package broker

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// sasToken builds a Service Bus shared access signature for the namespace
// URI, valid until expiry. The signed payload is the URL-encoded URI and
// the expiry epoch, joined by a newline.
func sasToken(uri, keyName, key string, expiry time.Time) string {
	encodedURI := strings.ToLower(url.QueryEscape(strings.ToLower(uri)))
	expiryEpoch := expiry.Unix()

	payload := fmt.Sprintf("%s\n%d", encodedURI, expiryEpoch)
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(payload))
	sig := url.QueryEscape(base64.StdEncoding.EncodeToString(mac.Sum(nil)))

	return fmt.Sprintf("SharedAccessSignature sr=%s&sig=%s&se=%d&skn=%s",
		encodedURI, sig, expiryEpoch, keyName)
}

// ParseConnectionString parses an
// "Endpoint=sb://...;SharedAccessKeyName=...;SharedAccessKey=..."
// Service Bus connection string into a Config.
func ParseConnectionString(s string) (Config, error) {
	var cfg Config
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, found := strings.Cut(part, "=")
		if !found {
			return Config{}, fmt.Errorf("malformed connection string segment %q", name)
		}
		switch strings.ToLower(name) {
		case "endpoint":
			endpoint := strings.TrimSuffix(value, "/")
			endpoint = strings.Replace(endpoint, "sb://", "https://", 1)
			cfg.Endpoint = endpoint
		case "sharedaccesskeyname":
			cfg.KeyName = value
		case "sharedaccesskey":
			cfg.Key = value
		}
	}
	if cfg.Endpoint == "" || cfg.KeyName == "" || cfg.Key == "" {
		return Config{}, fmt.Errorf("connection string missing Endpoint, SharedAccessKeyName or SharedAccessKey")
	}
	return cfg, nil
}
