package cosmos

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// ConnectionString holds the parsed parts of a Cosmos DB connection string.
type ConnectionString struct {
	// Endpoint is the account endpoint, e.g. "https://localhost:8081".
	Endpoint string

	// Key is the base64-encoded master key.
	Key string
}

// ParseConnectionString parses an "AccountEndpoint=...;AccountKey=...;"
// connection string.
func ParseConnectionString(s string) (ConnectionString, error) {
	var cs ConnectionString
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, found := strings.Cut(part, "=")
		if !found {
			return ConnectionString{}, fmt.Errorf("malformed connection string segment %q", name)
		}
		switch strings.ToLower(name) {
		case "accountendpoint":
			cs.Endpoint = strings.TrimSuffix(value, "/")
		case "accountkey":
			cs.Key = value
		}
	}
	if cs.Endpoint == "" {
		return ConnectionString{}, fmt.Errorf("connection string missing AccountEndpoint")
	}
	if cs.Key == "" {
		return ConnectionString{}, fmt.Errorf("connection string missing AccountKey")
	}
	return cs, nil
}

// authToken computes the master-key authorization header value for a request.
//
// The string to sign is:
//
//	verb\nresourceType\nresourceLink\ndate\n\n
//
// with verb and date lowercased, HMAC-SHA256 signed with the base64-decoded
// master key, and the result rendered as
// "type=master&ver=1.0&sig=<base64>" (URL-escaped).
func authToken(key []byte, verb, resourceType, resourceLink, date string) string {
	payload := strings.ToLower(verb) + "\n" +
		strings.ToLower(resourceType) + "\n" +
		resourceLink + "\n" +
		strings.ToLower(date) + "\n" +
		"\n"

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(payload))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return url.QueryEscape("type=master&ver=1.0&sig=" + sig)
}

// decodeKey base64-decodes a master key.
func decodeKey(key string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("decode account key: %w", err)
	}
	return decoded, nil
}
