package cosmos

import (
	"encoding/base64"
	"net/url"
	"strings"
	"testing"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key, err := decodeKey(base64.StdEncoding.EncodeToString([]byte("a-test-master-key")))
	if err != nil {
		t.Fatalf("decodeKey() error = %v", err)
	}
	return key
}

func TestParseConnectionString(t *testing.T) {
	tests := []struct {
		name             string
		input            string
		expectError      bool
		expectedEndpoint string
		expectedKey      string
	}{
		{
			name:             "valid",
			input:            "AccountEndpoint=https://localhost:8081/;AccountKey=Zm9vYmFy;",
			expectedEndpoint: "https://localhost:8081",
			expectedKey:      "Zm9vYmFy",
		},
		{
			name:             "case insensitive segment names",
			input:            "accountendpoint=https://db.example.com;accountkey=Zm9vYmFy",
			expectedEndpoint: "https://db.example.com",
			expectedKey:      "Zm9vYmFy",
		},
		{
			name:        "missing endpoint",
			input:       "AccountKey=Zm9vYmFy;",
			expectError: true,
		},
		{
			name:        "missing key",
			input:       "AccountEndpoint=https://localhost:8081;",
			expectError: true,
		},
		{
			name:        "empty",
			input:       "",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs, err := ParseConnectionString(tt.input)
			if tt.expectError {
				if err == nil {
					t.Error("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseConnectionString() error = %v", err)
			}
			if cs.Endpoint != tt.expectedEndpoint {
				t.Errorf("endpoint = %q, want %q", cs.Endpoint, tt.expectedEndpoint)
			}
			if cs.Key != tt.expectedKey {
				t.Errorf("key = %q, want %q", cs.Key, tt.expectedKey)
			}
		})
	}
}

func TestAuthToken_Format(t *testing.T) {
	key := testKey(t)
	token := authToken(key, "GET", "docs", "dbs/mydb/colls/orders", "Tue, 01 Jul 2025 12:00:00 GMT")

	decoded, err := url.QueryUnescape(token)
	if err != nil {
		t.Fatalf("token is not valid URL escaping: %v", err)
	}
	if !strings.HasPrefix(decoded, "type=master&ver=1.0&sig=") {
		t.Errorf("decoded token = %q, want type=master&ver=1.0&sig= prefix", decoded)
	}

	sig := strings.TrimPrefix(decoded, "type=master&ver=1.0&sig=")
	if _, err := base64.StdEncoding.DecodeString(sig); err != nil {
		t.Errorf("signature is not valid base64: %v", err)
	}
}

func TestAuthToken_Deterministic(t *testing.T) {
	key := testKey(t)
	date := "Tue, 01 Jul 2025 12:00:00 GMT"

	first := authToken(key, "GET", "docs", "dbs/mydb/colls/orders", date)
	second := authToken(key, "GET", "docs", "dbs/mydb/colls/orders", date)
	if first != second {
		t.Error("identical inputs should produce identical tokens")
	}

	other := authToken(key, "POST", "docs", "dbs/mydb/colls/orders", date)
	if first == other {
		t.Error("different verbs should produce different tokens")
	}
}

func TestAuthToken_VerbCaseInsensitive(t *testing.T) {
	key := testKey(t)
	date := "Tue, 01 Jul 2025 12:00:00 GMT"

	upper := authToken(key, "GET", "docs", "dbs/mydb", date)
	lower := authToken(key, "get", "docs", "dbs/mydb", date)
	if upper != lower {
		t.Error("verb casing should not change the signature")
	}
}

func TestDecodeKey_Invalid(t *testing.T) {
	if _, err := decodeKey("not base64 !!!"); err == nil {
		t.Error("decodeKey() with invalid base64 should return an error")
	}
}
