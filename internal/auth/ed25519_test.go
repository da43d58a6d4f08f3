package auth

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/debemdeboas/backoffice/internal/auth/testdata"
	"github.com/debemdeboas/backoffice/internal/model"
)

const failedToCreateProvider = "Failed to create provider: %v"

func newTestProvider(t *testing.T) *Ed25519AuthProvider {
	t.Helper()
	provider, err := NewEd25519AuthProvider(testdata.PublicKeyPEM, "Authorization", testdata.OperatorID)
	if err != nil {
		t.Fatalf(failedToCreateProvider, err)
	}
	provider.challenge = testdata.Challenge
	return provider
}

// sign signs challenge with the test private key
func sign(t *testing.T, challenge []byte) []byte {
	t.Helper()
	block, _ := pem.Decode([]byte(testdata.PrivateKeyPEM))
	if block == nil {
		t.Fatal("Failed to parse private key PEM")
	}

	privateKey, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		t.Fatalf("Failed to parse private key: %v", err)
	}

	key, ok := privateKey.(ed25519.PrivateKey)
	if !ok {
		t.Fatal("Private key is not Ed25519")
	}
	return ed25519.Sign(key, challenge)
}

func TestNewEd25519AuthProvider(t *testing.T) {
	testCases := []struct {
		name        string
		publicKey   string
		expectError bool
	}{
		{name: "Valid public key", publicKey: testdata.PublicKeyPEM},
		{name: "Invalid PEM format", publicKey: "invalid-pem-data", expectError: true},
		{
			name: "Valid PEM but not Ed25519",
			publicKey: `-----BEGIN PUBLIC KEY-----
MFwwDQYJKoZIhvcNAQEBBQADSwAwSAJBAK3H5Q9+6YHl8/2V2yc7Kc1XvZKp4Fsr
X5g7H8Y9V2sF8b3p1LZN4h6f8e9X4D7B5Z0P4p2nF8h7gY3e2Q5k8Z0CAwEAAQ==
-----END PUBLIC KEY-----`,
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			provider, err := NewEd25519AuthProvider(tc.publicKey, "Authorization", testdata.OperatorID)
			if tc.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if provider.cookieName != "auth_token" {
				t.Errorf("Expected cookie name 'auth_token', got '%s'", provider.cookieName)
			}
			if len(provider.GetChallenge()) != 32 {
				t.Errorf("Expected challenge length 32, got %d", len(provider.GetChallenge()))
			}
		})
	}
}

func TestEd25519AuthProvider_WithHeaderAuthorization(t *testing.T) {
	provider := newTestProvider(t)
	valid := base64.StdEncoding.EncodeToString(sign(t, testdata.Challenge))

	testCases := []struct {
		name         string
		header       string
		cookie       string
		expectUserID bool
	}{
		{name: "Valid signature in header", header: valid, expectUserID: true},
		{name: "Valid signature in cookie", cookie: valid, expectUserID: true},
		{name: "Invalid signature in header", header: "invalid-signature"},
		{name: "No signature provided"},
		{name: "Header takes precedence over cookie", header: valid, cookie: "garbage", expectUserID: true},
		{name: "Invalid header hides a valid cookie", header: "garbage", cookie: valid},
		{name: "Signature of another challenge", header: base64.StdEncoding.EncodeToString(sign(t, []byte("other")))},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "auth_token", Value: tc.cookie})
			}

			var got model.UserID
			var ok bool
			handler := provider.WithHeaderAuthorization()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, ok = UserIDFromContext(r.Context())
			}))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if ok != tc.expectUserID {
				t.Fatalf("Expected user in context: %v, got %v", tc.expectUserID, ok)
			}
			if ok && got != testdata.OperatorID {
				t.Errorf("Expected user ID '%s', got '%s'", testdata.OperatorID, got)
			}
			if rec.Code != http.StatusOK {
				t.Errorf("Expected status 200, got %d", rec.Code)
			}
		})
	}
}

func TestEd25519AuthProvider_EnforceUserAndGetID(t *testing.T) {
	provider := newTestProvider(t)

	t.Run("No user answers 401 with a redirect", func(t *testing.T) {
		rec := httptest.NewRecorder()
		_, err := provider.EnforceUserAndGetID(rec, httptest.NewRequest(http.MethodPost, "/drafts/x/submit", nil))
		if err == nil {
			t.Fatal("Expected error but got none")
		}
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected status 401, got %d", rec.Code)
		}
		if rec.Header().Get("Hx-Redirect") != "/auth/login" {
			t.Errorf("Expected Hx-Redirect to the login page, got %q", rec.Header().Get("Hx-Redirect"))
		}
	})

	t.Run("User in context is returned", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(ContextWithUserID(req.Context(), "someone"))
		got, err := provider.EnforceUserAndGetID(httptest.NewRecorder(), req)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if got != "someone" {
			t.Errorf("Expected user ID 'someone', got '%s'", got)
		}
	})
}

func TestEd25519AuthProvider_RefreshChallenge(t *testing.T) {
	provider := newTestProvider(t)
	signature := sign(t, testdata.Challenge)
	if !provider.Verify(signature) {
		t.Fatal("Expected signature to verify before refresh")
	}

	if err := provider.RefreshChallenge(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(provider.GetChallenge()) == string(testdata.Challenge) {
		t.Error("Expected challenge to change")
	}
	if provider.Verify(signature) {
		t.Error("Expected old signature to be rejected after refresh")
	}
}

func TestEd25519AuthProvider_GetChallengeReturnsCopy(t *testing.T) {
	provider := newTestProvider(t)
	c := provider.GetChallenge()
	c[0] ^= 0xff
	if provider.GetChallenge()[0] == c[0] {
		t.Error("Mutating the returned challenge changed the provider")
	}
}
