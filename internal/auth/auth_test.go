package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"

	"studyfocus/internal/log"
)

func testLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func TestGate(t *testing.T) {
	verifier := VerifierFunc(func(_ context.Context, token string) (*Claims, error) {
		if token == "good" {
			return &Claims{UID: "u1", Email: "a@x.com"}, nil
		}
		return nil, ErrInvalidToken
	})
	gate := NewGate(verifier, testLogger())

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCalled bool
	}{
		{"no header", "", http.StatusUnauthorized, false},
		{"no scheme", "good", http.StatusUnauthorized, false},
		{"wrong scheme", "Basic good", http.StatusUnauthorized, false},
		{"empty token", "Bearer   ", http.StatusUnauthorized, false},
		{"unverifiable token", "Bearer forged", http.StatusForbidden, false},
		{"valid token", "Bearer good", http.StatusOK, true},
		{"lowercase scheme", "bearer good", http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				c, ok := ClaimsFromContext(r.Context())
				if !ok || c.UID != "u1" {
					t.Errorf("claims missing from context: %+v", c)
				}
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			gate.Middleware(next).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if called != tt.wantCalled {
				t.Errorf("handler called = %v, want %v", called, tt.wantCalled)
			}
			if !tt.wantCalled {
				var body map[string]string
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body["message"] == "" {
					t.Errorf("expected {message} body, got %q (%v)", rec.Body.String(), err)
				}
			}
		})
	}
}

func signHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestHMACVerifier(t *testing.T) {
	v := NewHMACVerifier("s3cret")
	ctx := context.Background()

	good := signHS256(t, "s3cret", jwt.MapClaims{
		"sub":   "user-1",
		"email": "a@x.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	c, err := v.Verify(ctx, good)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if c.UID != "user-1" || c.Email != "a@x.com" {
		t.Errorf("unexpected claims: %+v", c)
	}

	expired := signHS256(t, "s3cret", jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(-time.Hour).Unix()})
	wrongKey := signHS256(t, "other", jwt.MapClaims{"sub": "user-1"})

	for name, tok := range map[string]string{"expired": expired, "wrong key": wrongKey, "garbage": "a.b.c"} {
		if _, err := v.Verify(ctx, tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestHMACVerifierRejectsNoneAlgorithm(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "x"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewHMACVerifier("s3cret").Verify(context.Background(), tok); err == nil {
		t.Fatal("expected unsigned token to be rejected")
	}
}

type fakeIDTokens struct {
	tok *fbauth.Token
	err error
}

func (f fakeIDTokens) VerifyIDToken(context.Context, string) (*fbauth.Token, error) {
	return f.tok, f.err
}

func TestFirebaseVerifier(t *testing.T) {
	v := &FirebaseVerifier{client: fakeIDTokens{tok: &fbauth.Token{
		UID:    "fb-1",
		Claims: map[string]interface{}{"email": "a@x.com"},
	}}}
	c, err := v.Verify(context.Background(), "id-token")
	if err != nil || c.UID != "fb-1" || c.Email != "a@x.com" {
		t.Fatalf("unexpected result %+v %v", c, err)
	}

	v = &FirebaseVerifier{client: fakeIDTokens{err: errors.New("token expired")}}
	if _, err := v.Verify(context.Background(), "id-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestDecodeServiceKey(t *testing.T) {
	raw := []byte(`{"type":"service_account","project_id":"demo"}`)
	for name, enc := range map[string]*base64.Encoding{
		"std":     base64.StdEncoding,
		"raw std": base64.RawStdEncoding,
		"url":     base64.URLEncoding,
	} {
		got, err := DecodeServiceKey(enc.EncodeToString(raw))
		if err != nil || string(got) != string(raw) {
			t.Errorf("%s: got %q, %v", name, got, err)
		}
	}
	if _, err := DecodeServiceKey("%%%"); err == nil {
		t.Error("expected error for non-base64 input")
	}
	if _, err := DecodeServiceKey(""); err == nil {
		t.Error("expected error for empty input")
	}
}
