package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/promo-engine/internal/domain/auth"
)

type mockAPIKeyRepo struct {
	byHash map[string]*auth.APIKeyInfo
}

func (m *mockAPIKeyRepo) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	info, ok := m.byHash[hash]
	if !ok {
		return nil, errors.New("api key not found")
	}
	return info, nil
}

func hashKey(key string, pepper []byte) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestAPIKeyAuth(t *testing.T) {
	pepper := []byte("test-pepper")
	validHash := hashKey("valid-key", pepper)
	repo := &mockAPIKeyRepo{byHash: map[string]*auth.APIKeyInfo{
		validHash: {ID: "k1", KeyHash: validHash, Name: "test key"},
	}}

	protected := APIKeyAuth(repo, pepper)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		key        string
		wantStatus int
	}{
		{name: "valid key passes", key: "valid-key", wantStatus: http.StatusNoContent},
		{name: "missing key rejected", key: "", wantStatus: http.StatusUnauthorized},
		{name: "unknown key rejected", key: "wrong-key", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
			if tt.key != "" {
				req.Header.Set("api_key", tt.key)
			}
			rec := httptest.NewRecorder()

			protected.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestAPIKeyAuth_DifferentPepperRejects(t *testing.T) {
	repo := &mockAPIKeyRepo{byHash: map[string]*auth.APIKeyInfo{
		hashKey("valid-key", []byte("seed-pepper")): {ID: "k1", Name: "seeded elsewhere"},
	}}

	protected := APIKeyAuth(repo, []byte("server-pepper"))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
	req.Header.Set("api_key", "valid-key")
	rec := httptest.NewRecorder()

	protected.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
