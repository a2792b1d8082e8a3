package openstates

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/legiswatch/internal/model"
)

func TestClient_Ping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "good" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		var req GraphQLRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Contains(t, req.Query, "jurisdictions")
		_, _ = w.Write([]byte(`{"data": {"jurisdictions": {"edges": []}}}`))
	}))
	defer srv.Close()

	require.NoError(t, NewClient(srv.Client(), srv.URL, "good", "test", nil).Ping(context.Background()))

	err := NewClient(srv.Client(), srv.URL, "bad", "test", nil).Ping(context.Background())
	assert.ErrorIs(t, err, model.ErrAuth)
}
