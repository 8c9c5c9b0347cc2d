package chatsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar-social/stellar/internal/logging"
)

type upsertUsersRequest struct {
	Users map[string]Identity `json:"users"`
}

func TestStreamDirectoryUpsert(t *testing.T) {
	var got upsertUsersRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/users", r.URL.Path)
		assert.Equal(t, "key-1", r.URL.Query().Get("api_key"))
		assert.Equal(t, "jwt", r.Header.Get("Stream-Auth-Type"))

		tok, err := jwt.Parse(r.Header.Get("Authorization"), func(*jwt.Token) (any, error) {
			return []byte("secret-1"), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if assert.NoError(t, err) {
			assert.Equal(t, true, tok.Claims.(jwt.MapClaims)["server"])
		}

		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"users":{},"duration":"1ms"}`))
	}))
	defer srv.Close()

	dir, err := NewStreamDirectory("key-1", "secret-1", srv.URL+"/", srv.Client())
	require.NoError(t, err)
	err = dir.Upsert(context.Background(), Identity{ID: "u1", Name: "Ann", Image: "https://img/1.png"})
	require.NoError(t, err)
	assert.Equal(t, Identity{ID: "u1", Name: "Ann", Image: "https://img/1.png"}, got.Users["u1"])
}

func TestStreamDirectoryReportsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":5,"message":"bad key","StatusCode":401}`))
	}))
	defer srv.Close()

	dir, err := NewStreamDirectory("key-1", "secret-1", srv.URL, srv.Client())
	require.NoError(t, err)
	err = dir.Upsert(context.Background(), Identity{ID: "u1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream upsert u1")
}

func TestStreamDirectoryRequiresCredentials(t *testing.T) {
	_, err := NewStreamDirectory("", "", "", nil)
	assert.Error(t, err)
}

type funcDirectory func(ctx context.Context, identity Identity) error

func (f funcDirectory) Upsert(ctx context.Context, identity Identity) error { return f(ctx, identity) }

func TestSyncerSwallowsAndLogsErrors(t *testing.T) {
	var buf bytes.Buffer
	s := NewSyncer(funcDirectory(func(context.Context, Identity) error {
		return errors.New("directory down")
	}), time.Second, logging.NewWithWriter(&buf, "info"))

	s.Sync(context.Background(), Identity{ID: "u1"})
	assert.Contains(t, buf.String(), "chat directory sync failed")
	assert.Contains(t, buf.String(), "directory down")
}

func TestSyncerBoundsSlowDirectory(t *testing.T) {
	s := NewSyncer(funcDirectory(func(ctx context.Context, _ Identity) error {
		<-ctx.Done()
		return ctx.Err()
	}), 20*time.Millisecond, logging.Discard())

	start := time.Now()
	s.Sync(context.Background(), Identity{ID: "u1"})
	assert.Less(t, time.Since(start), time.Second)
}

func TestNilSyncerAndNoop(t *testing.T) {
	var s *Syncer
	s.Sync(context.Background(), Identity{ID: "u1"})
	NewSyncer(nil, 0, nil).Sync(context.Background(), Identity{ID: "u1"})
}
