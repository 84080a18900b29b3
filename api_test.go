package snoochat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apiConfig(base string) Config {
	cfg := DefaultConfig()
	cfg.APIBase = base
	return cfg
}

func TestListJoinedChannelsFollowsPages(t *testing.T) {
	var mu sync.Mutex
	var tokens []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/users/t2_me/my_group_channels", r.URL.Path)
		assert.Equal(t, "sk1", r.Header.Get("Session-Key"))
		assert.Equal(t, DefaultSBUserAgent, r.Header.Get("SB-User-Agent"))
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, "joined_only", r.URL.Query().Get("member_state_filter"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))

		token := r.URL.Query().Get("token")
		mu.Lock()
		tokens = append(tokens, token)
		mu.Unlock()

		resp := GroupChannelsResponse{}
		switch token {
		case "":
			resp.Channels = []GroupChannel{{ChannelURL: "c1", Name: "One"}}
			resp.Next = "page2"
		case "page2":
			resp.Channels = []GroupChannel{{ChannelURL: "c2", Name: "Two"}}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	api := NewAPIClient(apiConfig(srv.URL))
	got, err := api.ListJoinedChannels(context.Background(), "t2_me", "sk1", DefaultListOptions())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c1", got[0].URL())
	assert.Equal(t, "c2", got[1].URL())
	assert.Equal(t, []string{"", "page2"}, tokens)
}

func TestListJoinedChannelsStopsAtMaxPages(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(GroupChannelsResponse{
			Channels: []GroupChannel{{ChannelURL: "c"}},
			Next:     "more",
		})
	}))
	defer srv.Close()

	opts := DefaultListOptions()
	opts.MaxPages = 3
	got, err := NewAPIClient(apiConfig(srv.URL)).ListJoinedChannels(context.Background(), "t2_me", "sk1", opts)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, 3, calls)
}

func TestListJoinedChannelsDecodesGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gzip", r.Header.Get("Accept-Encoding"))
		w.Header().Set("Content-Encoding", "gzip")
		zw := gzip.NewWriter(w)
		json.NewEncoder(zw).Encode(GroupChannelsResponse{
			Channels: []GroupChannel{{
				CustomType: CustomTypeDirect,
				Members:    []Member{{UserID: "t2_me"}, {UserID: "t2_bob", Nickname: "bob"}},
				Channel:    &ChannelInfo{ChannelURL: "dm1"},
			}},
		})
		zw.Close()
	}))
	defer srv.Close()

	got, err := NewAPIClient(apiConfig(srv.URL)).ListJoinedChannels(context.Background(), "t2_me", "sk1", DefaultListOptions())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "dm1", got[0].URL())
	assert.Equal(t, "bob", ChannelFromSnapshot(got[0], "t2_me").DisplayName)
}

func TestListJoinedChannelsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid session key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewAPIClient(apiConfig(srv.URL)).ListJoinedChannels(context.Background(), "t2_me", "sk1", DefaultListOptions())
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	assert.Contains(t, httpErr.Body, "invalid session key")
}

func TestListJoinedChannelsNeedsSessionKey(t *testing.T) {
	_, err := NewAPIClient(DefaultConfig()).ListJoinedChannels(context.Background(), "t2_me", "", DefaultListOptions())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}
