package snoochat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ownID = "t2_me"

func TestResolveDirectChannelUsesCounterpartNickname(t *testing.T) {
	r := NewChannelRegistry()
	r.Rebuild([]GroupChannel{{
		ChannelURL: "c1",
		CustomType: CustomTypeDirect,
		Members: []Member{
			{UserID: ownID, Nickname: "me"},
			{UserID: "t2_bob", Nickname: "bob"},
		},
	}}, ownID)

	assert.Equal(t, "bob", r.Resolve("c1"))
	ch, ok := r.Lookup("c1")
	require.True(t, ok)
	assert.True(t, ch.IsDirect)
	assert.Len(t, ch.Members, 2)
}

func TestResolveGroupChannelUsesName(t *testing.T) {
	r := NewChannelRegistry()
	r.Rebuild([]GroupChannel{{ChannelURL: "c2", Name: "Team", CustomType: "group"}}, ownID)
	assert.Equal(t, "Team", r.Resolve("c2"))
}

func TestResolveUnknownChannel(t *testing.T) {
	r := NewChannelRegistry()
	assert.Equal(t, UnknownChannel, r.Resolve("nope"))
	_, ok := r.Lookup("nope")
	assert.False(t, ok)
}

func TestRebuildReplacesMapping(t *testing.T) {
	r := NewChannelRegistry()
	r.Rebuild([]GroupChannel{{ChannelURL: "old", Name: "Old"}}, ownID)
	r.Rebuild([]GroupChannel{{ChannelURL: "new", Name: "New"}, {Name: "no url"}}, ownID)

	assert.Equal(t, 1, r.Len())
	assert.Equal(t, UnknownChannel, r.Resolve("old"))
	assert.Equal(t, "New", r.Resolve("new"))
}

func TestAddKeepsExistingChannels(t *testing.T) {
	r := NewChannelRegistry()
	r.Rebuild([]GroupChannel{{ChannelURL: "c1", Name: "One"}}, ownID)

	ch := r.Add(GroupChannel{ChannelURL: "c2", Name: "Two"}, ownID)
	assert.Equal(t, "Two", ch.DisplayName)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, "One", r.Resolve("c1"))

	r.Add(GroupChannel{ChannelURL: "c1", Name: "Renamed"}, ownID)
	assert.Equal(t, "Renamed", r.Resolve("c1"))
}

func TestSnapshotIsACopy(t *testing.T) {
	r := NewChannelRegistry()
	r.Add(GroupChannel{ChannelURL: "c1", Name: "One"}, ownID)

	snap := r.Snapshot()
	delete(snap, "c1")
	assert.Equal(t, "One", r.Resolve("c1"))
}

func TestNestedChannelObjectWins(t *testing.T) {
	var g GroupChannel
	require.NoError(t, json.Unmarshal([]byte(`{
		"channel_url": "top",
		"name": "Top",
		"custom_type": "group",
		"members": [],
		"channel": {"channel_url": "nested", "name": "Nested"}
	}`), &g))

	ch := ChannelFromSnapshot(g, ownID)
	assert.Equal(t, "nested", ch.URL)
	assert.Equal(t, "Nested", ch.DisplayName)
	assert.False(t, ch.IsDirect)
}

func TestDirectChannelWithOnlySelf(t *testing.T) {
	ch := ChannelFromSnapshot(GroupChannel{
		ChannelURL: "solo",
		CustomType: CustomTypeDirect,
		Members:    []Member{{UserID: ownID, Nickname: "me"}},
	}, ownID)
	assert.Empty(t, ch.DisplayName)
}
