package snoochat

import (
	"net/url"
	"strconv"
)

// --------------------------------------------------------------------------
// Channel Types
// --------------------------------------------------------------------------

// CustomTypeDirect marks a one-to-one channel.
const CustomTypeDirect = "direct"

// Member is a participant of a group channel.
type Member struct {
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname"`
	State    string `json:"state,omitempty"`
	IsActive bool   `json:"is_active,omitempty"`
}

// ChannelInfo is the nested "channel" object of a group channel snapshot.
type ChannelInfo struct {
	ChannelURL string `json:"channel_url"`
	Name       string `json:"name"`
	CreatedAt  int64  `json:"created_at,omitempty"`
	CustomType string `json:"custom_type,omitempty"`
}

// GroupChannel is one entry of the joined-channel listing. Depending on the
// endpoint version the url and name are either top-level or nested under
// Channel; the accessors below check both.
type GroupChannel struct {
	ChannelURL  string       `json:"channel_url,omitempty"`
	Name        string       `json:"name,omitempty"`
	CustomType  string       `json:"custom_type"`
	MemberCount int          `json:"member_count,omitempty"`
	Members     []Member     `json:"members"`
	IsFrozen    bool         `json:"freeze,omitempty"`
	Channel     *ChannelInfo `json:"channel,omitempty"`
}

// URL returns the channel url.
func (g GroupChannel) URL() string {
	if g.Channel != nil && g.Channel.ChannelURL != "" {
		return g.Channel.ChannelURL
	}
	return g.ChannelURL
}

// ChannelName returns the channel's own name.
func (g GroupChannel) ChannelName() string {
	if g.Channel != nil && g.Channel.Name != "" {
		return g.Channel.Name
	}
	return g.Name
}

// IsDirect reports whether the channel is a one-to-one conversation.
func (g GroupChannel) IsDirect() bool { return g.CustomType == CustomTypeDirect }

// GroupChannelsResponse is the page wrapper returned by
// GET /v3/users/{user_id}/my_group_channels.
type GroupChannelsResponse struct {
	Channels []GroupChannel `json:"channels"`
	Next     string         `json:"next"`
}

// --------------------------------------------------------------------------
// Listing Options
// --------------------------------------------------------------------------

// ListOptions are the filter and pagination parameters for listing joined
// channels.
type ListOptions struct {
	Limit             int
	Order             string
	ShowMember        bool
	ShowReadReceipt   bool
	ShowEmpty         bool
	ShowFrozen        bool
	MemberStateFilter string
	SuperMode         string
	PublicMode        string
	UnreadFilter      string
	HiddenMode        string
	// MaxPages bounds how many `next` tokens are followed. Zero means one page.
	MaxPages int
}

// DefaultListOptions mirrors the query the official client issues after
// login.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:             100,
		Order:             "latest_last_message",
		ShowMember:        true,
		ShowReadReceipt:   true,
		ShowEmpty:         true,
		ShowFrozen:        true,
		MemberStateFilter: "joined_only",
		SuperMode:         "all",
		PublicMode:        "all",
		UnreadFilter:      "all",
		HiddenMode:        "all",
		MaxPages:          10,
	}
}

func (o ListOptions) values(token string) url.Values {
	params := url.Values{}
	if o.Limit > 0 {
		params.Set("limit", strconv.Itoa(o.Limit))
	}
	setNonEmpty(params, "order", o.Order)
	params.Set("show_member", strconv.FormatBool(o.ShowMember))
	params.Set("show_read_receipt", strconv.FormatBool(o.ShowReadReceipt))
	params.Set("show_empty", strconv.FormatBool(o.ShowEmpty))
	params.Set("show_frozen", strconv.FormatBool(o.ShowFrozen))
	setNonEmpty(params, "member_state_filter", o.MemberStateFilter)
	setNonEmpty(params, "super_mode", o.SuperMode)
	setNonEmpty(params, "public_mode", o.PublicMode)
	setNonEmpty(params, "unread_filter", o.UnreadFilter)
	setNonEmpty(params, "hidden_mode", o.HiddenMode)
	setNonEmpty(params, "token", token)
	return params
}

func setNonEmpty(params url.Values, key, value string) {
	if value != "" {
		params.Set(key, value)
	}
}
