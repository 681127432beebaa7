package slack

import (
	"strconv"
	"time"
)

// Channel as returned by conversations.list.
type Channel struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsMember   bool   `json:"is_member"`
	IsArchived bool   `json:"is_archived"`
}

// Message as returned by conversations.history. TS doubles as the message's
// unique identifier across the workspace. System events (joins, topic
// changes) carry a subtype and often no user or text.
type Message struct {
	Type     string `json:"type"`
	Subtype  string `json:"subtype,omitempty"`
	TS       string `json:"ts"`
	User     string `json:"user,omitempty"`
	Text     string `json:"text,omitempty"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

// Time converts the ts value ("1718000000.123456", seconds.microseconds)
// to a time.Time. Returns the zero time for a malformed ts.
func (m Message) Time() time.Time {
	seconds, err := strconv.ParseFloat(m.TS, 64)
	if err != nil {
		return time.Time{}
	}
	sec := int64(seconds)
	nsec := int64((seconds - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

// User as returned by users.info.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	RealName string `json:"real_name"`
}

// DisplayName prefers the profile real name and falls back to the handle.
func (u User) DisplayName() string {
	if u.RealName != "" {
		return u.RealName
	}
	return u.Name
}

type responseMetadata struct {
	NextCursor string `json:"next_cursor"`
}

type listResponse struct {
	OK       bool      `json:"ok"`
	Error    string    `json:"error"`
	Channels []Channel `json:"channels"`
}

type historyResponse struct {
	OK               bool             `json:"ok"`
	Error            string           `json:"error"`
	Messages         []Message        `json:"messages"`
	HasMore          bool             `json:"has_more"`
	ResponseMetadata responseMetadata `json:"response_metadata"`
}

type userInfoResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	User  User   `json:"user"`
}

// HistoryPage is one page of channel history plus its pagination state.
type HistoryPage struct {
	Messages   []Message
	HasMore    bool
	NextCursor string
}
