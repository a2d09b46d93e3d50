package review

import (
	"database/sql"
	"strings"
)

// Review is one customer review on the external place-management platform.
type Review struct {
	ID        string // Platform-assigned, unique within a store
	StoreID   string
	Author    string
	Rating    sql.NullInt32 // Some platforms allow reviews without stars
	Content   string
	Date      string // Display date exactly as the backend renders it
	ReplyText string // Empty means no reply
}

// HasReply is the only test for "replied". The backend's own has_reply flag can be
// set before the reply text is populated, so it is deliberately not stored.
func (r Review) HasReply() bool {
	return strings.TrimSpace(r.ReplyText) != ""
}

// Filter selects which reviews a listing shows.
type Filter string

const (
	FilterAll     Filter = "all"
	FilterPending Filter = "pending"
	FilterReplied Filter = "replied"
)

// ParseFilter maps operator input to a Filter. Empty input means FilterAll.
func ParseFilter(s string) (Filter, bool) {
	switch Filter(strings.ToLower(strings.TrimSpace(s))) {
	case "", FilterAll:
		return FilterAll, true
	case FilterPending:
		return FilterPending, true
	case FilterReplied:
		return FilterReplied, true
	default:
		return "", false
	}
}
