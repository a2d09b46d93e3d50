package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReview_HasReply(t *testing.T) {
	assert.False(t, Review{}.HasReply())
	assert.False(t, Review{ReplyText: "   \n"}.HasReply())
	assert.True(t, Review{ReplyText: "Thanks!"}.HasReply())
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		input string
		want  Filter
		ok    bool
	}{
		{"", FilterAll, true},
		{"all", FilterAll, true},
		{" Pending ", FilterPending, true},
		{"REPLIED", FilterReplied, true},
		{"unanswered", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseFilter(tt.input)
		assert.Equal(t, tt.ok, ok, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}
}
