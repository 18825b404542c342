package twitch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEvent(t *testing.T) {
	tests := []struct {
		name      string
		query     map[string]string
		body      string
		want      *Event
		malformed bool
	}{
		{
			name:  "query identifies streamer",
			query: map[string]string{"cbtype": "stream", "user_id": "42", "user_name": "someone"},
			want:  &Event{UserID: "42", UserName: "someone", Kind: EventStream},
		},
		{
			name:  "unknown callback type",
			query: map[string]string{"cbtype": "follow", "user_id": "42"},
			want:  &Event{UserID: "42", Kind: EventUnknown},
		},
		{
			name: "falls back to notification body",
			body: `{"subscription":{"type":"stream.offline"},"event":{"broadcaster_user_id":"7","broadcaster_user_login":"seven"}}`,
			want: &Event{UserID: "7", UserName: "seven", Kind: EventStream},
		},
		{
			name: "online notification body",
			body: `{"subscription":{"type":"stream.online"},"event":{"broadcaster_user_id":"7","broadcaster_user_login":"seven"}}`,
			want: &Event{UserID: "7", UserName: "seven", Kind: EventStream},
		},
		{
			name: "other subscription types are not stream events",
			body: `{"subscription":{"type":"channel.update"},"event":{"broadcaster_user_id":"7","broadcaster_user_login":"seven"}}`,
			want: &Event{UserID: "7", UserName: "seven", Kind: EventUnknown},
		},
		{
			name:      "no identity anywhere",
			query:     map[string]string{"cbtype": "stream"},
			malformed: true,
		},
		{
			name:      "garbage body",
			body:      "not json",
			malformed: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := NormalizeEvent(tt.query, tt.body)
			if tt.malformed {
				require.Error(t, err)
				assert.True(t, IsMalformed(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev)
		})
	}
}
