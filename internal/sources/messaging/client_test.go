package messaging

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsconsole/internal/engine"
)

func TestListChannelsCursor(t *testing.T) {
	var cursors []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/conversations.list", r.URL.Path)
		cursor := r.URL.Query().Get("cursor")
		cursors = append(cursors, cursor)
		if cursor == "" {
			fmt.Fprint(w, `{"ok":true,"channels":[{"id":"C1","name":"general"}],"response_metadata":{"next_cursor":"dGVhbTpDMDYx"}}`)
			return
		}
		fmt.Fprint(w, `{"ok":true,"channels":[{"id":"C2","name":"random"}],"response_metadata":{"next_cursor":""}}`)
	}))
	defer srv.Close()

	c := New("xoxb", srv.URL)
	items, err := engine.Collect(context.Background(), engine.NewPager[map[string]any](c.ListChannels, 1, 0))

	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, []string{"", "dGVhbTpDMDYx"}, cursors)
}

func TestListChannelsNotOK(t *testing.T) {
	tests := []struct {
		body string
		want engine.ErrorKind
	}{
		{`{"ok":false,"error":"ratelimited"}`, engine.RateLimited},
		{`{"ok":false,"error":"invalid_auth"}`, engine.AuthFailure},
		{`{"ok":false,"error":"channel_not_found"}`, engine.NotFound},
		{`{"ok":false,"error":"fatal_error"}`, engine.Unknown},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, tt.body)
		}))

		_, err := New("xoxb", srv.URL).ListChannels(context.Background(), engine.Token{}, 100)
		srv.Close()

		require.Error(t, err, tt.body)
		assert.Equal(t, tt.want, engine.Classify(err).Kind, tt.body)
	}
}
