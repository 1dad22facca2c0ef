package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIVideos(t *testing.T) {
	polls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/videos":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "sora-2", body["model"])
			fmt.Fprint(w, `{"id":"vid_1","status":"queued"}`)
		case r.URL.Path == "/videos/vid_1":
			polls++
			if polls < 2 {
				fmt.Fprint(w, `{"id":"vid_1","status":"in_progress"}`)
				return
			}
			fmt.Fprint(w, `{"id":"vid_1","status":"completed"}`)
		case r.URL.Path == "/videos/vid_bad":
			fmt.Fprint(w, `{"id":"vid_bad","status":"failed","error":{"message":"moderation blocked"}}`)
		default:
			http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
		}
	}))
	defer srv.Close()

	c := NewOpenAIVideos(srv.URL, "key", "sora-2")
	ctx := context.Background()

	id, err := c.Start(ctx, "a nurse parks at sunrise")
	require.NoError(t, err)
	assert.Equal(t, "vid_1", id)

	st, err := c.Poll(ctx, id)
	require.NoError(t, err)
	assert.False(t, st.Done)

	st, err = c.Poll(ctx, id)
	require.NoError(t, err)
	assert.True(t, st.Done)
	assert.Equal(t, srv.URL+"/videos/vid_1/content", st.URI)

	st, err = c.Poll(ctx, "vid_bad")
	require.NoError(t, err)
	assert.Equal(t, "moderation blocked", st.Error)

	_, err = c.Poll(ctx, "missing")
	require.Error(t, err)
	assert.True(t, IsRateLimit(err.Error()))
}

func TestOpenAIImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "1536x1024", body["size"])
		fmt.Fprint(w, `{"data":[{"b64_json":"AAAA"}],"usage":{"input_tokens":3,"output_tokens":7,"total_tokens":10}}`)
	}))
	defer srv.Close()

	img, u, err := NewOpenAIImages(srv.URL, "key", "gpt-image-1").Generate(context.Background(), "banner", AspectWide)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AAAA", img)
	assert.Equal(t, 10, u.Total)
}
