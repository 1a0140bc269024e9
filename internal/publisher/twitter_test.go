package publisher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/maheshrc27/publish-engine/internal/media"
	"github.com/maheshrc27/publish-engine/internal/models"
	"github.com/maheshrc27/publish-engine/internal/transfer"
)

func TestTwitterImageTweet(t *testing.T) {
	var tweet transfer.TweetRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/2/media/upload":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("ParseMultipartForm: %v", err)
			}
			if got := r.FormValue("media_category"); got != "tweet_image" {
				t.Errorf("media_category = %q", got)
			}
			w.Write([]byte(`{"data":{"id":"m-1"}}`))
		case "/2/tweets":
			json.NewDecoder(r.Body).Decode(&tweet)
			w.Write([]byte(`{"data":{"id":"1800","text":"hi"}}`))
		}
	}))
	defer srv.Close()

	source := &fakeSource{objects: map[string]*media.Object{
		"https://cdn.example/a.jpg": {Data: []byte("jpg"), ContentType: "image/jpeg", Type: models.MediaTypeImage},
	}}
	p := NewTwitter(testConfig(srv), source)
	res, err := p.Publish(context.Background(), &Request{
		AccessToken: "x-token",
		Content:     "hi",
		Media:       []models.Media{{URL: "https://cdn.example/a.jpg", Type: models.MediaTypeImage}},
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if tweet.Media == nil || len(tweet.Media.MediaIDs) != 1 || tweet.Media.MediaIDs[0] != "m-1" {
		t.Errorf("tweet = %+v", tweet)
	}
	if res.Permalink != "https://x.com/i/web/status/1800" {
		t.Errorf("Permalink = %s", res.Permalink)
	}
}

func TestTwitterChunkedVideo(t *testing.T) {
	var (
		mu       sync.Mutex
		commands []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if r.URL.Path == "/2/tweets" {
			w.Write([]byte(`{"data":{"id":"1801"}}`))
			return
		}
		if r.Method == http.MethodGet {
			commands = append(commands, r.URL.Query().Get("command"))
			w.Write([]byte(`{"data":{"id":"v-1","processing_info":{"state":"succeeded"}}}`))
			return
		}
		r.ParseMultipartForm(1 << 20)
		cmd := r.FormValue("command")
		commands = append(commands, cmd)
		switch cmd {
		case "INIT":
			w.Write([]byte(`{"data":{"id":"v-1"}}`))
		case "APPEND":
			w.WriteHeader(http.StatusNoContent)
		case "FINALIZE":
			w.Write([]byte(`{"data":{"id":"v-1","processing_info":{"state":"pending","check_after_secs":1}}}`))
		}
	}))
	defer srv.Close()

	source := &fakeSource{objects: map[string]*media.Object{
		"https://cdn.example/v.mp4": {Data: []byte("video-bytes"), ContentType: "video/mp4", Type: models.MediaTypeVideo},
	}}
	p := NewTwitter(testConfig(srv), source)
	if _, err := p.Publish(context.Background(), &Request{
		AccessToken: "x-token",
		Media:       []models.Media{{URL: "https://cdn.example/v.mp4", Type: models.MediaTypeVideo}},
	}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	want := []string{"INIT", "APPEND", "FINALIZE", "STATUS"}
	if len(commands) != len(want) {
		t.Fatalf("commands = %v, want %v", commands, want)
	}
	for i := range want {
		if commands[i] != want[i] {
			t.Errorf("commands = %v, want %v", commands, want)
			break
		}
	}
}
