package poster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type call struct {
	text, mediaID, replyTo string
}

type fakeBackend struct {
	mu      sync.Mutex
	posts   []call
	uploads []string
	failAt  int // 1-based post index that fails, 0 never
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) UploadImage(_ context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, path)
	return "m" + filepath.Base(path), nil
}

func (f *fakeBackend) PostText(_ context.Context, text, mediaID, replyTo string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, call{text, mediaID, replyTo})
	if f.failAt == len(f.posts) {
		return "", errors.New("rejected")
	}
	return fmt.Sprintf("p%d", len(f.posts)), nil
}

func sampleThread() Thread {
	return Thread{
		Report: "daily report",
		Entries: []Entry{
			{Text: "gpu trend", ImagePath: "gpu.png"},
			{Text: "models", ImagePath: "gpu_details.png"},
			{Text: "spend", ImagePath: "usd.png"},
		},
	}
}

func TestThreaderChainsReplies(t *testing.T) {
	fb := &fakeBackend{}
	root, err := NewThreader(fb, 0, testLogger()).Post(context.Background(), sampleThread())
	if err != nil {
		t.Fatalf("Post error: %v", err)
	}
	if root != "p1" {
		t.Errorf("root = %q, want p1", root)
	}
	if len(fb.posts) != 5 || len(fb.uploads) != 3 {
		t.Fatalf("posts=%d uploads=%d, want 5 and 3", len(fb.posts), len(fb.uploads))
	}
	if fb.posts[0].replyTo != "" {
		t.Errorf("report should not be a reply, got %q", fb.posts[0].replyTo)
	}
	for i := 1; i < len(fb.posts); i++ {
		if want := fmt.Sprintf("p%d", i); fb.posts[i].replyTo != want {
			t.Errorf("post %d replies to %q, want %q", i+1, fb.posts[i].replyTo, want)
		}
	}
	if fb.posts[1].mediaID != "mgpu.png" {
		t.Errorf("entry media = %q", fb.posts[1].mediaID)
	}
	if last := fb.posts[4]; last.text != ClosingText || last.mediaID != "" {
		t.Errorf("closing post = %+v", last)
	}
}

func TestThreaderStopsOnFailure(t *testing.T) {
	fb := &fakeBackend{failAt: 3}
	root, err := NewThreader(fb, 0, testLogger()).Post(context.Background(), sampleThread())
	if err == nil || !strings.Contains(err.Error(), "entry 2") {
		t.Fatalf("err = %v, want failure at entry 2", err)
	}
	if root != "p1" {
		t.Errorf("root = %q, partial thread root should be returned", root)
	}
	if len(fb.posts) != 3 {
		t.Errorf("posts = %d, want 3", len(fb.posts))
	}
}

func TestThreaderCancelledDuringPause(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fb := &fakeBackend{}
	_, err := NewThreader(fb, 1e9, testLogger()).Post(ctx, sampleThread())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(fb.posts) != 1 {
		t.Errorf("posts = %d, want only the report", len(fb.posts))
	}
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gpu.png")
	if err := os.WriteFile(path, []byte("\x89PNG fake"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestXBackend(t *testing.T) {
	var (
		mu     sync.Mutex
		tweets []tweetRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "OAuth ") {
			http.Error(w, "unsigned", http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/upload":
			f, _, err := r.FormFile("media")
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			f.Close()
			fmt.Fprint(w, `{"media_id":1,"media_id_string":"1001"}`)
		case "/tweets":
			var req tweetRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			mu.Lock()
			tweets = append(tweets, req)
			n := len(tweets)
			mu.Unlock()
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"data":{"id":"%d","text":"x"}}`, 500+n)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	x := newX(XCredentials{"ck", "cs", "at", "as"}, srv.URL+"/upload", srv.URL+"/tweets")
	thread := Thread{Report: "report", Entries: []Entry{{Text: "gpu", ImagePath: writeImage(t)}}}
	root, err := NewThreader(x, 0, testLogger()).Post(context.Background(), thread)
	if err != nil {
		t.Fatalf("Post error: %v", err)
	}
	if root != "501" {
		t.Errorf("root = %q, want 501", root)
	}
	if len(tweets) != 3 {
		t.Fatalf("tweets = %d, want 3", len(tweets))
	}
	if tweets[0].Reply != nil || tweets[0].Media != nil {
		t.Errorf("report tweet = %+v", tweets[0])
	}
	if tweets[1].Media == nil || tweets[1].Media.MediaIDs[0] != "1001" || tweets[1].Reply.InReplyToTweetID != "501" {
		t.Errorf("entry tweet = %+v", tweets[1])
	}
	if tweets[2].Reply.InReplyToTweetID != "502" {
		t.Errorf("closing replies to %q", tweets[2].Reply.InReplyToTweetID)
	}
}

func TestXBackendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"title":"Forbidden"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	x := newX(XCredentials{}, srv.URL+"/upload", srv.URL+"/tweets")
	_, err := x.PostText(context.Background(), "hi", "", "")
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Errorf("err = %v, want status 403", err)
	}
}

func TestTelegramBackend(t *testing.T) {
	var (
		mu      sync.Mutex
		replies []string
		photos  int
		nextID  int64 = 10
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.URL.Path {
		case "/bottok/sendMessage":
			var req map[string]any
			_ = json.NewDecoder(r.Body).Decode(&req)
			if v, ok := req["reply_to_message_id"]; ok {
				replies = append(replies, fmt.Sprint(v))
			}
		case "/bottok/sendPhoto":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if r.FormValue("caption") != "gpu" {
				http.Error(w, `{"ok":false,"description":"bad caption"}`, http.StatusBadRequest)
				return
			}
			photos++
			replies = append(replies, r.FormValue("reply_to_message_id"))
		default:
			http.NotFound(w, r)
			return
		}
		nextID++
		fmt.Fprintf(w, `{"ok":true,"result":{"message_id":%d}}`, nextID)
	}))
	defer srv.Close()

	tg := newTelegram("tok", -100, srv.URL+"/bot")
	thread := Thread{Report: "report", Entries: []Entry{{Text: "gpu", ImagePath: writeImage(t)}}}
	root, err := NewThreader(tg, 0, testLogger()).Post(context.Background(), thread)
	if err != nil {
		t.Fatalf("Post error: %v", err)
	}
	if root != "11" {
		t.Errorf("root = %q, want 11", root)
	}
	if photos != 1 {
		t.Errorf("photos = %d, want 1", photos)
	}
	if strings.Join(replies, ",") != "11,12" {
		t.Errorf("replies = %v, want [11 12]", replies)
	}
}

func TestTelegramMissingImage(t *testing.T) {
	tg := newTelegram("tok", 1, "http://127.0.0.1:0/bot")
	if _, err := tg.UploadImage(context.Background(), filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Error("missing image should fail")
	}
}

func TestDryRun(t *testing.T) {
	thread := Thread{Report: "report", Entries: []Entry{{Text: "gpu", ImagePath: writeImage(t)}}}
	root, err := NewThreader(NewDryRun(testLogger()), 0, testLogger()).Post(context.Background(), thread)
	if err != nil {
		t.Fatalf("Post error: %v", err)
	}
	if root != "dryrun-1" {
		t.Errorf("root = %q, want dryrun-1", root)
	}
}
