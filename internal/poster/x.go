package poster

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/go-resty/resty/v2"
)

const (
	xUploadURL = "https://upload.twitter.com/1.1/media/upload.json"
	xTweetsURL = "https://api.twitter.com/2/tweets"
)

// XCredentials are the OAuth 1.0a user-context keys of the posting account.
type XCredentials struct {
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
}

// X posts to X (Twitter): media via the v1.1 upload endpoint, posts via v2.
type X struct {
	client    *resty.Client
	uploadURL string
	tweetsURL string
}

// NewX returns an X backend signing every request with creds.
func NewX(creds XCredentials) *X {
	return newX(creds, xUploadURL, xTweetsURL)
}

func newX(creds XCredentials, uploadURL, tweetsURL string) *X {
	cfg := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessTokenSecret)
	client := resty.NewWithClient(cfg.Client(oauth1.NoContext, token)).
		SetTimeout(30 * time.Second)
	return &X{
		client:    client,
		uploadURL: uploadURL,
		tweetsURL: tweetsURL,
	}
}

func (x *X) Name() string { return "x" }

// UploadImage uploads the file at path and returns its media id.
func (x *X) UploadImage(ctx context.Context, path string) (string, error) {
	var result struct {
		MediaIDString string `json:"media_id_string"`
	}
	req := x.client.R().SetContext(ctx).SetFile("media", path)
	if err := x.do(req, x.uploadURL, &result); err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}
	if result.MediaIDString == "" {
		return "", fmt.Errorf("upload media: empty media id")
	}
	return result.MediaIDString, nil
}

type tweetRequest struct {
	Text  string      `json:"text"`
	Media *tweetMedia `json:"media,omitempty"`
	Reply *tweetReply `json:"reply,omitempty"`
}

type tweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type tweetReply struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

// PostText creates a post, attaching mediaID and replying to replyTo when
// they are set.
func (x *X) PostText(ctx context.Context, text, mediaID, replyTo string) (string, error) {
	payload := tweetRequest{Text: text}
	if mediaID != "" {
		payload.Media = &tweetMedia{MediaIDs: []string{mediaID}}
	}
	if replyTo != "" {
		payload.Reply = &tweetReply{InReplyToTweetID: replyTo}
	}

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	req := x.client.R().SetContext(ctx).SetBody(payload)
	if err := x.do(req, x.tweetsURL, &result); err != nil {
		return "", fmt.Errorf("create post: %w", err)
	}
	if result.Data.ID == "" {
		return "", fmt.Errorf("create post: empty id")
	}
	return result.Data.ID, nil
}

// do posts req to url and decodes a successful JSON reply into out.
func (x *X) do(req *resty.Request, url string, out any) error {
	resp, err := req.SetResult(out).ForceContentType("application/json").Post(url)
	if err != nil {
		return err
	}
	if resp.IsError() {
		msg := resp.Body()
		if len(msg) > 512 {
			msg = msg[:512]
		}
		return fmt.Errorf("x API error %d: %s", resp.StatusCode(), bytes.TrimSpace(msg))
	}
	return nil
}
