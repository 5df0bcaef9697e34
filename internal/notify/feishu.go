// Package notify sends schema drift alerts to a Feishu group webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxMessageLen is the largest text Feishu accepts in one post message.
const MaxMessageLen = 20000

// DefaultTitle heads every alert.
const DefaultTitle = "Schema drift detected"

// Alert describes one out-of-sync database.
type Alert struct {
	Target     string   `json:"target"`
	Statements []string `json:"statements"`
}

// FeishuNotifier posts alerts to a Feishu custom bot webhook.
type FeishuNotifier struct {
	url    string
	title  string
	client *http.Client
}

// NewFeishuNotifier creates a notifier for the webhook at url.
func NewFeishuNotifier(url string) *FeishuNotifier {
	return &FeishuNotifier{
		url:    url,
		title:  DefaultTitle,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// SetClient sets a custom HTTP client (useful for testing).
func (n *FeishuNotifier) SetClient(client *http.Client) {
	n.client = client
}

// Notify sends alert, split over several messages when it is longer than
// MaxMessageLen. Every message mentions all group members.
func (n *FeishuNotifier) Notify(ctx context.Context, alert Alert) error {
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(alert); err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	chunks := Chunks(body.String(), MaxMessageLen)
	for i, chunk := range chunks {
		title := n.title
		if len(chunks) > 1 {
			title = fmt.Sprintf("%s (part %d of %d)", n.title, i+1, len(chunks))
		}
		if err := n.post(ctx, title, chunk); err != nil {
			return fmt.Errorf("failed to send alert part %d: %w", i+1, err)
		}
	}
	return nil
}

type textTag struct {
	Tag    string `json:"tag"`
	Text   string `json:"text,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

type postMessage struct {
	MsgType string `json:"msg_type"`
	Content struct {
		Post struct {
			ZhCN struct {
				Title   string      `json:"title"`
				Content [][]textTag `json:"content"`
			} `json:"zh_cn"`
		} `json:"post"`
	} `json:"content"`
}

type botResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (n *FeishuNotifier) post(ctx context.Context, title, text string) error {
	var msg postMessage
	msg.MsgType = "post"
	msg.Content.Post.ZhCN.Title = title
	msg.Content.Post.ZhCN.Content = [][]textTag{{
		{Tag: "text", Text: text},
		{Tag: "at", UserID: "all"},
	}}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json;charset=utf-8")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}

	var r botResponse
	if err := json.Unmarshal(respBody, &r); err == nil && r.Code != 0 {
		return fmt.Errorf("webhook rejected message: code %d: %s", r.Code, r.Msg)
	}
	return nil
}

// Chunks splits s into pieces of at most limit bytes, breaking after a
// newline whenever possible. A single line longer than limit is cut.
func Chunks(s string, limit int) []string {
	if len(s) <= limit {
		return []string{s}
	}

	var chunks []string
	for len(s) > limit {
		end := strings.LastIndexByte(s[:limit], '\n') + 1
		if end <= 0 {
			end = limit
			for end > 1 && !utf8.RuneStart(s[end]) {
				end--
			}
		}
		chunks = append(chunks, s[:end])
		s = s[end:]
	}
	if s != "" {
		chunks = append(chunks, s)
	}
	return chunks
}

// Statements extracts the statements of a saved patch script: header
// comments, blank lines and FOREIGN_KEY_CHECKS toggles are left out. Lines
// of any length are kept whole.
func Statements(script string) []string {
	var out []string
	for line := range strings.Lines(script) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		if strings.HasPrefix(strings.ToUpper(line), "SET FOREIGN_KEY_CHECKS") {
			continue
		}
		out = append(out, line)
	}
	return out
}
