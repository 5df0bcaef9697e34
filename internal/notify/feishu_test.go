package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunks(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  []string
	}{
		{name: "short", in: "a\nb\n", limit: 10, want: []string{"a\nb\n"}},
		{name: "line boundaries", in: "aaa\nbbb\nccc\n", limit: 8, want: []string{"aaa\nbbb\n", "ccc\n"}},
		{name: "long line is cut", in: "abcdefghij", limit: 4, want: []string{"abcd", "efgh", "ij"}},
		{name: "multibyte runes kept whole", in: "ééé", limit: 3, want: []string{"é", "é", "é"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Chunks(tt.in, tt.limit)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, strings.Join(got, ""))
			for _, c := range got {
				assert.LessOrEqual(t, len(c), tt.limit)
			}
		})
	}
}

func TestStatements(t *testing.T) {
	script := `--
-- Schema Sync 1.0.0 Patch Script
-- Created: Mon, Oct 19, 2026
--

USE ` + "`shop`" + `;
SET FOREIGN_KEY_CHECKS = 0;
ALTER TABLE ` + "`users`" + ` DROP COLUMN ` + "`age`" + `;
SET FOREIGN_KEY_CHECKS = 1;
`
	assert.Equal(t, []string{"USE `shop`;", "ALTER TABLE `users` DROP COLUMN `age`;"}, Statements(script))
}

func TestStatementsLongLine(t *testing.T) {
	long := "CREATE VIEW `v` AS SELECT '" + strings.Repeat("x", 17<<20) + "';"
	got := Statements("-- header\n" + long + "\nDROP VIEW `w`;\n")
	require.Len(t, got, 2)
	assert.Equal(t, len(long), len(got[0]))
	assert.Equal(t, "DROP VIEW `w`;", got[1])
}

type captured struct {
	mu       sync.Mutex
	messages []postMessage
}

func newServer(t *testing.T, c *captured, response string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.Header.Get("Content-Type"), "application/json")
		body, _ := io.ReadAll(r.Body)
		var msg postMessage
		assert.NoError(t, json.Unmarshal(body, &msg))
		c.mu.Lock()
		c.messages = append(c.messages, msg)
		c.mu.Unlock()
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNotify(t *testing.T) {
	var c captured
	srv := newServer(t, &c, `{"code":0,"msg":"success"}`)

	n := NewFeishuNotifier(srv.URL)
	n.SetClient(srv.Client())
	err := n.Notify(context.Background(), Alert{
		Target:     "db1:3306/shop",
		Statements: []string{"ALTER TABLE `users` ADD COLUMN `age` int NULL AFTER `name`;"},
	})
	require.NoError(t, err)

	require.Len(t, c.messages, 1)
	msg := c.messages[0]
	assert.Equal(t, "post", msg.MsgType)
	assert.Equal(t, DefaultTitle, msg.Content.Post.ZhCN.Title)
	require.Len(t, msg.Content.Post.ZhCN.Content, 1)
	line := msg.Content.Post.ZhCN.Content[0]
	require.Len(t, line, 2)
	assert.Contains(t, line[0].Text, "db1:3306/shop")
	assert.Contains(t, line[0].Text, "ADD COLUMN `age`")
	assert.Equal(t, "at", line[1].Tag)
	assert.Equal(t, "all", line[1].UserID)
}

func TestNotifySplitsLongAlerts(t *testing.T) {
	var c captured
	srv := newServer(t, &c, `{"code":0}`)

	stmts := make([]string, 600)
	for i := range stmts {
		stmts[i] = "ALTER TABLE `t` MODIFY COLUMN `c` varchar(255) NOT NULL COMMENT 'padding padding';"
	}
	n := NewFeishuNotifier(srv.URL)
	require.NoError(t, n.Notify(context.Background(), Alert{Target: "db1:3306/shop", Statements: stmts}))

	require.Greater(t, len(c.messages), 1)
	for i, msg := range c.messages {
		assert.Contains(t, msg.Content.Post.ZhCN.Title, "part ")
		assert.LessOrEqual(t, len(msg.Content.Post.ZhCN.Content[0][0].Text), MaxMessageLen, "message %d", i)
	}
}

func TestNotifyRejected(t *testing.T) {
	var c captured
	srv := newServer(t, &c, `{"code":19021,"msg":"sign match fail"}`)

	err := NewFeishuNotifier(srv.URL).Notify(context.Background(), Alert{Target: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sign match fail")
}

func TestNotifyHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewFeishuNotifier(srv.URL).Notify(context.Background(), Alert{Target: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
