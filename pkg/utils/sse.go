package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// SSEWriter 按 Server-Sent Events 格式输出数据，每条消息后立即 flush。
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter 在响应支持 flush 时返回写入器。
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	return &SSEWriter{w: w, flusher: flusher}, true
}

// SetupSSEHeaders 设置Server-Sent Events响应头，并关闭代理缓冲。
func SetupSSEHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream; charset=utf-8")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// Data 发送一条 data 消息，payload 以 JSON 编码（保留非 ASCII 字符）。
func (s *SSEWriter) Data(payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sse payload: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write sse payload: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// Pad 写入一条长度为 n 的注释行，促使中间代理尽早转发数据。
func (s *SSEWriter) Pad(n int) error {
	if _, err := fmt.Fprintf(s.w, ":%s\n\n", strings.Repeat(" ", n)); err != nil {
		return fmt.Errorf("write sse padding: %w", err)
	}
	s.flusher.Flush()
	return nil
}
