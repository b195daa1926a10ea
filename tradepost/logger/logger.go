// Package logger provides the colored console slog handler used across the
// bot. Records tagged with type=cmd/db/error get their own column; noisy
// gateway internals are dropped.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorPurple = "\033[35m"
	colorWhite  = "\033[37m"
)

type LogType string

const (
	TypeCommand LogType = "CMD"
	TypeDB      LogType = "DB"
	TypeSystem  LogType = "SYS"
	TypeError   LogType = "ERR"
)

var skippedMessages = []string{
	"locking buckets",
	"unlocking buckets",
	"gateway event",
	"binary message received",
	"received gateway message",
	"opening gateway connection",
	"locking gateway rate limiter",
	"unlocking gateway rate limiter",
	"sending gateway command",
	"new request",
	"new response",
	"locking rest bucket",
	"unlocking rest bucket",
	"rate limit response headers",
	"sending heartbeat",
}

type Handler struct {
	level     slog.Level
	startTime time.Time
	attrs     []slog.Attr
}

func NewHandler() *Handler {
	return &Handler{
		level:     slog.LevelDebug,
		startTime: time.Now(),
	}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{
		level:     h.level,
		startTime: h.startTime,
		attrs:     append(h.attrs[:len(h.attrs):len(h.attrs)], attrs...),
	}
}

func (h *Handler) WithGroup(string) slog.Handler {
	return h
}

// fields pulled out of the record's attrs for the message line
type recordInfo struct {
	logType  LogType
	status   string
	userName string
	cmdName  string
	errText  string
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	if shouldSkip(r.Message) {
		return nil
	}

	info := extract(&r)

	var levelColor, levelText string
	switch r.Level {
	case slog.LevelDebug:
		levelColor, levelText = colorPurple, "DEBUG"
	case slog.LevelInfo:
		levelColor, levelText = colorGreen, "INFO"
	case slog.LevelWarn:
		levelColor, levelText = colorYellow, "WARN"
	case slog.LevelError:
		levelColor, levelText = colorRed, "ERROR"
	}

	message := r.Message
	if r.Level == slog.LevelError && info.errText != "" {
		message = fmt.Sprintf("%s: %s", message, info.errText)
	}
	if info.cmdName != "" && info.userName != "" {
		message = fmt.Sprintf("%s [%s by %s]", message, info.cmdName, info.userName)
	}
	if info.status != "" {
		message = fmt.Sprintf("%s [Status: %s]", message, info.status)
	}
	if elapsed := time.Since(h.startTime).Milliseconds(); elapsed > 0 {
		message = fmt.Sprintf("%s (took %dms)", message, elapsed)
	}

	var attrsStr strings.Builder
	for _, attr := range h.attrs {
		if !isInternalAttr(attr.Key) {
			fmt.Fprintf(&attrsStr, " %s=%v", attr.Key, attr.Value)
		}
	}

	fmt.Printf("%s[TradePost] [%s] [%s%s%s] [%s] %s%s%s\n",
		colorWhite,
		time.Now().Format("15:04:05"),
		levelColor,
		levelText,
		colorWhite,
		info.logType,
		message,
		attrsStr.String(),
		colorReset,
	)
	return nil
}

func extract(r *slog.Record) recordInfo {
	info := recordInfo{logType: TypeSystem}
	r.Attrs(func(a slog.Attr) bool {
		switch a.Key {
		case "type":
			switch a.Value.String() {
			case "cmd":
				info.logType = TypeCommand
			case "db":
				info.logType = TypeDB
			case "error":
				info.logType = TypeError
			}
		case "status":
			info.status = a.Value.String()
		case "user_name":
			info.userName = a.Value.String()
		case "name":
			info.cmdName = a.Value.String()
		case "error":
			info.errText = fmt.Sprintf("%v", a.Value)
		}
		return true
	})
	return info
}

func shouldSkip(message string) bool {
	lower := strings.ToLower(message)
	for _, skip := range skippedMessages {
		if strings.Contains(lower, skip) {
			return true
		}
	}
	return false
}

func isInternalAttr(key string) bool {
	switch key {
	case "type", "name", "user_name", "status":
		return true
	}
	return false
}
