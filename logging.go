package litecache

import (
	"context"
	"log/slog"

	"github.com/dustin/go-humanize"
)

// LevelNotice sits between Info and Warn. Producer failures and cache
// clears are logged at this level.
const LevelNotice = slog.Level(2)

// ReplaceLevelNames renders LevelNotice as "NOTICE". Use it as
// slog.HandlerOptions.ReplaceAttr.
func ReplaceLevelNames(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if level, ok := a.Value.Any().(slog.Level); ok && level == LevelNotice {
		a.Value = slog.StringValue("NOTICE")
	}
	return a
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func (c *Cache) notice(msg string, attrs ...slog.Attr) {
	c.logger.LogAttrs(context.Background(), LevelNotice, msg, attrs...)
}

func formatSize(n int) string {
	return humanize.Bytes(uint64(n))
}
