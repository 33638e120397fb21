// Package history selects the slice of past turns fed to the model.
package history

import "github.com/nonotalk/backend/internal/model/chat"

// Window returns the last n messages of a chronologically ordered slice.
// The result shares no backing array with msgs.
func Window(msgs []chat.Message, n int) []chat.Message {
	if n <= 0 || len(msgs) == 0 {
		return nil
	}
	start := 0
	if len(msgs) > n {
		start = len(msgs) - n
	}
	return append([]chat.Message(nil), msgs[start:]...)
}

// FromNewestFirst turns a newest-first fetch into chronological order.
func FromNewestFirst(msgs []chat.Message) []chat.Message {
	out := make([]chat.Message, len(msgs))
	for i, m := range msgs {
		out[len(msgs)-1-i] = m
	}
	return out
}

// Build takes a newest-first fetch, drops the message with excludeID (the
// turn being answered, which the caller supplies separately), keeps at most
// limit messages and returns them oldest first.
func Build(newestFirst []chat.Message, limit int, excludeID int64) []chat.Message {
	if limit <= 0 {
		return nil
	}
	kept := make([]chat.Message, 0, min(limit, len(newestFirst)))
	for _, m := range newestFirst {
		if excludeID != 0 && m.ID == excludeID {
			continue
		}
		kept = append(kept, m)
		if len(kept) == limit {
			break
		}
	}
	return FromNewestFirst(kept)
}
