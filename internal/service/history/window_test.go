package history

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nonotalk/backend/internal/model/chat"
)

func msgs(ids ...int64) []chat.Message {
	out := make([]chat.Message, len(ids))
	for i, id := range ids {
		out[i] = chat.Message{ID: id}
	}
	return out
}

func ids(in []chat.Message) []int64 {
	out := make([]int64, len(in))
	for i, m := range in {
		out[i] = m.ID
	}
	return out
}

func TestWindowKeepsTail(t *testing.T) {
	all := msgs(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)

	assert.Equal(t, []int64{5, 6, 7, 8, 9, 10}, ids(Window(all, 6)))
	assert.Equal(t, ids(all), ids(Window(all, 50)))
	assert.Nil(t, Window(all, 0))
	assert.Nil(t, Window(nil, 8))
}

func TestWindowDoesNotAlias(t *testing.T) {
	all := msgs(1, 2, 3)
	w := Window(all, 2)
	w[0].ID = 99

	assert.Equal(t, int64(2), all[1].ID)
}

func TestFromNewestFirstRestoresChronology(t *testing.T) {
	assert.Equal(t, []int64{1, 2, 3}, ids(FromNewestFirst(msgs(3, 2, 1))))
	assert.Empty(t, FromNewestFirst(nil))
}

func TestBuildExcludesCurrentTurn(t *testing.T) {
	newestFirst := msgs(9, 8, 7, 6, 5)

	assert.Equal(t, []int64{6, 7, 8}, ids(Build(newestFirst, 3, 9)))
	assert.Equal(t, []int64{7, 8, 9}, ids(Build(newestFirst, 3, 0)))
	assert.Equal(t, []int64{5, 6, 7, 8}, ids(Build(newestFirst, 10, 9)))
	assert.Nil(t, Build(newestFirst, 0, 0))
}
