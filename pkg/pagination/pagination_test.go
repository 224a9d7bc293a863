package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-3))
	assert.Equal(t, 10, NormalizeLimit(10))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+50))
	assert.Equal(t, 11, LimitWithBuffer(10))
}

func TestCursorRoundTrip(t *testing.T) {
	encoded := EncodeCursor(Cursor{AfterID: 42})

	cursor, err := ParseCursor(encoded)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.Equal(t, uint(42), cursor.AfterID)

	none, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	for _, value := range []string{"!!!", "aWQ6", "eDox", "aWQ6YWJj"} {
		_, err := ParseCursor(value)
		assert.Error(t, err, value)
	}
}

func TestTrim(t *testing.T) {
	rows := []uint{1, 2, 3, 4}
	id := func(v uint) uint { return v }

	page, next := Trim(rows, 3, id)
	assert.Equal(t, []uint{1, 2, 3}, page)
	cursor, err := ParseCursor(next)
	require.NoError(t, err)
	assert.Equal(t, uint(3), cursor.AfterID)

	page, next = Trim(rows[:2], 3, id)
	assert.Len(t, page, 2)
	assert.Empty(t, next)
}
