package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateValueAndScan(t *testing.T) {
	d := MustDate("2024-03-01")

	value, err := d.Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", value)

	var fromTime Date
	require.NoError(t, fromTime.Scan(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, fromTime.Equal(d.Time))

	var fromText Date
	require.NoError(t, fromText.Scan([]byte("2024-03-01 00:00:00+00:00")))
	assert.Equal(t, "2024-03-01", fromText.String())

	var fromNil Date
	require.NoError(t, fromNil.Scan(nil))
	assert.True(t, fromNil.IsZero())

	zeroValue, err := Date{}.Value()
	require.NoError(t, err)
	assert.Nil(t, zeroValue)

	require.Error(t, new(Date).Scan(42))
}

func TestDateArithmetic(t *testing.T) {
	start := MustDate("2024-01-30")
	assert.Equal(t, "2024-02-09", start.AddDays(10).String())
	assert.True(t, start.Before(start.AddDays(1)))
	assert.True(t, start.AddDays(1).After(start))
	assert.False(t, start.Before(start))
}

func TestParseDateRejectsGarbage(t *testing.T) {
	_, err := ParseDate("01/02/2024")
	require.Error(t, err)
}

func TestDateJSON(t *testing.T) {
	payload, err := json.Marshal(struct {
		Alta Date `json:"alta"`
		Baja Date `json:"baja"`
	}{Alta: MustDate("2023-09-15")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"alta":"2023-09-15","baja":null}`, string(payload))

	var decoded struct {
		Alta Date `json:"alta"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"alta":"2023-09-15"}`), &decoded))
	assert.Equal(t, "2023-09-15", decoded.Alta.String())
}
