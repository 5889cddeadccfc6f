package generic_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/homecare-engine/generic"
)

func TestDate_ParseAndCompare(t *testing.T) {
	d := generic.MustParseDate("2024-02-28")
	assert.Equal(t, "2024-02-29", d.AddDays(1).String())
	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.BeforeOrEqual(d))
	assert.True(t, d.AfterOrEqual(d))
	assert.True(t, d.Equal(generic.NewDate(2024, time.February, 28)))

	_, err := generic.ParseDate("28/02/2024")
	assert.Error(t, err)
}

func TestDateOf_TruncatesToUTCDay(t *testing.T) {
	ts := time.Date(2025, 3, 1, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "2025-03-01", generic.DateOf(ts).String())
}

func TestDate_JSON(t *testing.T) {
	type wrapper struct {
		AsOf generic.Date `json:"as_of"`
	}

	data, err := json.Marshal(wrapper{AsOf: generic.MustParseDate("2025-01-31")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"as_of":"2025-01-31"}`, string(data))

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"as_of":"2024-06-01"}`), &w))
	assert.Equal(t, "2024-06-01", w.AsOf.String())

	zero, err := json.Marshal(wrapper{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"as_of":null}`, string(zero))

	assert.Error(t, json.Unmarshal([]byte(`{"as_of":"June 1"}`), &w))
}

func TestWindow_Contains(t *testing.T) {
	from := generic.MustParseDate("2024-01-01")
	to := generic.MustParseDate("2024-12-31")

	closed := generic.Window{From: from, To: &to}
	assert.True(t, closed.Contains(from), "start is inclusive")
	assert.True(t, closed.Contains(to), "end is inclusive")
	assert.False(t, closed.Contains(to.AddDays(1)))
	assert.False(t, closed.Contains(from.AddDays(-1)))

	open := generic.Window{From: from}
	assert.True(t, open.IsOpen())
	assert.True(t, open.Contains(generic.MustParseDate("2099-01-01")))
}

func TestWindow_Overlaps(t *testing.T) {
	jan := generic.MustParseDate("2024-01-01")
	jun := generic.MustParseDate("2024-06-30")
	jul := generic.MustParseDate("2024-07-01")

	first := generic.Window{From: jan, To: &jun}
	assert.False(t, first.Overlaps(generic.Window{From: jul}))
	assert.True(t, first.Overlaps(generic.Window{From: jun}), "shared last day")
	assert.True(t, generic.Window{From: jan}.Overlaps(generic.Window{From: jul}))
}

func TestWindow_Validate(t *testing.T) {
	from := generic.MustParseDate("2024-06-01")
	before := from.AddDays(-1)

	assert.NoError(t, generic.Window{From: from, To: &from}.Validate())
	assert.ErrorIs(t, generic.Window{From: from, To: &before}.Validate(), generic.ErrInvalidWindow)
	assert.ErrorIs(t, generic.Window{}.Validate(), generic.ErrInvalidWindow)
}
