package classtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	tests := []struct {
		name      string
		date      string
		timeOfDay string
		loc       *time.Location
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "morning class in UTC",
			date:      "2016-05-02",
			timeOfDay: "5:30am-6:30am",
			loc:       time.UTC,
			wantStart: time.Date(2016, 5, 2, 5, 30, 0, 0, time.UTC),
			wantEnd:   time.Date(2016, 5, 2, 6, 30, 0, 0, time.UTC),
		},
		{
			name:      "spaced and upper case",
			date:      "2016-05-02",
			timeOfDay: "6:00 PM - 7:15 PM",
			loc:       time.UTC,
			wantStart: time.Date(2016, 5, 2, 18, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2016, 5, 2, 19, 15, 0, 0, time.UTC),
		},
		{
			name:      "local time zone",
			date:      "2016-05-02",
			timeOfDay: "9am-10am",
			loc:       chicago,
			wantStart: time.Date(2016, 5, 2, 14, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2016, 5, 2, 15, 0, 0, 0, time.UTC),
		},
		{
			name:      "past midnight",
			date:      "2016-05-02",
			timeOfDay: "11:00pm-12:30am",
			loc:       time.UTC,
			wantStart: time.Date(2016, 5, 2, 23, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2016, 5, 3, 0, 30, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := Build(tt.date, tt.timeOfDay, tt.loc)
			require.NoError(t, err)
			assert.True(t, tt.wantStart.Equal(start), "start %s", start)
			assert.True(t, tt.wantEnd.Equal(end), "end %s", end)
		})
	}
}

func TestBuild_Invalid(t *testing.T) {
	_, _, err := Build("not a date", "5:30am-6:30am", time.UTC)
	assert.Error(t, err)

	_, _, err = Build("2016-05-02", "5:30am", time.UTC)
	assert.Error(t, err)

	_, _, err = Build("2016-05-02", "soon-later", time.UTC)
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	for _, in := range []string{"2016-05-02", "Monday, May 2, 2016", "May 2, 2016", "05/02/2016"} {
		got, err := ParseDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, "2016-05-02", got, in)
	}

	_, err := ParseDate("yesterday")
	assert.Error(t, err)
}
