// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"testing"
	"time"

	"github.com/Thermoquad/gyrostat/pkg/linewire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0 seconds"},
		{500 * time.Millisecond, "0 seconds"},
		{time.Second, "1 second"},
		{2 * time.Minute, "2 minutes"},
		{61 * time.Second, "1 minute and 1 second"},
		{time.Hour + time.Minute + time.Second, "1 hour, 1 minute, and 1 second"},
		{25 * time.Hour, "1 day and 1 hour"},
		{50*time.Hour + 3*time.Second, "2 days, 2 hours, and 3 seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatUptime(tt.d))
		})
	}
}

func TestEventLog(t *testing.T) {
	l := newEventLog(3)
	for i := range 5 {
		l.add(fmt.Sprintf("event %d", i), i == 4)
	}

	require.Len(t, l.entries, 3)
	assert.Equal(t, "event 2", l.entries[0].message)

	last := l.last(2)
	require.Len(t, last, 2)
	assert.Equal(t, "event 3", last[0].message)
	assert.True(t, last[1].isError)

	assert.Len(t, l.last(10), 3)
	assert.Contains(t, l.render(8, 60), "event 4")
}

func TestEventLog_Empty(t *testing.T) {
	l := newEventLog(3)
	assert.Empty(t, l.last(5))
	assert.Contains(t, l.render(8, 60), "no events yet")
}

func TestReadingBuffer(t *testing.T) {
	var b readingBuffer

	_, count, ok := b.take()
	assert.False(t, ok)
	assert.Zero(t, count)

	b.put(linewire.Reading{linewire.ChannelTilt: 1})
	b.put(linewire.Reading{linewire.ChannelTilt: 2})

	r, count, ok := b.take()
	require.True(t, ok)
	assert.Equal(t, uint64(2), count)
	assert.Equal(t, 2.0, r[linewire.ChannelTilt])

	_, _, ok = b.take()
	assert.False(t, ok, "a reading is only taken once")

	b.put(linewire.Reading{linewire.ChannelTilt: 3})
	b.reset()
	_, count, ok = b.take()
	assert.False(t, ok)
	assert.Equal(t, uint64(3), count)
}

func TestParseLEDList(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{in: "", want: nil},
		{in: "1,3", want: []int{1, 3}},
		{in: " 0 , 7 ", want: []int{0, 7}},
		{in: "x", wantErr: true},
		{in: "8", wantErr: true},
		{in: "1,,2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			mask, err := parseLEDList(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, mask.Indices())
		})
	}
}
