package remotesync

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIndex(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr error
	}{
		{raw: `1`, want: 1},
		{raw: `"1"`, want: 1},
		{raw: `" 2 "`, want: 2},
		{raw: `3.0`, want: 3},
		{raw: `-1`, want: -1},
		{raw: `null`, wantErr: ErrNoValue},
		{raw: ``, wantErr: ErrNoValue},
		{raw: `1.5`, wantErr: ErrInvalidRemoteValue},
		{raw: `""`, wantErr: ErrInvalidRemoteValue},
		{raw: `"seven"`, wantErr: ErrInvalidRemoteValue},
		{raw: `false`, wantErr: ErrInvalidRemoteValue},
		{raw: `[1]`, wantErr: ErrInvalidRemoteValue},
		{raw: `1e12`, wantErr: ErrInvalidRemoteValue},
		{raw: `{`, wantErr: ErrInvalidRemoteValue},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseIndex(json.RawMessage(tt.raw))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSample(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan int, 8)
	out := sample(ctx, in, 20*time.Millisecond)

	in <- 1
	in <- 2
	in <- 3
	select {
	case v := <-out:
		assert.Equal(t, 3, v)
	case <-time.After(time.Second):
		t.Fatal("no sampled value")
	}

	// Nothing new: no emission on the following ticks.
	select {
	case v := <-out:
		t.Fatalf("unexpected value %d", v)
	case <-time.After(60 * time.Millisecond):
	}

	in <- 4
	select {
	case v := <-out:
		assert.Equal(t, 4, v)
	case <-time.After(time.Second):
		t.Fatal("no sampled value")
	}

	close(in)
	_, ok := <-out
	assert.False(t, ok, "output closes with input")
}

func TestSample_StopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	out := sample(ctx, make(chan int), time.Hour)
	cancel()

	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("sampler did not stop")
	}
}
