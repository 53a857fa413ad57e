package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLabels(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	rotating := NewRotatingLabel(ts)
	retired := NewRetiredLabel(ts)

	assert.Equal(t, "rotating::1773480413", rotating)
	assert.Equal(t, "retired::1773480413000000000", retired)

	assert.True(t, IsRotatingLabel(rotating))
	assert.False(t, IsRotatingLabel(retired))
	assert.True(t, IsRetiredLabel(retired))
	assert.False(t, IsRetiredLabel(LabelActive))
}

func TestRetiredLabelsInSameSecondDiffer(t *testing.T) {
	// Two retirements within one second (force-new right after a finalize,
	// for example) must not collide on the label unique index.
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	first := NewRetiredLabel(ts)
	second := NewRetiredLabel(ts.Add(time.Millisecond))

	assert.NotEqual(t, first, second)
	assert.True(t, IsRetiredLabel(first))
	assert.True(t, IsRetiredLabel(second))
}

func TestValidLabel(t *testing.T) {
	tests := []struct {
		label string
		want  bool
	}{
		{"active", true},
		{"rotating::1773480413", true},
		{"retired::1773480413", true},
		{"", false},
		{"primary", false},
		{"rotating", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidLabel(tt.label), "label %q", tt.label)
	}
}
