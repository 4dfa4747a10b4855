package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keagan/camstitch/internal/clips"
)

var half = Size{Width: 960, Height: 540}

func TestPlanStrategyBySetSize(t *testing.T) {
	p := NewPlanner(DefaultCanvas)

	tests := []struct {
		angles []clips.Angle
		want   Strategy
	}{
		{[]clips.Angle{clips.AngleFront}, OneUp},
		{[]clips.Angle{clips.AngleFront, clips.AngleBack}, SideBySide},
		{[]clips.Angle{clips.AngleFront, clips.AngleBack, clips.AngleLeftRepeater}, Grid},
		{clips.KnownAngles, Grid},
	}
	for _, tt := range tests {
		plan, err := p.Plan(tt.angles)
		require.NoError(t, err)
		assert.Equal(t, tt.want, plan.Strategy, "angles=%v", tt.angles)
		assert.Equal(t, DefaultCanvas, plan.Canvas)
	}
}

func TestPlanEmptyFails(t *testing.T) {
	_, err := NewPlanner(DefaultCanvas).Plan(nil)
	assert.ErrorIs(t, err, ErrNoAngles)
}

func TestPlanOneUpFillsCanvas(t *testing.T) {
	plan, err := NewPlanner(DefaultCanvas).Plan([]clips.Angle{clips.AngleBack})
	require.NoError(t, err)
	require.Len(t, plan.Placements, 1)
	assert.Equal(t, Placement{Angle: clips.AngleBack, X: 0, Y: 0, Size: DefaultCanvas}, plan.Placements[0])
}

func TestPlanSideBySideIsAlphabetical(t *testing.T) {
	plan, err := NewPlanner(DefaultCanvas).Plan([]clips.Angle{clips.AngleFront, clips.AngleBack})
	require.NoError(t, err)

	assert.Equal(t, []Placement{
		{Angle: clips.AngleBack, X: 0, Y: 270, Size: half},
		{Angle: clips.AngleFront, X: 960, Y: 270, Size: half},
	}, plan.Placements)
}

func TestPlanSideBySideWithUnknownAngle(t *testing.T) {
	plan, err := NewPlanner(DefaultCanvas).Plan([]clips.Angle{clips.AngleUnknown, clips.AngleRightRepeater})
	require.NoError(t, err)
	require.Len(t, plan.Placements, 2)
	assert.Equal(t, clips.AngleRightRepeater, plan.Placements[0].Angle)
	assert.Equal(t, clips.AngleUnknown, plan.Placements[1].Angle)
}

func TestPlanGridFullTable(t *testing.T) {
	plan, err := NewPlanner(DefaultCanvas).Plan([]clips.Angle{
		clips.AngleLeftRepeater, clips.AngleRightRepeater, clips.AngleBack, clips.AngleFront,
	})
	require.NoError(t, err)

	assert.Equal(t, []Placement{
		{Angle: clips.AngleFront, X: 0, Y: 0, Size: half},
		{Angle: clips.AngleBack, X: 960, Y: 0, Size: half},
		{Angle: clips.AngleRightRepeater, X: 0, Y: 540, Size: half},
		{Angle: clips.AngleLeftRepeater, X: 960, Y: 540, Size: half},
	}, plan.Placements)
}

func TestPlanGridLeavesAbsentSlotsEmpty(t *testing.T) {
	plan, err := NewPlanner(DefaultCanvas).Plan([]clips.Angle{
		clips.AngleFront, clips.AngleLeftRepeater, clips.AngleUnknown,
	})
	require.NoError(t, err)
	assert.Equal(t, Grid, plan.Strategy)

	front, ok := plan.Placement(clips.AngleFront)
	require.True(t, ok)
	assert.Equal(t, 0, front.X)
	assert.Equal(t, 0, front.Y)

	left, ok := plan.Placement(clips.AngleLeftRepeater)
	require.True(t, ok)
	assert.Equal(t, 960, left.X)
	assert.Equal(t, 540, left.Y)

	for _, a := range []clips.Angle{clips.AngleBack, clips.AngleRightRepeater, clips.AngleUnknown} {
		_, ok := plan.Placement(a)
		assert.False(t, ok, a)
	}
}

func TestPlanIgnoresRepeatedAngles(t *testing.T) {
	plan, err := NewPlanner(DefaultCanvas).Plan([]clips.Angle{clips.AngleFront, clips.AngleFront})
	require.NoError(t, err)
	assert.Equal(t, OneUp, plan.Strategy)
}

func TestPlannerCustomCanvas(t *testing.T) {
	plan, err := NewPlanner(Size{Width: 1280, Height: 720}).Plan([]clips.Angle{clips.AngleFront, clips.AngleBack})
	require.NoError(t, err)
	assert.Equal(t, Placement{Angle: clips.AngleFront, X: 640, Y: 180, Size: Size{Width: 640, Height: 360}}, plan.Placements[1])
}
