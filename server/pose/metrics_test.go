package pose

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Akash-Srinivasan/ShotDoctor/server/models"
)

func frameWith(landmarks map[string]models.Landmark) *models.PoseFrame {
	return &models.PoseFrame{Index: 0, Landmarks: landmarks}
}

func lm(x, y float64) models.Landmark {
	return models.Landmark{X: x, Y: y, Visibility: 1}
}

func TestAngle(t *testing.T) {
	tests := []struct {
		name    string
		a, b, c models.Landmark
		want    float64
	}{
		{"right angle", lm(1, 0), lm(0, 0), lm(0, 1), 90},
		{"straight line", lm(-1, 0), lm(0, 0), lm(1, 0), 180},
		{"collapsed", lm(1, 0), lm(0, 0), lm(1, 0), 0},
		{"forty five", lm(1, 0), lm(0, 0), lm(1, 1), 45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Angle(tt.a, tt.b, tt.c)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestAngleDegenerateVertex(t *testing.T) {
	// Zero-length vector at the vertex must not produce NaN.
	got := Angle(lm(0, 0), lm(0, 0), lm(1, 1))
	assert.False(t, math.IsNaN(got))
	assert.Equal(t, 0.0, got)
}

func TestElbowAngle(t *testing.T) {
	calc := NewCalculator(models.SideRight, 0.5)

	frame := frameWith(map[string]models.Landmark{
		models.JointRightShoulder: lm(0, 0),
		models.JointRightElbow:    lm(0, 1),
		models.JointRightWrist:    lm(1, 1),
	})

	angle, err := calc.ElbowAngle(frame)
	require.NoError(t, err)
	assert.InDelta(t, 90, angle, 1e-9)
}

func TestElbowAngleUsesShootingSide(t *testing.T) {
	calc := NewCalculator(models.SideLeft, 0.5)

	// Only right-side joints present; a left-handed calculator must not
	// silently use them.
	frame := frameWith(map[string]models.Landmark{
		models.JointRightShoulder: lm(0, 0),
		models.JointRightElbow:    lm(0, 1),
		models.JointRightWrist:    lm(1, 1),
	})

	_, err := calc.ElbowAngle(frame)
	assert.ErrorIs(t, err, ErrJointNotVisible)
}

func TestVisibilityGate(t *testing.T) {
	calc := NewCalculator(models.SideRight, 0.5)

	frame := frameWith(map[string]models.Landmark{
		models.JointRightShoulder: lm(0, 0),
		models.JointRightElbow:    {X: 0, Y: 1, Visibility: 0.4},
		models.JointRightWrist:    lm(1, 1),
	})

	_, err := calc.ElbowAngle(frame)
	assert.ErrorIs(t, err, ErrJointNotVisible)

	// At exactly the threshold the joint counts as visible.
	frame.Landmarks[models.JointRightElbow] = models.Landmark{X: 0, Y: 1, Visibility: 0.5}
	_, err = calc.ElbowAngle(frame)
	assert.NoError(t, err)
}

func TestWristHeight(t *testing.T) {
	calc := NewCalculator(models.SideRight, 0.5)

	// Torso spans 0.3 in normalized units; wrist is 0.15 above the
	// shoulder, so the normalized height is 0.5.
	frame := frameWith(map[string]models.Landmark{
		models.JointRightWrist:    lm(0.5, 0.25),
		models.JointRightShoulder: lm(0.5, 0.40),
		models.JointRightHip:      lm(0.5, 0.70),
	})

	height, err := calc.WristHeight(frame)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, height, 1e-9)
}

func TestWristHeightBelowShoulderIsNegative(t *testing.T) {
	calc := NewCalculator(models.SideRight, 0.5)

	frame := frameWith(map[string]models.Landmark{
		models.JointRightWrist:    lm(0.5, 0.55),
		models.JointRightShoulder: lm(0.5, 0.40),
		models.JointRightHip:      lm(0.5, 0.70),
	})

	height, err := calc.WristHeight(frame)
	require.NoError(t, err)
	assert.Less(t, height, 0.0)
}

func TestWristAboveShoulder(t *testing.T) {
	calc := NewCalculator(models.SideRight, 0.5)

	frame := frameWith(map[string]models.Landmark{
		models.JointRightWrist:    lm(0.5, 0.2),
		models.JointRightShoulder: lm(0.5, 0.4),
	})

	up, err := calc.WristAboveShoulder(frame)
	require.NoError(t, err)
	assert.True(t, up)

	frame.Landmarks[models.JointRightWrist] = lm(0.5, 0.6)
	up, err = calc.WristAboveShoulder(frame)
	require.NoError(t, err)
	assert.False(t, up)
}

func TestSamplePartialOcclusion(t *testing.T) {
	calc := NewCalculator(models.SideRight, 0.5)

	// Arm fully visible, legs missing: elbow angle present, knee bend
	// nil, never zero.
	frame := frameWith(map[string]models.Landmark{
		models.JointRightShoulder: lm(0.5, 0.40),
		models.JointRightElbow:    lm(0.5, 0.55),
		models.JointRightWrist:    lm(0.6, 0.55),
		models.JointRightHip:      lm(0.5, 0.70),
	})

	sample := calc.Sample(frame)
	assert.NotNil(t, sample.ElbowAngle)
	assert.Nil(t, sample.KneeBend)
	assert.NotNil(t, sample.WristHeight)
}
