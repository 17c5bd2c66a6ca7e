package pose

import (
	"errors"
	"math"

	"github.com/Akash-Srinivasan/ShotDoctor/server/models"
)

// ErrJointNotVisible is returned when a required joint's visibility
// confidence is below the calculator's threshold. Callers must treat
// the metric as missing data, never as zero.
var ErrJointNotVisible = errors.New("required joint not visible")

// Calculator derives biomechanical scalars from pose landmarks. It is
// stateless; the zero threshold means "accept any visibility".
type Calculator struct {
	MinVisibility float64
	Side          models.ShootingSide
}

func NewCalculator(side models.ShootingSide, minVisibility float64) *Calculator {
	return &Calculator{Side: side, MinVisibility: minVisibility}
}

// joint fetches a landmark and enforces the visibility threshold.
func (c *Calculator) joint(frame *models.PoseFrame, name string) (models.Landmark, error) {
	lm, ok := frame.Landmarks[c.Side.Joint(name)]
	if !ok || lm.Visibility < c.MinVisibility {
		return models.Landmark{}, ErrJointNotVisible
	}
	return lm, nil
}

// Angle computes the angle in degrees at vertex b formed by the
// vectors b→a and b→c, clamped to [0, 180].
func Angle(a, b, c models.Landmark) float64 {
	v1x, v1y := a.X-b.X, a.Y-b.Y
	v2x, v2y := c.X-b.X, c.Y-b.Y

	dot := v1x*v2x + v1y*v2y
	norm := math.Hypot(v1x, v1y) * math.Hypot(v2x, v2y)
	if norm == 0 {
		return 0
	}
	cos := dot / norm
	cos = math.Max(-1, math.Min(1, cos))
	deg := math.Acos(cos) * 180 / math.Pi
	return math.Max(0, math.Min(180, deg))
}

// ElbowAngle is the shoulder–elbow–wrist angle on the shooting side.
func (c *Calculator) ElbowAngle(frame *models.PoseFrame) (float64, error) {
	shoulder, err := c.joint(frame, "shoulder")
	if err != nil {
		return 0, err
	}
	elbow, err := c.joint(frame, "elbow")
	if err != nil {
		return 0, err
	}
	wrist, err := c.joint(frame, "wrist")
	if err != nil {
		return 0, err
	}
	return Angle(shoulder, elbow, wrist), nil
}

// KneeBend is the hip–knee–ankle angle on the shooting side.
func (c *Calculator) KneeBend(frame *models.PoseFrame) (float64, error) {
	hip, err := c.joint(frame, "hip")
	if err != nil {
		return 0, err
	}
	knee, err := c.joint(frame, "knee")
	if err != nil {
		return 0, err
	}
	ankle, err := c.joint(frame, "ankle")
	if err != nil {
		return 0, err
	}
	return Angle(hip, knee, ankle), nil
}

// WristHeight is the wrist's height above the shoulder, normalized by
// the shoulder-to-hip distance so the value is comparable across
// camera distances. Positive means the wrist is above the shoulder
// (image y grows downward).
func (c *Calculator) WristHeight(frame *models.PoseFrame) (float64, error) {
	wrist, err := c.joint(frame, "wrist")
	if err != nil {
		return 0, err
	}
	shoulder, err := c.joint(frame, "shoulder")
	if err != nil {
		return 0, err
	}
	hip, err := c.joint(frame, "hip")
	if err != nil {
		return 0, err
	}

	bodyScale := math.Abs(shoulder.Y - hip.Y)
	if bodyScale < 1e-4 {
		return 0, ErrJointNotVisible
	}
	return (shoulder.Y - wrist.Y) / bodyScale, nil
}

// WristAboveShoulder reports whether the wrist is higher than the
// shoulder in image coordinates.
func (c *Calculator) WristAboveShoulder(frame *models.PoseFrame) (bool, error) {
	wrist, err := c.joint(frame, "wrist")
	if err != nil {
		return false, err
	}
	shoulder, err := c.joint(frame, "shoulder")
	if err != nil {
		return false, err
	}
	return wrist.Y < shoulder.Y, nil
}

// Sample computes all metrics for one frame, leaving individual fields
// nil when their joints are occluded.
func (c *Calculator) Sample(frame *models.PoseFrame) models.MetricSample {
	var s models.MetricSample
	if v, err := c.ElbowAngle(frame); err == nil {
		s.ElbowAngle = &v
	}
	if v, err := c.KneeBend(frame); err == nil {
		s.KneeBend = &v
	}
	if v, err := c.WristHeight(frame); err == nil {
		s.WristHeight = &v
	}
	return s
}
