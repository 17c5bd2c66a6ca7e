package models

import "time"

// Joint names follow the MediaPipe pose landmark convention for the
// subset of joints the analysis needs.
const (
	JointLeftShoulder  = "left_shoulder"
	JointRightShoulder = "right_shoulder"
	JointLeftElbow     = "left_elbow"
	JointRightElbow    = "right_elbow"
	JointLeftWrist     = "left_wrist"
	JointRightWrist    = "right_wrist"
	JointLeftHip       = "left_hip"
	JointRightHip      = "right_hip"
	JointLeftKnee      = "left_knee"
	JointRightKnee     = "right_knee"
	JointLeftAnkle     = "left_ankle"
	JointRightAnkle    = "right_ankle"
)

type ShootingSide string

const (
	SideLeft  ShootingSide = "left"
	SideRight ShootingSide = "right"
)

// Joint prefixes a joint base name ("shoulder", "elbow", ...) with the
// shooting side.
func (s ShootingSide) Joint(name string) string {
	return string(s) + "_" + name
}

// Landmark is one tracked body keypoint for one frame: image-plane
// position in normalized coordinates plus the estimator's visibility
// confidence in [0,1].
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Visibility float64 `json:"visibility"`
}

// PoseFrame is one video frame's worth of landmark data. Frames arrive
// in order with a monotonically increasing index. The optional JPEG
// image is used for thumbnail extraction and is never persisted.
type PoseFrame struct {
	Index     int                 `json:"index"`
	Timestamp float64             `json:"timestamp"`
	Landmarks map[string]Landmark `json:"landmarks"`
	Image     []byte              `json:"image,omitempty"`
}

// MetricSample holds the biomechanical scalars derived from a single
// frame. Nil pointers mean the metric could not be computed for that
// frame (occluded joints) and must be treated as missing, not zero.
type MetricSample struct {
	ElbowAngle  *float64 `json:"elbow_angle,omitempty"`
	KneeBend    *float64 `json:"knee_bend,omitempty"`
	WristHeight *float64 `json:"wrist_height,omitempty"`
}

// ShotInterval identifies one candidate shot's temporal extent.
// Invariant: LoadFrame < ReleaseFrame.
type ShotInterval struct {
	LoadFrame    int `json:"load_frame"`
	ReleaseFrame int `json:"release_frame"`
}

// Frames returns the inclusive frame count of the interval.
func (si ShotInterval) Frames() int {
	return si.ReleaseFrame - si.LoadFrame + 1
}

// MissType is the coach-reported trajectory category for a missed shot.
type MissType string

const (
	MissShortLeft  MissType = "short-left"
	MissShortRight MissType = "short-right"
	MissLongLeft   MissType = "long-left"
	MissLongRight  MissType = "long-right"
)

// ShotFrame is one labeled, compressed thumbnail from a shot's motion.
type ShotFrame struct {
	Label       string `json:"label"`
	FrameNumber int    `json:"frame_number"`
	ImageBase64 string `json:"image_base64"`
}

// ShotRecord is the durable unit of analysis output for one shot.
// Metric pointers are nil when the underlying frame was missing joints;
// Made is nil when no make/miss signal was available.
type ShotRecord struct {
	ShotNumber int       `json:"shot_number"`
	Made       *bool     `json:"made"`
	MissType   *MissType `json:"miss_type"`

	ElbowAngleLoad     *float64 `json:"elbow_angle_load"`
	ElbowAngleRelease  *float64 `json:"elbow_angle_release"`
	WristHeightRelease *float64 `json:"wrist_height_release"`
	KneeBendLoad       *float64 `json:"knee_bend_load"`

	FormRating *int        `json:"form_rating"`
	Feedback   string      `json:"feedback"`
	KeyIssue   *string     `json:"key_issue,omitempty"`
	QuickCue   *string     `json:"quick_cue,omitempty"`
	Frames     []ShotFrame `json:"frames,omitempty"`
}

// Metrics collects the shot's four core measurements in the order the
// profile tracks them.
func (r *ShotRecord) Metrics() MetricVector {
	return MetricVector{
		ElbowAngleLoad:     r.ElbowAngleLoad,
		ElbowAngleRelease:  r.ElbowAngleRelease,
		WristHeightRelease: r.WristHeightRelease,
		KneeBendLoad:       r.KneeBendLoad,
	}
}

// MetricVector carries the four core metrics of one shot; fields are
// nil when unavailable.
type MetricVector struct {
	ElbowAngleLoad     *float64 `json:"elbow_angle_load"`
	ElbowAngleRelease  *float64 `json:"elbow_angle_release"`
	WristHeightRelease *float64 `json:"wrist_height_release"`
	KneeBendLoad       *float64 `json:"knee_bend_load"`
}

// MetricNames enumerates the profile metrics in canonical order.
var MetricNames = []string{
	"elbow_angle_load",
	"elbow_angle_release",
	"wrist_height_release",
	"knee_bend_load",
}

// Get returns the named metric, or nil when it is missing.
func (v MetricVector) Get(name string) *float64 {
	switch name {
	case "elbow_angle_load":
		return v.ElbowAngleLoad
	case "elbow_angle_release":
		return v.ElbowAngleRelease
	case "wrist_height_release":
		return v.WristHeightRelease
	case "knee_bend_load":
		return v.KneeBendLoad
	}
	return nil
}

// SessionSummary aggregates all ShotRecords from one video.
type SessionSummary struct {
	SessionID            string       `json:"session_id"`
	TotalShots           int          `json:"total_shots"`
	ShotsMade            int          `json:"shots_made"`
	ShotsMissed          int          `json:"shots_missed"`
	ShootingPercentage   float64      `json:"shooting_percentage"`
	AverageFormRating    *float64     `json:"average_form_rating"`
	SessionFeedback      string       `json:"session_feedback"`
	DrillSuggestions     []string     `json:"drill_suggestions"`
	PrimaryInconsistency string       `json:"primary_inconsistency,omitempty"`
	Shots                []ShotRecord `json:"shots"`
}

// PlayerContext is the player's self-reported background, forwarded to
// the coaching model for personalized narrative.
type PlayerContext struct {
	SkillLevel   string `json:"skill_level"`
	WorkingOn    string `json:"working_on,omitempty"`
	Limitations  string `json:"limitations,omitempty"`
	HeightInches int    `json:"height_inches,omitempty"`
}

// PlayerRecord is the persisted player row.
type PlayerRecord struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	SkillLevel   string    `json:"skill_level"`
	WorkingOn    string    `json:"working_on,omitempty"`
	Limitations  string    `json:"limitations,omitempty"`
	HeightInches int       `json:"height_inches,omitempty"`
	TotalShots   int       `json:"total_shots"`
	TotalMakes   int       `json:"total_makes"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
