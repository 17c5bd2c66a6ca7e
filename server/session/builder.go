package session

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/jpeg"

	"github.com/Akash-Srinivasan/ShotDoctor/server/coach"
	"github.com/Akash-Srinivasan/ShotDoctor/server/models"
	"github.com/Akash-Srinivasan/ShotDoctor/server/pose"
	"github.com/Akash-Srinivasan/ShotDoctor/server/profile"
	"github.com/Akash-Srinivasan/ShotDoctor/server/segmenter"
	"github.com/nfnt/resize"
	"go.uber.org/zap"
)

// ThumbnailJPEGQuality bounds the size of frames sent to the coaching
// model and returned in the session report.
const ThumbnailJPEGQuality = 80

// RecordBuilder turns a segmented shot into a ShotRecord: metrics at
// the load and release frames specifically, compressed thumbnails, and
// the coach's verdict. A made shot also feeds the player's profile.
type RecordBuilder struct {
	calc            *pose.Calculator
	model           coach.Model
	logger          *zap.Logger
	thumbnailHeight int
}

func NewRecordBuilder(calc *pose.Calculator, model coach.Model, thumbnailHeight int, logger *zap.Logger) *RecordBuilder {
	if thumbnailHeight <= 0 {
		thumbnailHeight = 200
	}
	return &RecordBuilder{
		calc:            calc,
		model:           model,
		logger:          logger,
		thumbnailHeight: thumbnailHeight,
	}
}

// CaptureFrames samples the interval and compresses the selected
// frames. Frames without image data still appear in the output with an
// empty image so the sampler's ordering contract holds.
func (b *RecordBuilder) CaptureFrames(interval models.ShotInterval, lookup func(int) *models.PoseFrame) []models.ShotFrame {
	indices := segmenter.SampleInterval(interval)
	frames := make([]models.ShotFrame, 0, len(indices))

	for i, idx := range indices {
		label := ""
		if i < len(segmenter.FrameLabels) {
			label = segmenter.FrameLabels[i]
		}
		sf := models.ShotFrame{Label: label, FrameNumber: idx}
		if frame := lookup(idx); frame != nil && len(frame.Image) > 0 {
			if thumb, err := b.compress(frame.Image); err == nil {
				sf.ImageBase64 = base64.StdEncoding.EncodeToString(thumb)
			} else {
				b.logger.Warn("Failed to compress shot frame",
					zap.Int("frame", idx), zap.Error(err))
			}
		}
		frames = append(frames, sf)
	}
	return frames
}

// compress scales a JPEG down to the bounded height, preserving aspect
// ratio.
func (b *RecordBuilder) compress(jpegData []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(jpegData))
	if err != nil {
		return nil, err
	}
	if img.Bounds().Dy() > b.thumbnailHeight {
		img = resize.Resize(0, uint(b.thumbnailHeight), img, resize.Lanczos3)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: ThumbnailJPEGQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MeasureShot computes the load-frame and release-frame metrics for an
// interval. Load-frame elbow/knee and release-frame elbow/wrist are
// distinct measurements and are never averaged across the interval.
func (b *RecordBuilder) MeasureShot(interval models.ShotInterval, lookup func(int) *models.PoseFrame) models.MetricVector {
	var v models.MetricVector

	if load := lookup(interval.LoadFrame); load != nil {
		if angle, err := b.calc.ElbowAngle(load); err == nil {
			v.ElbowAngleLoad = &angle
		}
		if bend, err := b.calc.KneeBend(load); err == nil {
			v.KneeBendLoad = &bend
		}
	}
	if release := lookup(interval.ReleaseFrame); release != nil {
		if angle, err := b.calc.ElbowAngle(release); err == nil {
			v.ElbowAngleRelease = &angle
		}
		if height, err := b.calc.WristHeight(release); err == nil {
			v.WristHeightRelease = &height
		}
	}
	return v
}

// Build calls the coaching model and assembles the final ShotRecord.
// A failed or malformed coach call degrades to null verdict fields and
// fallback feedback; the shot is never dropped from the session. On a
// confirmed make the metrics fold into the player's form profile.
func (b *RecordBuilder) Build(ctx context.Context, job *shotJob, prof *profile.FormProfile, player *models.PlayerContext) *models.ShotRecord {
	record := &models.ShotRecord{
		ShotNumber:         job.ShotNumber,
		ElbowAngleLoad:     job.Metrics.ElbowAngleLoad,
		ElbowAngleRelease:  job.Metrics.ElbowAngleRelease,
		WristHeightRelease: job.Metrics.WristHeightRelease,
		KneeBendLoad:       job.Metrics.KneeBendLoad,
		Frames:             job.Frames,
		Feedback:           coach.FallbackFeedback,
	}

	request := &coach.ShotRequest{
		ShotNumber: job.ShotNumber,
		Frames:     job.Frames,
		Metrics:    job.Metrics,
		Player:     player,
	}
	if prof != nil {
		if deviations, err := prof.Compare(job.Metrics); err == nil {
			request.Deviations = deviations
		} else if !errors.Is(err, profile.ErrInsufficientData) {
			b.logger.Warn("Profile comparison failed", zap.Error(err))
		}
	}

	response, err := b.model.AnalyzeShot(ctx, request)
	if err != nil {
		b.logger.Warn("Coach analysis failed, recording shot without verdict",
			zap.Int("shot", job.ShotNumber), zap.Error(err))
		return record
	}

	record.Made = response.Made
	record.MissType = response.MissType
	record.FormRating = response.FormRating
	record.KeyIssue = response.KeyIssue
	record.QuickCue = response.QuickCue
	if response.Feedback != "" {
		record.Feedback = response.Feedback
	}

	if prof != nil && record.Made != nil && *record.Made {
		prof.Update(job.Metrics)
	}

	return record
}
