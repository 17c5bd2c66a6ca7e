package session

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Akash-Srinivasan/ShotDoctor/server/models"
	"github.com/Akash-Srinivasan/ShotDoctor/server/pose"
	"github.com/Akash-Srinivasan/ShotDoctor/server/segmenter"
)

func testJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func newTestBuilder() *RecordBuilder {
	calc := pose.NewCalculator(models.SideRight, 0.5)
	return NewRecordBuilder(calc, nil, 200, zap.NewNop())
}

func TestCaptureFramesLabelsAndOrder(t *testing.T) {
	builder := newTestBuilder()

	frames := make(map[int]*models.PoseFrame)
	for idx := 0; idx <= 70; idx++ {
		frame := poseAt(idx, 90)
		frames[idx] = &frame
	}
	lookup := func(idx int) *models.PoseFrame { return frames[idx] }

	captured := builder.CaptureFrames(models.ShotInterval{LoadFrame: 0, ReleaseFrame: 70}, lookup)
	require.Len(t, captured, segmenter.SampleCount)

	assert.Equal(t, "1_Load", captured[0].Label)
	assert.Equal(t, 0, captured[0].FrameNumber)
	assert.Equal(t, "8_Release", captured[7].Label)
	assert.Equal(t, 70, captured[7].FrameNumber)

	for i := 1; i < len(captured); i++ {
		assert.Greater(t, captured[i].FrameNumber, captured[i-1].FrameNumber)
	}
}

func TestCaptureFramesShortInterval(t *testing.T) {
	builder := newTestBuilder()

	frames := make(map[int]*models.PoseFrame)
	for idx := 10; idx <= 13; idx++ {
		frame := poseAt(idx, 90)
		frames[idx] = &frame
	}
	lookup := func(idx int) *models.PoseFrame { return frames[idx] }

	captured := builder.CaptureFrames(models.ShotInterval{LoadFrame: 10, ReleaseFrame: 13}, lookup)
	assert.Len(t, captured, 4)
	assert.Equal(t, "1_Load", captured[0].Label)
}

func TestCaptureFramesCompressesThumbnails(t *testing.T) {
	builder := newTestBuilder()

	big := testJPEG(t, 320, 640)
	lookup := func(idx int) *models.PoseFrame {
		frame := poseAt(idx, 90)
		frame.Image = big
		return &frame
	}

	captured := builder.CaptureFrames(models.ShotInterval{LoadFrame: 0, ReleaseFrame: 70}, lookup)
	require.Len(t, captured, segmenter.SampleCount)

	for _, sf := range captured {
		require.NotEmpty(t, sf.ImageBase64)
		data, err := base64.StdEncoding.DecodeString(sf.ImageBase64)
		require.NoError(t, err)
		img, _, err := image.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.LessOrEqual(t, img.Bounds().Dy(), 200)
		// Aspect ratio is preserved.
		assert.Equal(t, img.Bounds().Dy()/2, img.Bounds().Dx())
	}
}

func TestCaptureFramesMissingImage(t *testing.T) {
	builder := newTestBuilder()

	lookup := func(idx int) *models.PoseFrame {
		frame := poseAt(idx, 90)
		return &frame
	}

	captured := builder.CaptureFrames(models.ShotInterval{LoadFrame: 0, ReleaseFrame: 70}, lookup)
	require.Len(t, captured, segmenter.SampleCount)
	for _, sf := range captured {
		assert.Empty(t, sf.ImageBase64)
	}
}

func TestMeasureShotLoadAndReleaseDistinct(t *testing.T) {
	builder := newTestBuilder()

	load := poseAt(13, 40)
	release := poseAt(17, 165)
	lookup := func(idx int) *models.PoseFrame {
		switch idx {
		case 13:
			return &load
		case 17:
			return &release
		}
		return nil
	}

	v := builder.MeasureShot(models.ShotInterval{LoadFrame: 13, ReleaseFrame: 17}, lookup)

	require.NotNil(t, v.ElbowAngleLoad)
	assert.InDelta(t, 40, *v.ElbowAngleLoad, 1.0)
	require.NotNil(t, v.ElbowAngleRelease)
	assert.InDelta(t, 165, *v.ElbowAngleRelease, 1.0)
	require.NotNil(t, v.KneeBendLoad)
	require.NotNil(t, v.WristHeightRelease)
	assert.Greater(t, *v.WristHeightRelease, 0.0)
}

func TestMeasureShotMissingFrames(t *testing.T) {
	builder := newTestBuilder()

	v := builder.MeasureShot(models.ShotInterval{LoadFrame: 1, ReleaseFrame: 5},
		func(int) *models.PoseFrame { return nil })

	assert.Nil(t, v.ElbowAngleLoad)
	assert.Nil(t, v.ElbowAngleRelease)
	assert.Nil(t, v.WristHeightRelease)
	assert.Nil(t, v.KneeBendLoad)
}
