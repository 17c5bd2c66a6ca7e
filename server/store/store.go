package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/Akash-Srinivasan/ShotDoctor/server/community"
	"github.com/Akash-Srinivasan/ShotDoctor/server/models"
	"github.com/Akash-Srinivasan/ShotDoctor/server/profile"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps the SQLite database holding players, sessions, shots and
// form profiles.
type Store struct {
	conn *sql.DB
}

// Open opens (or creates) the database at the given path and applies
// the schema.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

// CreatePlayer inserts a player row and returns its id.
func (s *Store) CreatePlayer(ctx context.Context, name string, pc models.PlayerContext) (int64, error) {
	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO players (name, skill_level, working_on, limitations, height_inches)
		VALUES (?, ?, ?, ?, ?)`,
		name, defaultSkill(pc.SkillLevel), nullString(pc.WorkingOn), nullString(pc.Limitations), nullInt(pc.HeightInches))
	if err != nil {
		return 0, fmt.Errorf("insert player: %w", err)
	}
	return res.LastInsertId()
}

func defaultSkill(level string) string {
	if level == "" {
		return "intermediate"
	}
	return level
}

// GetPlayer fetches one player, or nil when the id is unknown.
func (s *Store) GetPlayer(ctx context.Context, id int64) (*models.PlayerRecord, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, name, skill_level, COALESCE(working_on, ''), COALESCE(limitations, ''),
		       COALESCE(height_inches, 0), total_shots, total_makes, created_at, updated_at
		FROM players WHERE id = ?`, id)

	var p models.PlayerRecord
	err := row.Scan(&p.ID, &p.Name, &p.SkillLevel, &p.WorkingOn, &p.Limitations,
		&p.HeightInches, &p.TotalShots, &p.TotalMakes, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get player: %w", err)
	}
	return &p, nil
}

// SaveSession persists a finished session and all of its shots in one
// transaction, then refreshes the player's lifetime counters.
// Thumbnail frames are transient and are not persisted.
func (s *Store) SaveSession(ctx context.Context, playerID int64, summary *models.SessionSummary) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, player_id, shot_count, make_count, shooting_pct, avg_rating, feedback, primary_inconsistency)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.SessionID, playerID, summary.TotalShots, summary.ShotsMade,
		summary.ShootingPercentage, summary.AverageFormRating,
		summary.SessionFeedback, nullString(summary.PrimaryInconsistency))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for i := range summary.Shots {
		shot := &summary.Shots[i]
		_, err = tx.ExecContext(ctx, `
			INSERT INTO shots (session_id, player_id, shot_number, made, miss_type,
				elbow_angle_load, elbow_angle_release, wrist_height_release, knee_bend_load,
				form_rating, feedback, key_issue, quick_cue)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			summary.SessionID, playerID, shot.ShotNumber, shot.Made, shot.MissType,
			shot.ElbowAngleLoad, shot.ElbowAngleRelease, shot.WristHeightRelease, shot.KneeBendLoad,
			shot.FormRating, shot.Feedback, shot.KeyIssue, shot.QuickCue)
		if err != nil {
			return fmt.Errorf("insert shot %d: %w", shot.ShotNumber, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE players SET
			total_shots = (SELECT COUNT(*) FROM shots WHERE player_id = ?),
			total_makes = (SELECT COUNT(*) FROM shots WHERE player_id = ? AND made = 1),
			updated_at = ?
		WHERE id = ?`, playerID, playerID, time.Now().UTC(), playerID)
	if err != nil {
		return fmt.Errorf("update player stats: %w", err)
	}

	return tx.Commit()
}

// SaveProfile upserts the player's per-metric running statistics.
func (s *Store) SaveProfile(ctx context.Context, snap profile.Snapshot) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for metric, r := range snap.Metrics {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO form_profiles (player_id, metric, sample_count, mean, std_dev, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(player_id, metric) DO UPDATE SET
				sample_count = excluded.sample_count,
				mean = excluded.mean,
				std_dev = excluded.std_dev,
				updated_at = excluded.updated_at`,
			snap.PlayerID, metric, r.Samples, r.Optimal, r.Consistency, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("upsert profile metric %s: %w", metric, err)
		}
	}
	return tx.Commit()
}

// LoadProfiles seeds the registry with every persisted profile.
func (s *Store) LoadProfiles(ctx context.Context, registry *profile.Registry) error {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT player_id, metric, sample_count, mean, std_dev FROM form_profiles`)
	if err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var playerID int64
		var metric string
		var count int
		var mean, stdDev float64
		if err := rows.Scan(&playerID, &metric, &count, &mean, &stdDev); err != nil {
			return fmt.Errorf("scan profile row: %w", err)
		}
		registry.GetOrCreate(playerID).Restore(metric, count, mean, stdDev)
	}
	return rows.Err()
}

// PlayerPatterns summarizes a player's history: averages over makes,
// miss-type distribution and recent session percentages.
type PlayerPatterns struct {
	MakeAverages     *models.MetricVector `json:"make_averages,omitempty"`
	MissDistribution map[string]int       `json:"miss_distribution"`
	RecentSessions   []SessionDigest      `json:"recent_sessions"`
}

type SessionDigest struct {
	SessionID   string   `json:"session_id"`
	ShootingPct float64  `json:"shooting_pct"`
	AvgRating   *float64 `json:"avg_rating"`
}

func (s *Store) GetPlayerPatterns(ctx context.Context, playerID int64) (*PlayerPatterns, error) {
	patterns := &PlayerPatterns{MissDistribution: make(map[string]int)}

	row := s.conn.QueryRowContext(ctx, `
		SELECT AVG(elbow_angle_load), AVG(elbow_angle_release),
		       AVG(wrist_height_release), AVG(knee_bend_load)
		FROM shots WHERE player_id = ? AND made = 1`, playerID)

	var elbowLoad, elbowRelease, wristHeight, kneeBend sql.NullFloat64
	if err := row.Scan(&elbowLoad, &elbowRelease, &wristHeight, &kneeBend); err != nil {
		return nil, fmt.Errorf("make averages: %w", err)
	}
	if elbowLoad.Valid {
		patterns.MakeAverages = &models.MetricVector{
			ElbowAngleLoad:     &elbowLoad.Float64,
			ElbowAngleRelease:  nullableFloat(elbowRelease),
			WristHeightRelease: nullableFloat(wristHeight),
			KneeBendLoad:       nullableFloat(kneeBend),
		}
	}

	rows, err := s.conn.QueryContext(ctx, `
		SELECT miss_type, COUNT(*) FROM shots
		WHERE player_id = ? AND made = 0 AND miss_type IS NOT NULL
		GROUP BY miss_type`, playerID)
	if err != nil {
		return nil, fmt.Errorf("miss distribution: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var missType string
		var count int
		if err := rows.Scan(&missType, &count); err != nil {
			return nil, fmt.Errorf("scan miss row: %w", err)
		}
		patterns.MissDistribution[missType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sessionRows, err := s.conn.QueryContext(ctx, `
		SELECT id, shooting_pct, avg_rating FROM sessions
		WHERE player_id = ? AND shot_count > 0
		ORDER BY started_at DESC LIMIT 5`, playerID)
	if err != nil {
		return nil, fmt.Errorf("recent sessions: %w", err)
	}
	defer sessionRows.Close()
	for sessionRows.Next() {
		var d SessionDigest
		var rating sql.NullFloat64
		if err := sessionRows.Scan(&d.SessionID, &d.ShootingPct, &rating); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		d.AvgRating = nullableFloat(rating)
		patterns.RecentSessions = append(patterns.RecentSessions, d)
	}
	return patterns, sessionRows.Err()
}

// UpsertSegment writes one community aggregate row. Segment rows are
// produced by the offline aggregation job, never from individual
// player data in the request path.
func (s *Store) UpsertSegment(ctx context.Context, p community.AggregateProfile) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO segments (segment_type, segment_value, sample_size,
			avg_make_pct, top_quartile_make_pct,
			avg_elbow_load, avg_elbow_release, avg_wrist_height, avg_knee_bend,
			std_elbow_load, std_wrist_height,
			common_miss_type, common_strength, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(segment_type, segment_value) DO UPDATE SET
			sample_size = excluded.sample_size,
			avg_make_pct = excluded.avg_make_pct,
			top_quartile_make_pct = excluded.top_quartile_make_pct,
			avg_elbow_load = excluded.avg_elbow_load,
			avg_elbow_release = excluded.avg_elbow_release,
			avg_wrist_height = excluded.avg_wrist_height,
			avg_knee_bend = excluded.avg_knee_bend,
			std_elbow_load = excluded.std_elbow_load,
			std_wrist_height = excluded.std_wrist_height,
			common_miss_type = excluded.common_miss_type,
			common_strength = excluded.common_strength,
			updated_at = excluded.updated_at`,
		p.SegmentType, p.SegmentValue, p.SampleSize,
		p.AvgMakePct, p.TopQuartileMakePct,
		p.AvgElbowLoad, p.AvgElbowRelease, p.AvgWristHeight, p.AvgKneeBend,
		p.StdElbowLoad, p.StdWristHeight,
		nullString(p.CommonMissType), nullString(p.CommonStrength), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert segment %s:%s: %w", p.SegmentType, p.SegmentValue, err)
	}
	return nil
}

// GetSegment fetches one community segment, or nil when it is unknown
// or still below the minimum sample size.
func (s *Store) GetSegment(ctx context.Context, segmentType, segmentValue string) (*community.AggregateProfile, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT segment_type, segment_value, sample_size,
		       COALESCE(avg_make_pct, 0), COALESCE(top_quartile_make_pct, 0),
		       COALESCE(avg_elbow_load, 0), COALESCE(avg_elbow_release, 0),
		       COALESCE(avg_wrist_height, 0), COALESCE(avg_knee_bend, 0),
		       COALESCE(std_elbow_load, 0), COALESCE(std_wrist_height, 0),
		       COALESCE(common_miss_type, ''), COALESCE(common_strength, '')
		FROM segments
		WHERE segment_type = ? AND segment_value = ? AND sample_size >= ?`,
		segmentType, segmentValue, community.MinSegmentSize)

	var p community.AggregateProfile
	err := row.Scan(&p.SegmentType, &p.SegmentValue, &p.SampleSize,
		&p.AvgMakePct, &p.TopQuartileMakePct,
		&p.AvgElbowLoad, &p.AvgElbowRelease, &p.AvgWristHeight, &p.AvgKneeBend,
		&p.StdElbowLoad, &p.StdWristHeight,
		&p.CommonMissType, &p.CommonStrength)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get segment: %w", err)
	}
	return &p, nil
}

// ComparisonSegments collects every queryable segment a player belongs
// to: height band, skill level and accuracy band. Unknown attributes
// are skipped.
func (s *Store) ComparisonSegments(ctx context.Context, heightInches int, skillLevel string, makePct *float64) ([]community.AggregateProfile, error) {
	var segments []community.AggregateProfile

	appendSegment := func(segmentType, segmentValue string) error {
		p, err := s.GetSegment(ctx, segmentType, segmentValue)
		if err != nil {
			return err
		}
		if p != nil {
			segments = append(segments, *p)
		}
		return nil
	}

	if heightInches > 0 {
		if err := appendSegment("height", community.HeightSegment(heightInches)); err != nil {
			return nil, err
		}
	}
	if skillLevel != "" {
		if err := appendSegment("skill", skillLevel); err != nil {
			return nil, err
		}
	}
	if makePct != nil {
		if err := appendSegment("accuracy", community.AccuracySegment(*makePct)); err != nil {
			return nil, err
		}
	}
	return segments, nil
}

// RecordContribution logs that an opted-in user contributed session
// data to the aggregates. The hash is stored in place of any
// identifier.
func (s *Store) RecordContribution(ctx context.Context, userHash string, sessionCount, shotCount int) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO contributions (user_hash, session_count, shot_count)
		VALUES (?, ?, ?)`, userHash, sessionCount, shotCount)
	if err != nil {
		return fmt.Errorf("record contribution: %w", err)
	}
	return nil
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}
