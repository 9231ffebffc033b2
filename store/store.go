package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "dingerstats.sqlite3"

const errStoreNil = "store is nil"

// Processing states a video moves through
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Video is a fetched recording registered for analysis
type Video struct {
	VideoID     string  `gorm:"primaryKey;type:varchar(16)" json:"video_id"`
	Title       string  `json:"title"`
	Uploader    string  `json:"uploader"`
	PublishedAt string  `json:"published_at"`
	PlaylistID  string  `gorm:"index:idx_video_playlist" json:"playlist_id"`
	Duration    float64 `json:"duration"`
	AudioPath   string  `json:"audio_path"`
	CreatedAt   time.Time
}

// DetectionRun records one pass of the detection pipeline over a video
type DetectionRun struct {
	ID         string  `gorm:"primaryKey;type:varchar(36)"`
	VideoID    string  `gorm:"index:idx_run_video" json:"video_id"`
	Strategy   string  `json:"strategy"`
	Fitness    float64 `json:"fitness"`
	Incomplete bool    `json:"incomplete"`
	CreatedAt  time.Time
}

// TransitionMark is one detected half-inning transition within a run
type TransitionMark struct {
	ID                  uint    `gorm:"primaryKey;autoIncrement"`
	RunID               string  `gorm:"type:varchar(36);index:idx_mark_run" json:"run_id"`
	TimeSeconds         float64 `json:"time_seconds"`
	Score               float64 `json:"score"`
	SupportingTemplates string  `json:"supporting_templates"`
}

// ProcessingLog tracks per-video analysis attempts
type ProcessingLog struct {
	VideoID      string    `gorm:"primaryKey;type:varchar(16)" json:"video_id"`
	Status       string    `gorm:"index:idx_log_status" json:"status"`
	ErrorMessage string    `json:"error_message"`
	AttemptCount int       `json:"attempt_count"`
	LastAttempt  time.Time `json:"last_attempt"`
}

// Stats summarizes the database contents
type Stats struct {
	TotalVideos    int64            `json:"total_videos"`
	AnalyzedVideos int64            `json:"analyzed_videos"`
	ByStatus       map[string]int64 `json:"by_status"`
}

// Store persists videos, detection runs, and processing state in SQLite
type Store struct {
	DB *gorm.DB
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at dbPath and
// migrates the schema.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Video{}, &DetectionRun{}, &TransitionMark{}, &ProcessingLog{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &Store{DB: db, db: sqlDB}, nil
}

// Close releases the underlying database handle
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RegisterVideo inserts a video or refreshes its metadata when the ID is
// already known
func (s *Store) RegisterVideo(v *Video) error {
	if s == nil || s.DB == nil {
		return errors.New(errStoreNil)
	}
	if v.VideoID == "" {
		return fmt.Errorf("video ID is empty")
	}

	err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "video_id"}},
		UpdateAll: true,
	}).Create(v).Error
	if err != nil {
		return fmt.Errorf("registering video: %w", err)
	}
	return nil
}

// GetVideo fetches a video by ID; a nil video means it is not registered
func (s *Store) GetVideo(videoID string) (*Video, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New(errStoreNil)
	}

	var v Video
	err := s.DB.Where("video_id = ?", videoID).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying video: %w", err)
	}
	return &v, nil
}

// ListVideos returns all registered videos, newest first
func (s *Store) ListVideos() ([]Video, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New(errStoreNil)
	}

	var videos []Video
	if err := s.DB.Order("published_at DESC").Find(&videos).Error; err != nil {
		return nil, fmt.Errorf("listing videos: %w", err)
	}
	return videos, nil
}

// ListVideosByPlaylist returns the videos of one playlist, newest first
func (s *Store) ListVideosByPlaylist(playlistID string) ([]Video, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New(errStoreNil)
	}

	var videos []Video
	err := s.DB.Where("playlist_id = ?", playlistID).Order("published_at DESC").Find(&videos).Error
	if err != nil {
		return nil, fmt.Errorf("listing playlist videos: %w", err)
	}
	return videos, nil
}

// SaveRun persists a detection run with its transition marks in one
// transaction. A missing run ID gets a fresh UUID; marks inherit the
// run ID.
func (s *Store) SaveRun(run *DetectionRun, marks []TransitionMark) error {
	if s == nil || s.DB == nil {
		return errors.New(errStoreNil)
	}
	if run.VideoID == "" {
		return fmt.Errorf("detection run carries no video ID")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return fmt.Errorf("creating detection run: %w", err)
		}
		if len(marks) == 0 {
			return nil
		}
		for i := range marks {
			marks[i].RunID = run.ID
		}
		if err := tx.CreateInBatches(marks, 500).Error; err != nil {
			return fmt.Errorf("batch insert transition marks: %w", err)
		}
		return nil
	})
}

// LatestRun returns the most recent detection run for a video and its
// marks in time order. A nil run means the video has never been analyzed.
func (s *Store) LatestRun(videoID string) (*DetectionRun, []TransitionMark, error) {
	if s == nil || s.DB == nil {
		return nil, nil, errors.New(errStoreNil)
	}

	var run DetectionRun
	err := s.DB.Where("video_id = ?", videoID).Order("created_at DESC").First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("querying detection run: %w", err)
	}

	var marks []TransitionMark
	err = s.DB.Where("run_id = ?", run.ID).Order("time_seconds").Find(&marks).Error
	if err != nil {
		return nil, nil, fmt.Errorf("querying transition marks: %w", err)
	}
	return &run, marks, nil
}

// UpdateProcessingStatus upserts the processing log entry for a video,
// bumping the attempt counter on repeat attempts
func (s *Store) UpdateProcessingStatus(videoID, status, errorMessage string) error {
	if s == nil || s.DB == nil {
		return errors.New(errStoreNil)
	}

	var entry ProcessingLog
	err := s.DB.Where("video_id = ?", videoID).First(&entry).Error
	if err == nil {
		updates := map[string]any{
			"status":        status,
			"error_message": errorMessage,
			"attempt_count": entry.AttemptCount + 1,
			"last_attempt":  time.Now(),
		}
		if err := s.DB.Model(&entry).Updates(updates).Error; err != nil {
			return fmt.Errorf("updating processing status: %w", err)
		}
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("querying processing log: %w", err)
	}

	entry = ProcessingLog{
		VideoID:      videoID,
		Status:       status,
		ErrorMessage: errorMessage,
		AttemptCount: 1,
		LastAttempt:  time.Now(),
	}
	if err := s.DB.Create(&entry).Error; err != nil {
		return fmt.Errorf("creating processing log: %w", err)
	}
	return nil
}

// VideosByStatus returns the videos whose latest processing attempt
// landed in the given status
func (s *Store) VideosByStatus(status string) ([]Video, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New(errStoreNil)
	}

	var videos []Video
	err := s.DB.
		Joins("JOIN processing_logs pl ON pl.video_id = videos.video_id").
		Where("pl.status = ?", status).
		Order("pl.last_attempt DESC").
		Find(&videos).Error
	if err != nil {
		return nil, fmt.Errorf("querying videos by status: %w", err)
	}
	return videos, nil
}

// UnprocessedVideos returns videos never attempted or whose last attempt
// failed, newest first
func (s *Store) UnprocessedVideos() ([]Video, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New(errStoreNil)
	}

	var videos []Video
	err := s.DB.
		Joins("LEFT JOIN processing_logs pl ON pl.video_id = videos.video_id").
		Where("pl.video_id IS NULL OR pl.status = ?", StatusFailed).
		Order("videos.published_at DESC").
		Find(&videos).Error
	if err != nil {
		return nil, fmt.Errorf("querying unprocessed videos: %w", err)
	}
	return videos, nil
}

// GetStats summarizes the database contents
func (s *Store) GetStats() (*Stats, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New(errStoreNil)
	}

	stats := &Stats{ByStatus: make(map[string]int64)}

	if err := s.DB.Model(&Video{}).Count(&stats.TotalVideos).Error; err != nil {
		return nil, fmt.Errorf("counting videos: %w", err)
	}
	if err := s.DB.Model(&DetectionRun{}).Distinct("video_id").Count(&stats.AnalyzedVideos).Error; err != nil {
		return nil, fmt.Errorf("counting analyzed videos: %w", err)
	}

	var rows []struct {
		Status string
		Count  int64
	}
	err := s.DB.Model(&ProcessingLog{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("counting processing states: %w", err)
	}
	for _, r := range rows {
		stats.ByStatus[r.Status] = r.Count
	}

	return stats, nil
}
