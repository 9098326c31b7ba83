// Package pipelinestore persists pipeline definitions across process
// restarts. It is definition persistence only — decoded events and
// delivered payloads are never written here, per spec.md's Non-goal on
// event/output persistence.
//
// Grounded on the teacher's internal/database (gorm + postgres connection
// and migration shape), generalized from the teacher's wallet/analytics
// schema to a single pipeline-snapshot table.
package pipelinestore

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wnt/tada/internal/config"
	"github.com/wnt/tada/internal/pipeline"
	"github.com/wnt/tada/internal/pipelineindex"
)

// Snapshot is the persisted row for one pipeline definition: its
// serialized JSON body plus bookkeeping columns an admin control plane
// can use to detect stale reads.
type Snapshot struct {
	ID         string `gorm:"primaryKey"`
	Definition string `gorm:"type:jsonb;not null"`
	Version    int    `gorm:"not null"`
	UpdatedAt  time.Time
}

func (Snapshot) TableName() string { return "pipeline_snapshots" }

// Store wraps the gorm/postgres connection holding pipeline snapshots.
type Store struct {
	db *gorm.DB
}

// Connect opens the pipeline definition database and migrates its schema.
func Connect(cfg config.Config) (*Store, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		cfg.PipelineDBHost,
		cfg.PipelineDBUser,
		cfg.PipelineDBPassword,
		cfg.PipelineDBName,
		cfg.PipelineDBPort,
		cfg.PipelineDBSSLMode,
	)

	gcfg := &gorm.Config{
		Logger:      gormlogger.Default.LogMode(gormlogger.Silent),
		PrepareStmt: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(postgres.Open(dsn), gcfg)
	if err != nil {
		return nil, fmt.Errorf("pipelinestore: connect: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("pipelinestore: acquire sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Snapshot{}); err != nil {
		return nil, fmt.Errorf("pipelinestore: migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// Upsert serializes p and writes it as the current snapshot for its ID,
// storing p.Version as given.
func (s *Store) Upsert(p pipeline.Pipeline) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("pipelinestore: marshal pipeline %s: %w", p.ID, err)
	}
	snap := Snapshot{ID: p.ID, Definition: string(body), Version: p.Version}
	err = s.db.Save(&snap).Error
	if err != nil {
		return fmt.Errorf("pipelinestore: save %s: %w", p.ID, err)
	}
	return nil
}

// Delete removes a pipeline's persisted snapshot.
func (s *Store) Delete(id string) error {
	if err := s.db.Delete(&Snapshot{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("pipelinestore: delete %s: %w", id, err)
	}
	return nil
}

// All loads and deserializes every persisted pipeline snapshot.
func (s *Store) All() ([]pipeline.Pipeline, error) {
	var rows []Snapshot
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("pipelinestore: list: %w", err)
	}
	out := make([]pipeline.Pipeline, 0, len(rows))
	for _, row := range rows {
		var p pipeline.Pipeline
		if err := json.Unmarshal([]byte(row.Definition), &p); err != nil {
			return nil, fmt.Errorf("pipelinestore: unmarshal %s: %w", row.ID, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// WarmStart loads every persisted snapshot into idx, so the pipeline index
// survives a process restart without waiting for the control plane's next
// resync, per SPEC_FULL.md §4's persistence supplement.
func (s *Store) WarmStart(idx *pipelineindex.Index) error {
	pipelines, err := s.All()
	if err != nil {
		return err
	}
	for _, p := range pipelines {
		if err := idx.Upsert(p); err != nil {
			return fmt.Errorf("pipelinestore: warm start upsert %s: %w", p.ID, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
