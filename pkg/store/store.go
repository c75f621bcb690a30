// Package store persists benchmark passes and their runs so results stay
// queryable after the process exits.
package store

import (
	"context"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config selects and parameterizes the backing database.
type Config struct {
	Driver string `yaml:"driver"`

	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`

	Postgres struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Database string `yaml:"database"`
		SSLMode  string `yaml:"ssl_mode"`
	} `yaml:"postgres"`
}

// Store provides persistence for benchmark results.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	CreatePass(ctx context.Context, pass *Pass) error
	FinishPass(ctx context.Context, pass *Pass) error
	GetPass(ctx context.Context, id uint) (*Pass, error)
	ListPasses(ctx context.Context) ([]Pass, error)
	AppendRuns(ctx context.Context, passID uint, runs []Run) error
	ListRuns(ctx context.Context, passID uint) ([]Run, error)
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *Config
	db  *gorm.DB
}

// NewStore creates a Store backed by the configured database driver.
func NewStore(log logrus.FieldLogger, cfg *Config) Store {
	return &store{
		log: log.WithField("component", "store"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var (
		dialector gorm.Dialector
		err       error
	)

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	s.db, err = gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	if err := s.db.WithContext(ctx).AutoMigrate(
		&Pass{},
		&Run{},
	); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).Info("Result database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

func (s *store) CreatePass(ctx context.Context, pass *Pass) error {
	if err := s.db.WithContext(ctx).Create(pass).Error; err != nil {
		return fmt.Errorf("creating pass: %w", err)
	}

	return nil
}

// FinishPass writes the final timestamps and verdict of a pass.
func (s *store) FinishPass(ctx context.Context, pass *Pass) error {
	if err := s.db.WithContext(ctx).Save(pass).Error; err != nil {
		return fmt.Errorf("finishing pass: %w", err)
	}

	return nil
}

func (s *store) GetPass(ctx context.Context, id uint) (*Pass, error) {
	var pass Pass
	if err := s.db.WithContext(ctx).
		Preload("Runs").
		First(&pass, id).Error; err != nil {
		return nil, fmt.Errorf("getting pass: %w", err)
	}

	return &pass, nil
}

func (s *store) ListPasses(ctx context.Context) ([]Pass, error) {
	var passes []Pass
	if err := s.db.WithContext(ctx).
		Order("id ASC").
		Find(&passes).Error; err != nil {
		return nil, fmt.Errorf("listing passes: %w", err)
	}

	return passes, nil
}

func (s *store) AppendRuns(ctx context.Context, passID uint, runs []Run) error {
	if len(runs) == 0 {
		return nil
	}

	for i := range runs {
		runs[i].PassID = passID
	}

	if err := s.db.WithContext(ctx).Create(&runs).Error; err != nil {
		return fmt.Errorf("appending runs: %w", err)
	}

	return nil
}

func (s *store) ListRuns(ctx context.Context, passID uint) ([]Run, error) {
	var runs []Run
	if err := s.db.WithContext(ctx).
		Where("pass_id = ?", passID).
		Order("server_id ASC, run_index ASC").
		Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	return runs, nil
}
