package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/yungbote/pathpilot-backend/internal/logger"
	"github.com/yungbote/pathpilot-backend/internal/types"
	"github.com/yungbote/pathpilot-backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "pathpilot", log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	log.Info("Connecting to Postgres...")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		log.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("Failed to connect to Postgres: %w", err)
	}

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		log.Error("Failed to enable uuid-ossp extension", "error", err)
		return nil, fmt.Errorf("Failed to enable uuid-ossp extension: %w", err)
	}

	return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&types.User{},
		&types.Path{},
		&types.PathStep{},
		&types.PathMilestone{},
		&types.OnboardingSession{},
		&types.StepProgress{},
		&types.Achievement{},
		&types.AnalyticsEvent{},
		&types.AuditLog{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}

	s.log.Info("Configuring foreign key relationships for postgres tables...")
	constraints := []string{
		`ALTER TABLE "path_step"
		 ADD CONSTRAINT "fk_path_step_path_id"
		 FOREIGN KEY ("path_id") REFERENCES "path"("id") ON DELETE CASCADE`,
		`ALTER TABLE "path_milestone"
		 ADD CONSTRAINT "fk_path_milestone_path_id"
		 FOREIGN KEY ("path_id") REFERENCES "path"("id") ON DELETE CASCADE`,
		`ALTER TABLE "onboarding_session"
		 ADD CONSTRAINT "fk_onboarding_session_path_id"
		 FOREIGN KEY ("path_id") REFERENCES "path"("id") ON DELETE CASCADE`,
		`ALTER TABLE "step_progress"
		 ADD CONSTRAINT "fk_step_progress_session_id"
		 FOREIGN KEY ("session_id") REFERENCES "onboarding_session"("id") ON DELETE CASCADE`,
		`ALTER TABLE "achievement"
		 ADD CONSTRAINT "fk_achievement_session_id"
		 FOREIGN KEY ("session_id") REFERENCES "onboarding_session"("id") ON DELETE CASCADE`,
	}
	for _, stmt := range constraints {
		if err := s.db.Exec(stmt).Error; err != nil {
			// Re-running migrations hits existing constraints; that is fine.
			s.log.Debug("Constraint already present or not applicable", "error", err)
		}
	}
	return nil
}
