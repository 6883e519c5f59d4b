package csstudio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cantostudio/internal/gormzerologger"
	"cantostudio/internal/models/cscaptchas"
	"cantostudio/internal/models/csconfig"
	"cantostudio/internal/models/csevents"
	"cantostudio/internal/models/cslgpd"
	"cantostudio/internal/models/csmetrics"
	"cantostudio/internal/models/csnotify"
	"cantostudio/internal/models/csratelimit"
	"cantostudio/internal/models/csredis"
	"cantostudio/internal/models/csschedules"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Studio regroupe la configuration, les connexions et les services de l'application
type Studio struct {
	Configuration *csconfig.Config
	Db            *gorm.DB
	Redis         *redis.Client
	Location      *time.Location
	Captcha       *cscaptchas.Captchas
	Notifier      csnotify.Notifier
	Limiter       *csratelimit.Limiter

	Events    *csevents.Service
	Schedules *csschedules.Service
	Metrics   *csmetrics.Service
	Lgpd      *cslgpd.Service

	Version string
	BuildID string
}

func Init(config *csconfig.Config, version string, buildid string) (*Studio, error) {
	db, err := OpenDatabase(config.Database, gormLogLevel(config))
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return New(config, db, version, buildid), nil
}

// New assemble les services autour d'une base déjà ouverte et migrée
func New(config *csconfig.Config, db *gorm.DB, version string, buildid string) *Studio {
	loc, err := config.Location()
	if err != nil {
		log.Warn().Err(err).Str("timezone", config.Studio.Timezone).Msg("fuseau inconnu, heure locale utilisée")
		loc = time.Local
	}

	st := &Studio{
		Configuration: config,
		Db:            db,
		Redis:         csredis.NewClient(config.Database.Redis),
		Location:      loc,
		Notifier:      csnotify.New(config.Notify, config.Studio.Name),
		Limiter:       csratelimit.New(),
		Version:       version,
		BuildID:       buildid,
	}

	if config.Captcha.Enable {
		st.Captcha = cscaptchas.New(st.Redis, config.Production)
	}

	eventOpts := []csevents.Option{csevents.WithLocation(st.Location)}
	var realtime csmetrics.Realtime
	if st.Redis != nil {
		counters := csredis.NewDailyCounters(st.Redis)
		eventOpts = append(eventOpts, csevents.WithCounter(counters))
		realtime = counters
	}

	st.Events = csevents.NewService(db, eventOpts...)
	st.Schedules = csschedules.NewService(db, st.Events, st.Notifier, st.Location)
	st.Metrics = csmetrics.NewService(db, realtime, st.Location)
	st.Lgpd = cslgpd.NewService(db, st.Notifier)
	return st
}

func gormLogLevel(config *csconfig.Config) string {
	level := "warn"
	if config.Logger.Level == "debug" || !config.Production {
		level = "trace"
	}
	return level
}

// OpenDatabase les horodatages sont écrits en UTC quel que soit le moteur
func OpenDatabase(conf csconfig.DatabaseConfig, level string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch conf.Db {
	case "sqlite":
		dialector = sqlite.Open(conf.Path)
	case "mysql":
		dialector = mysql.Open(conf.Dsn)
	case "postgres":
		dialector = postgres.Open(conf.Dsn)
	default:
		return nil, fmt.Errorf("le type de database doit etre sqlite, mysql ou postgres")
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  gormzerologger.New(level),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("erreur connexion base de données: %w", err)
	}
	return db, nil
}

func Models() []any {
	models := csschedules.Models()
	return append(models, &csevents.EventLog{}, &cslgpd.DataDeletionRequest{})
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("erreur migration: %w", err)
	}
	return nil
}

// Start lance les tâches de fond
func (st *Studio) Start() error {
	return st.Limiter.Start()
}

// Ping vérifie la base, et redis s'il est configuré
func (st *Studio) Ping(ctx context.Context) error {
	sqlDB, err := st.Db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if st.Redis != nil {
		if err := st.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close arrête le balayage du limiteur puis ferme les connexions
func (st *Studio) Close() error {
	st.Limiter.Stop()

	var errs []error
	if st.Redis != nil {
		errs = append(errs, st.Redis.Close())
	}
	if sqlDB, err := st.Db.DB(); err != nil {
		errs = append(errs, err)
	} else {
		errs = append(errs, sqlDB.Close())
	}

	err := errors.Join(errs...)
	if err != nil {
		log.Error().Err(err).Msg("erreur fermeture")
	}
	return err
}
