package main

import (
	"context"
	"database/sql"
	"log/slog"
	"time"
	"uthsis-backend/lib/configutil"
	"uthsis-backend/lib/gradestore"
	"uthsis-backend/lib/gradestore/db"
	"uthsis-backend/lib/serviceutil"
	"uthsis-backend/lib/telemetry"
	"uthsis-backend/services/sis"

	"github.com/robfig/cron/v3"

	_ "modernc.org/sqlite"
)

func main() {
	ctx := serviceutil.SignalContext()

	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	config.fillDefaults()

	database, err := sql.Open("sqlite", config.DatabaseFile)
	if err != nil {
		serviceutil.Fatal("failed to open database", err)
	}
	_, err = database.Exec(db.Schema)
	if err != nil {
		serviceutil.Fatal("failed to apply schema", err)
	}

	t, err := telemetry.SetupFromEnv(ctx, "sisd")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer t.Shutdown(context.Background())

	service := sis.NewService(ctx, gradestore.NewStore(database), sis.Options{
		CasLoginUrl: config.CasLoginUrl,
		GradesUrl:   config.GradesUrl,
		SessionTtl:  time.Duration(config.SessionTtlMinutes) * time.Minute,
	})

	retention := time.Duration(config.SnapshotRetentionDays) * 24 * time.Hour
	jobs := cron.New()
	_, err = jobs.AddFunc("@daily", func() {
		err := service.RetainSnapshots(ctx, retention)
		if err != nil {
			slog.ErrorContext(ctx, "snapshot retention job failed", "err", err)
		}
	})
	if err != nil {
		serviceutil.Fatal("failed to schedule retention job", err)
	}
	jobs.Start()
	defer jobs.Stop()

	go serviceutil.StartHttpServer(config.Port, newRouter(service))

	<-ctx.Done()
}
