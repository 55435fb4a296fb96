package app

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/eduardoaugusto358-droid/vivassce-baileys-backend/internal/whatsapp"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (a *Application) initJob() {
	loc, _ := time.LoadLocation(a.appConfig.System.Location)
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	_, err := a.sched.AddFunc("@daily", func() {
		a.SchedClearExpireData()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	a.sched.Start()
}

// SchedClearExpireData trims the message audit trail past the retention
// window.
func (a *Application) SchedClearExpireData() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	idays := a.appConfig.WhatsApp.AuditRetentionDays
	if idays == 0 {
		idays = 90
	}
	deleted, err := whatsapp.NewGormAuditStore(a.gormDB).DeleteOlderThan(idays)
	if err != nil {
		zap.L().Error("audit retention job failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		zap.L().Info("audit retention job pruned records",
			zap.Int64("deleted", deleted), zap.Int("retention_days", idays))
	}
}
