package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type widget struct {
	ID   uint
	Name string
}

func TestOpen_WithDialectorMigratesAndPings(t *testing.T) {
	log, _ := test.NewNullLogger()
	db, err := Open(Options{Dialector: sqlite.Open(":memory:"), MaxOpenConns: 1, Logger: log})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Migrate(&widget{}))
	require.NoError(t, db.Create(&widget{Name: "a"}).Error)
	assert.NoError(t, db.Ping(context.Background()))

	var count int64
	require.NoError(t, db.Model(&widget{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestOpen_RequiresURL(t *testing.T) {
	_, err := Open(Options{})
	assert.Error(t, err)
}

func TestGormLogger_Levels(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	l := newGormLogger(log, 50*time.Millisecond)
	ctx := context.Background()
	sql := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(ctx, time.Now(), sql, nil)
	assert.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)

	l.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	l.Trace(ctx, time.Now(), sql, errors.New("syntax error"))
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)

	l.Trace(ctx, time.Now(), sql, gorm.ErrRecordNotFound)
	assert.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)
	assert.Equal(t, "database", hook.LastEntry().Data["component"])
}
