package store

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hvacsched/internal/config"
	"hvacsched/internal/model"
)

func sampleDocument() model.Document {
	doc := model.NewDocument("2025-07-25T21:30:00Z")
	doc.Schedules = append(doc.Schedules, model.Schedule{
		ID:              "s1",
		EventName:       "Office",
		ScheduleType:    model.TypeLighting,
		RepeatFrequency: model.RepeatCustom,
		DaysOfWeek:      []string{"monday"},
		StartDate:       "2025-01-01",
		EndDate:         model.EndNever,
		StartTime:       "09:00",
		EndTime:         "10:00",
		TimeSetting:     model.TimeLiteral,
		ExcludeDates:    []string{"2025-01-13"},
		Settings:        model.Lighting{State: model.LightOn, Brightness: 80},
	})
	return doc
}

// exerciseStore runs the shared contract every backend must meet.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	doc := sampleDocument()
	require.NoError(t, s.Save(ctx, doc))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	doc.Schedules = doc.Schedules[:1]
	require.NoError(t, s.Save(ctx, doc))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Schedules, 1)

	require.NoError(t, s.Close())
}

func TestFileStore(t *testing.T) {
	exerciseStore(t, NewFile(filepath.Join(t.TempDir(), "data", "schedules.json"), zap.NewNop()))
}

func TestFileStoreReadsLegacyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"event_name":"Office","schedule_type":"thermostat"}`), 0o600))

	doc, err := NewFile(path, nil).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, doc.Schedules, 1)
	assert.Equal(t, "1", doc.Schedules[0].ID)
}

func TestFileStoreCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))

	_, err := NewFile(path, nil).Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestDiskvStore(t *testing.T) {
	exerciseStore(t, NewDiskv(t.TempDir(), "schedules", zap.NewNop()))
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	exerciseStore(t, NewRedis(client, "hvac:schedules", zap.NewNop()))
}

func TestOpenRedisViaConfig(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.StorageConfig{Driver: config.DriverRedis, Key: "k", Redis: config.RedisConfig{Addr: mr.Addr()}}

	s, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(context.Background(), sampleDocument()))
	assert.True(t, mr.Exists("k"))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Driver: "tape"}, nil)
	assert.Error(t, err)
}

func TestPostgresStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	p := NewPostgres(db, "schedule_documents", "schedules", zap.NewNop())
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "schedule_documents"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, p.Migrate(ctx))

	selectBody := regexp.QuoteMeta(`SELECT body FROM "schedule_documents" WHERE key = $1`)
	mock.ExpectQuery(selectBody).WithArgs("schedules").
		WillReturnRows(sqlmock.NewRows([]string{"body"}))
	_, err = p.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	doc := sampleDocument()
	body, err := model.EncodeDocument(doc)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "schedule_documents" (key, body, updated_at)`)).
		WithArgs("schedules", body).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, p.Save(ctx, doc))

	mock.ExpectQuery(selectBody).WithArgs("schedules").
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow(body))
	got, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	mock.ExpectClose()
	require.NoError(t, p.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}
