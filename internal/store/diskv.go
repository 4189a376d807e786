package store

import (
	"context"
	"errors"
	"io/fs"

	"github.com/peterbourgon/diskv/v3"
	"go.uber.org/zap"

	"hvacsched/internal/model"
)

// Diskv keeps the document as one diskv key under a base directory, with
// diskv's read cache in front of it.
type Diskv struct {
	d      *diskv.Diskv
	key    string
	logger *zap.Logger
}

func NewDiskv(basePath, key string, logger *zap.Logger) *Diskv {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Diskv{
		d: diskv.New(diskv.Options{
			BasePath:     basePath,
			Transform:    func(string) []string { return []string{} },
			CacheSizeMax: 1024 * 1024, // 1MB
		}),
		key:    key,
		logger: logger,
	}
}

func (s *Diskv) Load(_ context.Context) (model.Document, error) {
	if !s.d.Has(s.key) {
		return model.Document{}, ErrNotFound
	}
	data, err := s.d.Read(s.key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.Document{}, ErrNotFound
		}
		return model.Document{}, err
	}
	return decode(data, "diskv key "+s.key)
}

func (s *Diskv) Save(_ context.Context, doc model.Document) error {
	data, err := model.EncodeDocument(doc)
	if err != nil {
		return err
	}
	if err := s.d.Write(s.key, data); err != nil {
		return err
	}
	s.logger.Debug("schedule document written", zap.String("key", s.key), zap.Int("schedules", len(doc.Schedules)))
	return nil
}

func (s *Diskv) Close() error { return nil }
