package store

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"hvacsched/internal/config"
	"hvacsched/internal/model"
)

// File keeps the document as one indented JSON file.
type File struct {
	path   string
	logger *zap.Logger
}

func NewFile(path string, logger *zap.Logger) *File {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &File{path: path, logger: logger}
}

func (f *File) Load(_ context.Context) (model.Document, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.Document{}, ErrNotFound
		}
		return model.Document{}, err
	}
	return decode(data, f.path)
}

// Save writes atomically via temp file + rename.
func (f *File) Save(_ context.Context, doc model.Document) error {
	data, err := model.EncodeDocument(doc)
	if err != nil {
		return err
	}
	if err := config.WriteFileAtomic(f.path, data, ".schedules-*.tmp"); err != nil {
		return err
	}
	f.logger.Debug("schedule document written", zap.String("path", f.path), zap.Int("schedules", len(doc.Schedules)))
	return nil
}

func (f *File) Close() error { return nil }
