package root

import (
	"context"
	"database/sql"

	"homekeep/internal/engine"
	"homekeep/internal/storage"
)

func dbPath() (string, error) {
	path := cfg.DBPath
	if dbFlag != "" {
		path = dbFlag
	}
	return storage.ResolveDBPath(path)
}

func openDB(ctx context.Context) (*sql.DB, string, func(), error) {
	path, err := dbPath()
	if err != nil {
		return nil, "", nil, err
	}
	db, err := storage.Open(ctx, path)
	if err != nil {
		return nil, "", nil, err
	}
	cleanup := func() {
		_ = db.Close()
	}
	return db, path, cleanup, nil
}

func openService(ctx context.Context) (*engine.Service, string, func(), error) {
	db, path, cleanup, err := openDB(ctx)
	if err != nil {
		return nil, "", nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		cleanup()
		return nil, "", nil, err
	}
	svc := engine.NewService(db,
		engine.WithClock(engine.SystemClock{Location: loc}),
		engine.WithLogger(logger),
		engine.WithMaxRetries(cfg.Engine.MaxRetries),
		engine.WithHistoryPageSize(cfg.Engine.HistoryPageSize),
	)
	return svc, path, cleanup, nil
}
