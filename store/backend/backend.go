// Package backend opens the store implementation selected on the command
// line.
package backend

import (
	"context"
	"flag"
	"fmt"
	"log/slog"

	"kurudhi-koodai/store"
	"kurudhi-koodai/store/fsstore"
	"kurudhi-koodai/store/kvstore"

	"cloud.google.com/go/firestore"
)

const (
	KindFirestore = "firestore"
	KindBadger    = "badger"
)

type Flags struct {
	Kind        string
	DataProject string
	DataDir     string
}

// RegisterFlags adds -backend, -data-project and -data-dir to fs.
func (f *Flags) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&f.Kind, "backend", KindFirestore, "Store backend: firestore or badger.")
	fs.StringVar(&f.DataProject, "data-project", "", "GCP project that contains the application state (firestore backend).")
	fs.StringVar(&f.DataDir, "data-dir", "", "Directory holding the database (badger backend).")
}

func (f *Flags) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("backend", f.Kind),
		slog.String("data-project", f.DataProject),
		slog.String("data-dir", f.DataDir),
	)
}

func Open(ctx context.Context, f *Flags) (store.Store, error) {
	switch f.Kind {
	case KindFirestore:
		fstore, err := firestore.NewClient(ctx, f.DataProject)
		if err != nil {
			return nil, fmt.Errorf("while creating FireStore client: %w", err)
		}
		return fsstore.New(fstore), nil
	case KindBadger:
		if f.DataDir == "" {
			return nil, fmt.Errorf("-data-dir is required with -backend=%s", KindBadger)
		}
		s, err := kvstore.Open(f.DataDir)
		if err != nil {
			return nil, fmt.Errorf("while opening badger store in %s: %w", f.DataDir, err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown backend %q", f.Kind)
}
