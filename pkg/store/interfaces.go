package store

import (
	"context"

	"ridetrace/pkg/model"
)

// RecordingStore handles the recording file index.
//
// The index is a convenience over the data directory: listings and
// sorting come from here, the JSON files stay the source of truth.
type RecordingStore interface {
	SaveRecording(ctx context.Context, info *model.RecordingInfo) error
	GetRecording(ctx context.Context, name string) (*model.RecordingInfo, error)
	ListRecordings(ctx context.Context, sortKey, order string) ([]*model.RecordingInfo, error)
	DeleteRecording(ctx context.Context, name string) error
}

// MirrorStore handles the ledger of files copied to the paired device.
type MirrorStore interface {
	SaveMirror(ctx context.Context, info *model.MirrorInfo) error
	GetMirror(ctx context.Context, name string) (*model.MirrorInfo, error)
	ListMirrors(ctx context.Context) (map[string]string, error)
	DeleteMirror(ctx context.Context, name string) error
}

// StateStore handles persistent application state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}
