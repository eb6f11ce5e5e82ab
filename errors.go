package presentations

import "fmt"

// ErrStorage wraps a transport, connectivity or transactional failure from
// the underlying store. Op names the failing operation.
type ErrStorage struct {
	Op  string
	Err error
}

func (e ErrStorage) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e ErrStorage) Unwrap() error { return e.Err }

// ErrCorruptData indicates a stored value that should parse as the expected
// shape does not. List operations skip corrupt entries; point reads surface
// this error with the offending id.
type ErrCorruptData struct {
	ID  string
	Err error
}

func (e ErrCorruptData) Error() string {
	return fmt.Sprintf("corrupt data for document %q: %v", e.ID, e.Err)
}

func (e ErrCorruptData) Unwrap() error { return e.Err }

// ErrAssetPutFailed indicates the asset store rejected an ingestion during
// conversion. The conversion as a whole fails; uploads completed before the
// failure stay in the store, where they are dedupable and harmless.
type ErrAssetPutFailed struct {
	Slot string // the asset-bearing position being converted
	Err  error
}

func (e ErrAssetPutFailed) Error() string {
	return fmt.Sprintf("asset ingestion failed at %s: %v", e.Slot, e.Err)
}

func (e ErrAssetPutFailed) Unwrap() error { return e.Err }
