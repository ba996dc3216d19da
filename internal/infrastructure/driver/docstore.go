package driver

import "context"

// DocumentDB document-oriented persistence interface. Documents are JSON
// values addressed by key; every operation is individually fallible and
// atomic at single-document granularity only
type DocumentDB interface {
	// GetDoc unmarshals the document at key into out, found reports whether
	// the key exists
	GetDoc(ctx context.Context, key string, out interface{}) (found bool, err error)
	// PutDoc create-or-replace write
	PutDoc(ctx context.Context, key string, doc interface{}) error
	// PutDocNX set-if-absent write, created reports whether this call wrote
	PutDocNX(ctx context.Context, key string, doc interface{}) (created bool, err error)
	// ScanKeys collection scan by key pattern
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
	Ping() error
}
