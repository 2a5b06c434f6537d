package btree

import "github.com/pkg/errors"

// wrapAllocErr annotates a page manager allocation failure with a
// fixed btree message, without masking the underlying error
// (pagestore.ErrExhausted, most often).
func wrapAllocErr(err error) error {
	return errors.Wrap(err, "btree: page allocation failed")
}

// wrapGetErr annotates a page manager fetch failure. A failure here
// means the tree references a page the manager no longer has, which is
// always a caller/manager inconsistency rather than something the
// btree algorithms can recover from.
func wrapGetErr(err error) error {
	return errors.Wrap(err, "btree: failed to fetch page")
}
