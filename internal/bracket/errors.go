package bracket

import "errors"

var (
	// Referenced match or tournament does not exist
	ErrNotFound = errors.New("not found")
	// The request does not fit the current state, nothing was written
	ErrInvalidState = errors.New("invalid state")
	// The bracket graph is missing a match the algorithm expected
	ErrStructuralInconsistency = errors.New("structural inconsistency")
	// A slot or status changed between the read and the write
	ErrConcurrentUpdate = errors.New("concurrent update")
)
