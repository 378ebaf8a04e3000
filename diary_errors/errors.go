// Provides common diary engine error definitions.
package diary_errors

import "errors"

var (
	ErrEntryNotFound = errors.New("diary: entry not found")
	ErrStoreFailure  = errors.New("diary: store operation failed")

	ErrEnrichmentFailed = errors.New("diary: tag enrichment failed")
	ErrEnrichmentEmpty  = errors.New("diary: tag enrichment produced no tags")
	ErrClosed           = errors.New("diary: engine closed")
)
