package domain

// RetrievalMode selects the retrieval strategy.
type RetrievalMode string

const (
	// RetrievalModeVector uses dense vector similarity only.
	RetrievalModeVector RetrievalMode = "vector"

	// RetrievalModeText uses keyword search only. Requires a scope;
	// without one the result is empty by design.
	RetrievalModeText RetrievalMode = "text"

	// RetrievalModeHybrid runs both strategies concurrently and fuses
	// the results. This is the default.
	RetrievalModeHybrid RetrievalMode = "hybrid"
)

// MetadataFilter restricts eligible chunks by metadata-field membership:
// a chunk passes when its value for Field is one of Values.
type MetadataFilter struct {
	// Field is the metadata JSON key, e.g. "file_id".
	Field string

	// Values is the allowed set.
	Values []string
}

// RetrievalOptions configures a single retrieval round.
type RetrievalOptions struct {
	// TopK is the maximum number of primary results. Zero means the
	// service default.
	TopK int

	// Mode selects the retrieval strategy. Empty means hybrid.
	Mode RetrievalMode

	// DoExtend widens the first retrieval round to give rerankers more
	// material and appends thumbnail chunks to the result.
	DoExtend bool

	// ThumbnailCount caps appended thumbnails. Zero means the default.
	ThumbnailCount int

	// Scope restricts retrieval to the given chunk ids.
	Scope []string

	// Filters restricts retrieval by metadata-field membership.
	Filters []MetadataFilter
}
