package ir

// Version constants stamped on persisted revisions.
const (
	// SchemaVersion is the version of the persisted revision payload.
	SchemaVersion = "1"

	// FrameworkVersion is the appframe release.
	FrameworkVersion = "0.3.0"
)
