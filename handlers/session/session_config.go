package session

type SessionConfig struct {
	TranscriptDir string `json:"transcript_dir"` // When set, each session writes a JSON-lines transcript here.
}

// DefaultConfig returns a SessionConfig with transcripts disabled.
func DefaultConfig() SessionConfig {
	return SessionConfig{}
}
