package limits

// Token estimation is a byte-length approximation.
const BytesPerToken = 4

// Cumulative session budget thresholds, in estimated tokens.
const (
	DefaultSuggestTokens = 75_000
	DefaultWarnTokens    = 100_000
	DefaultBlockTokens   = 150_000 // leaves room for the conversation itself
)

// Per-read thresholds used by the large file guard.
const (
	LargeFileWarnBytes  = 100_000
	LargeFileBlockBytes = 500_000
	MaxReadTokens       = 25_000 // Claude Code's per-Read ceiling
)

// EstimateTokens converts a byte count to an estimated token count.
// Negative input counts as zero.
func EstimateTokens(bytes int64) int64 {
	if bytes <= 0 {
		return 0
	}
	return bytes / BytesPerToken
}
