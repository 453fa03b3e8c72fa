package redis

const (
	// KeyPrefixCompletion is the prefix for cached completion results.
	KeyPrefixCompletion = "llmhub:completion:"
)

// CompletionKey returns the Redis key for a cached completion.
func CompletionKey(digest string) string {
	return KeyPrefixCompletion + digest
}
