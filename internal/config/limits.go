package config

// Validation limits shared between services and handlers.
const (
	MaxSessionTitleLength = 200
	MaxQueryLength        = 32_000
	MaxCreatedFileBytes   = 1 << 20 // 1 MiB, matches the ingestion cutoff
	MaxPathLength         = 1024
)
