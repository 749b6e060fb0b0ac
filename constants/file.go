package constants

import "strings"

// StoreDriver selects the job store backend.
type StoreDriver string

const (
	StoreMemory   StoreDriver = "memory"
	StorePostgres StoreDriver = "postgres"
	StoreSQLite   StoreDriver = "sqlite"
	StoreRedis    StoreDriver = "redis"
)

// CorpusExtensions holds the file extensions accepted for corpus files.
var CorpusExtensions = map[string]struct{}{
	"json": {},
	"yaml": {},
	"yml":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsYAMLExt reports whether ext names a YAML file.
func IsYAMLExt(ext string) bool {
	e := NormalizeExt(ext)
	return e == "yaml" || e == "yml"
}
