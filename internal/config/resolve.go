package config

import "os"

// Environment variables read at startup.
const (
	EnvConfigPath = "COMMITA_CONFIG"
	EnvLogLevel   = "COMMITA_LOG_LEVEL"
	EnvOllamaHost = "OLLAMA_HOST"
)

// ResolveString picks the first non-empty value in flag > env > file > default order.
func ResolveString(flagVal, envVal, fileVal, defVal string) string {
	if flagVal != "" {
		return flagVal
	}
	if envVal != "" {
		return envVal
	}
	if fileVal != "" {
		return fileVal
	}
	return defVal
}

// ResolvePath returns the preference document path for a --config flag value.
func ResolvePath(flagVal string) string {
	return ResolveString(flagVal, os.Getenv(EnvConfigPath), "", DefaultPath())
}
