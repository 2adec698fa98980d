package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Default registry file names. The .local variant is preferred for local
// development so developers can point at servers on their own machine
// without touching the checked-in file.
const (
	registryFileName      = "mcp-config.json"
	registryLocalFileName = "mcp-config.local.json"
)

// InDocker reports whether the process runs in a containerized environment,
// signalled by DOCKER_ENV=true (case-insensitive).
func InDocker() bool {
	return strings.EqualFold(os.Getenv("DOCKER_ENV"), "true")
}

// RegistryPath selects the MCP registry file under baseDir. Outside a
// container it prefers mcp-config.local.json when that file exists; in all
// other cases it falls back to mcp-config.json.
//
// The selection is a pure function of (inDocker, file existence); the only
// side effect is the existence check itself.
func RegistryPath(baseDir string, inDocker bool) string {
	local := filepath.Join(baseDir, registryLocalFileName)
	if !inDocker {
		if _, err := os.Stat(local); err == nil {
			return local
		}
	}
	return filepath.Join(baseDir, registryFileName)
}

// OllamaBaseURL returns the Ollama endpoint for the current environment:
// the docker-compose service name inside a container, localhost otherwise.
func OllamaBaseURL(inDocker bool) string {
	if inDocker {
		return "http://ollama:11434"
	}
	return "http://localhost:11434"
}
