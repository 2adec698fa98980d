package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"

	"github.com/pcancela/agentic-tasks-template/internal/mcp"
)

// Sentinel errors for MCP registry loading and resolution. Check with
// errors.Is.
var (
	// ErrRegistryNotFound marks a missing registry file. Fatal at startup.
	ErrRegistryNotFound = errors.New("mcp registry file not found")

	// ErrRegistryMalformed marks a registry file that is not valid JSON.
	// Fatal at startup.
	ErrRegistryMalformed = errors.New("mcp registry file is not valid JSON")

	// ErrUnknownServer marks a lookup for a server identifier that is not in
	// the registry.
	ErrUnknownServer = errors.New("unknown server identifier")

	// ErrUnsupportedServerType marks a server entry whose type tag is not
	// one of the supported transports.
	ErrUnsupportedServerType = errors.New("unsupported server type")

	// ErrInvalidServerEntry marks a server entry with a supported type tag
	// that is missing a field the transport cannot work without.
	ErrInvalidServerEntry = errors.New("invalid server entry")
)

// Server type tags as they appear in the registry file.
const (
	serverTypeStdIO          = "StdIO"
	serverTypeStreamableHTTP = "streamable-http"
	serverTypeSSE            = "sse"
)

// serverEntry is the raw JSON shape of one registry entry.
type serverEntry struct {
	Type    string            `json:"type"`
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Env     map[string]string `json:"env"`
}

// registryFile is the raw JSON shape of the registry file.
type registryFile struct {
	MCPServers map[string]serverEntry `json:"mcpServers"`
}

// Registry holds the raw tool-server configuration loaded once at process
// startup. It is immutable after loading and safe for concurrent reads.
type Registry struct {
	servers map[string]serverEntry
}

// LoadRegistry reads the JSON registry file at path.
//
// A missing file yields an error wrapping [ErrRegistryNotFound]; invalid JSON
// yields an error wrapping [ErrRegistryMalformed]. Both are fatal: the
// process must not serve requests without at least an attempt to load its
// tool servers. A file without any mcpServers entries is valid and yields an
// empty registry.
func LoadRegistry(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: open %q: %w", path, ErrRegistryNotFound)
		}
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	reg, err := LoadRegistryFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return reg, nil
}

// LoadRegistryFromReader decodes a JSON registry from r. Useful in tests
// where registries are constructed from string literals.
func LoadRegistryFromReader(r io.Reader) (*Registry, error) {
	var file registryFile
	dec := json.NewDecoder(r)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistryMalformed, err)
	}
	// The decoder stops at the end of the first JSON value; anything after
	// it means the file is not a single registry object.
	if err := dec.Decode(new(json.RawMessage)); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after registry object", ErrRegistryMalformed)
	}
	if file.MCPServers == nil {
		file.MCPServers = map[string]serverEntry{}
	}
	return &Registry{servers: file.MCPServers}, nil
}

// Len returns the number of entries in the registry, valid or not.
func (r *Registry) Len() int {
	return len(r.servers)
}

// ServerIDs returns the registry's server identifiers in sorted order.
func (r *Registry) ServerIDs() []string {
	return slices.Sorted(maps.Keys(r.servers))
}

// Resolve converts the entry for serverID into a connection descriptor.
//
// It returns an error wrapping [ErrUnknownServer] when the identifier is not
// present, one wrapping [ErrUnsupportedServerType] when the entry's type tag
// matches none of the supported transports, and one wrapping
// [ErrInvalidServerEntry] when the entry lacks the command or URL its
// transport requires.
func (r *Registry) Resolve(serverID string) (mcp.ServerConfig, error) {
	entry, ok := r.servers[serverID]
	if !ok {
		return mcp.ServerConfig{}, fmt.Errorf("config: server %q: %w", serverID, ErrUnknownServer)
	}

	switch entry.Type {
	case serverTypeStdIO:
		if entry.Command == "" {
			return mcp.ServerConfig{}, fmt.Errorf("config: server %q has no command: %w", serverID, ErrInvalidServerEntry)
		}
		return mcp.ServerConfig{
			Name:      serverID,
			Transport: mcp.TransportStdio,
			Command:   entry.Command,
			Args:      entry.Args,
			Env:       entry.Env,
		}, nil

	case serverTypeStreamableHTTP:
		if entry.URL == "" {
			return mcp.ServerConfig{}, fmt.Errorf("config: server %q has no url: %w", serverID, ErrInvalidServerEntry)
		}
		return mcp.ServerConfig{
			Name:      serverID,
			Transport: mcp.TransportStreamableHTTP,
			URL:       entry.URL,
			Headers:   entry.Headers,
		}, nil

	case serverTypeSSE:
		if entry.URL == "" {
			return mcp.ServerConfig{}, fmt.Errorf("config: server %q has no url: %w", serverID, ErrInvalidServerEntry)
		}
		return mcp.ServerConfig{
			Name:      serverID,
			Transport: mcp.TransportSSE,
			URL:       entry.URL,
			Headers:   entry.Headers,
		}, nil

	default:
		return mcp.ServerConfig{}, fmt.Errorf("config: server %q has type %q: %w", serverID, entry.Type, ErrUnsupportedServerType)
	}
}

// ResolveAll resolves every identifier in the registry and returns the
// descriptors that resolved successfully. Entries that fail resolution are
// skipped with a logged warning — partial success is the intended behavior
// and is never escalated to an error.
func (r *Registry) ResolveAll() []mcp.ServerConfig {
	descriptors := make([]mcp.ServerConfig, 0, len(r.servers))
	for _, id := range r.ServerIDs() {
		desc, err := r.Resolve(id)
		if err != nil {
			slog.Warn("skipping tool server", "server", id, "err", err)
			continue
		}
		descriptors = append(descriptors, desc)
	}
	return descriptors
}
