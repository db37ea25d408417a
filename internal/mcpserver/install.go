package mcpserver

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ClientEntry is how an MCP client launches a stdio server.
type ClientEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Install registers entry under name in the "mcpServers" object of the client
// config at path. Other servers and top-level keys are kept; an existing
// entry with the same name is replaced. A missing file is created.
//
// The first time an existing file is changed, its original content is saved
// to {path}.bak so the registration can be undone by hand.
func Install(path, name string, entry ClientEntry) error {
	if name == "" || entry.Command == "" {
		return fmt.Errorf("install: server name and command are required")
	}

	cfg := map[string]any{}
	if _, err := os.Stat(path); err == nil {
		cfg, err = readJSONFile(path)
		if err != nil {
			return fmt.Errorf("reading MCP client config: %w", err)
		}
		backup := path + ".bak"
		if _, err := os.Stat(backup); os.IsNotExist(err) {
			if err := copyFile(path, backup); err != nil {
				return fmt.Errorf("saving MCP client config backup: %w", err)
			}
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	servers, _ := cfg["mcpServers"].(map[string]any)
	if servers == nil {
		servers = make(map[string]any)
	}
	servers[name] = entry
	cfg["mcpServers"] = servers

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := writeJSONFile(path, cfg); err != nil {
		return fmt.Errorf("writing MCP client config: %w", err)
	}
	return nil
}

// readJSONFile reads a JSON object file into a generic map. A file holding
// JSON null yields an empty map.
func readJSONFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	if result == nil {
		result = map[string]any{}
	}
	return result, nil
}

func writeJSONFile(path string, data map[string]any) error {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	out = append(out, '\n')
	return os.WriteFile(path, out, 0o644)
}

// copyFile copies src to dst, preserving the source file's permissions.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}

	_, copyErr := io.Copy(out, in)
	closeErr := out.Close()
	if copyErr != nil {
		return copyErr
	}
	return closeErr
}
