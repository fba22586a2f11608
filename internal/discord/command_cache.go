package discord

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Command definition hashes are cached per guild under data/commands so
// restarts skip re-registering unchanged commands.

func guildCachePath(guildID string) string {
	return filepath.Join("data", "commands", guildID+".json")
}

func loadCommandHashes(guildID string) map[string]string {
	hashes := make(map[string]string)
	file, err := os.ReadFile(guildCachePath(guildID))
	if err == nil {
		_ = json.Unmarshal(file, &hashes)
	}
	return hashes
}

func saveCommandHashes(guildID string, hashes map[string]string) {
	path := guildCachePath(guildID)
	_ = os.MkdirAll(filepath.Dir(path), 0755)
	data, _ := json.MarshalIndent(hashes, "", "  ")
	_ = os.WriteFile(path, data, 0644)
}
