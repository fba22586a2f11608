package discord

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/keshon/plexody/internal/command"
	"github.com/keshon/plexody/pkg/cmd"
)

// createLimiter paces command create calls across all guilds. Discord
// tolerates short bursts but throttles sustained registration traffic.
var createLimiter = rate.NewLimiter(rate.Every(25*time.Millisecond), 5)

// registerCommands syncs the guild's slash commands with Discord:
// obsolete ones are deleted, and commands whose definition hash changed
// since the last sync are created or updated.
func (b *Bot) registerCommands(guildID string) error {
	appID, err := b.appID()
	if err != nil {
		return err
	}

	remote, _ := b.dg.ApplicationCommands(appID, guildID)
	remoteByName := make(map[string]*discordgo.ApplicationCommand, len(remote))
	for _, c := range remote {
		remoteByName[c.Name] = c
	}

	local := buildCommandDefinitions()
	cached := loadCommandHashes(guildID)

	b.deleteObsoleteCommands(appID, guildID, remoteByName, local)
	b.upsertChangedCommands(appID, guildID, local, cached)
	return nil
}

func (b *Bot) appID() (string, error) {
	if b.dg.State.User != nil && b.dg.State.User.ID != "" {
		return b.dg.State.User.ID, nil
	}
	user, err := b.dg.User("@me")
	if err != nil {
		return "", fmt.Errorf("failed to fetch self: %w", err)
	}
	return user.ID, nil
}

// buildCommandDefinitions collects the slash definition of every
// registered command.
func buildCommandDefinitions() []*discordgo.ApplicationCommand {
	var defs []*discordgo.ApplicationCommand
	for _, c := range cmd.DefaultRegistry.All() {
		if def := commandDefinition(c); def != nil {
			defs = append(defs, def)
		}
	}
	return defs
}

func commandDefinition(c cmd.Command) *discordgo.ApplicationCommand {
	sp, ok := cmd.Root(c).(command.SlashProvider)
	if !ok {
		return nil
	}
	def := sp.SlashDefinition()
	if def == nil {
		return nil
	}
	if def.Type == 0 {
		def.Type = discordgo.ChatApplicationCommand
	}
	return def
}

// deleteObsoleteCommands removes remote commands the registry no longer
// knows.
func (b *Bot) deleteObsoleteCommands(appID, guildID string, remote map[string]*discordgo.ApplicationCommand, local []*discordgo.ApplicationCommand) {
	localNames := make(map[string]struct{}, len(local))
	for _, d := range local {
		localNames[d.Name] = struct{}{}
	}

	hashes := loadCommandHashes(guildID)
	dirty := false
	for name, rc := range remote {
		if _, exists := localNames[name]; exists {
			continue
		}
		b.log.Info().Str("guild", guildID).Str("command", name).Msg("deleting obsolete command")
		if err := b.dg.ApplicationCommandDelete(appID, guildID, rc.ID); err != nil {
			b.log.Error().Err(err).Str("guild", guildID).Str("command", name).Msg("failed to delete command")
			continue
		}
		delete(hashes, name)
		dirty = true
	}
	if dirty {
		saveCommandHashes(guildID, hashes)
	}
}

// upsertChangedCommands creates or updates commands whose hash differs
// from the cached value, pacing the API calls.
func (b *Bot) upsertChangedCommands(appID, guildID string, defs []*discordgo.ApplicationCommand, cached map[string]string) {
	var changed []*discordgo.ApplicationCommand
	newHashes := make(map[string]string, len(defs))
	for _, d := range defs {
		h := hashCommand(d)
		newHashes[d.Name] = h
		if cached[d.Name] != h {
			changed = append(changed, d)
		}
	}
	if len(changed) == 0 {
		return
	}

	b.log.Info().Str("guild", guildID).Int("count", len(changed)).Msg("registering changed commands")
	for _, d := range changed {
		if err := createLimiter.Wait(context.Background()); err != nil {
			return
		}
		if _, err := b.dg.ApplicationCommandCreate(appID, guildID, d); err != nil {
			b.log.Error().Err(err).Str("guild", guildID).Str("command", d.Name).Msg("failed to register command")
		} else {
			b.log.Info().Str("guild", guildID).Str("command", d.Name).Msg("command registered")
		}
	}

	merged := loadCommandHashes(guildID)
	for k, v := range newHashes {
		merged[k] = v
	}
	saveCommandHashes(guildID, merged)
}

// hashCommand produces a deterministic hash of a command definition,
// options included, so unchanged commands skip the API round-trip.
func hashCommand(def *discordgo.ApplicationCommand) string {
	normalized := map[string]interface{}{
		"name":        def.Name,
		"description": def.Description,
		"type":        def.Type,
	}
	if len(def.Options) > 0 {
		normalized["options"] = normalizeOptions(def.Options)
	}
	data, _ := json.Marshal(normalized)
	return fmt.Sprintf("%x", sha1.Sum(data))
}

// normalizeOptions strips runtime-only fields and sorts options so the
// hash does not depend on registration order.
func normalizeOptions(opts []*discordgo.ApplicationCommandOption) []map[string]interface{} {
	normalized := make([]map[string]interface{}, len(opts))
	for i, o := range opts {
		entry := map[string]interface{}{
			"name":        o.Name,
			"description": o.Description,
			"type":        o.Type,
			"required":    o.Required,
		}
		if len(o.Choices) > 0 {
			choices := make([]map[string]interface{}, len(o.Choices))
			for j, c := range o.Choices {
				choices[j] = map[string]interface{}{
					"name":  c.Name,
					"value": c.Value,
				}
			}
			entry["choices"] = choices
		}
		if len(o.Options) > 0 {
			entry["options"] = normalizeOptions(o.Options)
		}
		normalized[i] = entry
	}

	sort.Slice(normalized, func(i, j int) bool {
		return normalized[i]["name"].(string) < normalized[j]["name"].(string)
	})
	return normalized
}
