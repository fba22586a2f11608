package bot

import (
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/plexody/internal/logging"
	"github.com/keshon/plexody/internal/storage"
)

// LogCommand records a command execution to storage, resolving channel
// and guild names from the state cache first and the API second.
func LogCommand(s *discordgo.Session, store *storage.Storage, guildID, channelID, userID, username, commandName, param string) error {
	log := logging.WithComponent("command-log")

	channel, err := s.State.Channel(channelID)
	if err != nil {
		channel, err = s.Channel(channelID)
		if err != nil {
			log.Warn().Err(err).Str("channel", channelID).Msg("failed to fetch channel")
		}
	}
	channelName := ""
	if channel != nil {
		channelName = channel.Name
	}

	guild, err := s.State.Guild(guildID)
	if err != nil {
		guild, err = s.Guild(guildID)
		if err != nil {
			log.Warn().Err(err).Str("guild", guildID).Msg("failed to fetch guild")
		}
	}
	guildName := ""
	if guild != nil {
		guildName = guild.Name
	}

	return store.AppendCommandToHistory(guildID, storage.CommandHistoryRecord{
		ChannelID:   channelID,
		ChannelName: channelName,
		GuildName:   guildName,
		UserID:      userID,
		Username:    username,
		Command:     commandName,
		Param:       param,
		Datetime:    time.Now(),
	})
}
