package storage

// SetMusicChannel binds the text channel playback announcements go to.
func (s *Storage) SetMusicChannel(guildID, channelID string) error {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}

	record.MusicChannelID = channelID
	s.ds.Add(guildID, record)
	return nil
}

func (s *Storage) GetMusicChannel(guildID string) (string, error) {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return "", err
	}
	return record.MusicChannelID, nil
}

// SetLastVoiceChannel remembers where the bot last played.
func (s *Storage) SetLastVoiceChannel(guildID, channelID string) error {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}

	record.LastVoiceChannelID = channelID
	s.ds.Add(guildID, record)
	return nil
}

func (s *Storage) GetLastVoiceChannel(guildID string) (string, error) {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return "", err
	}
	return record.LastVoiceChannelID, nil
}

// SetNowPlayingMessage stores the ID of the current now-playing embed.
// The notifier deletes the previous one before posting a fresh embed,
// keeping a single card per guild.
func (s *Storage) SetNowPlayingMessage(guildID, messageID string) error {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}

	record.NowPlayingMessageID = messageID
	s.ds.Add(guildID, record)
	return nil
}

func (s *Storage) GetNowPlayingMessage(guildID string) (string, error) {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return "", err
	}
	return record.NowPlayingMessageID, nil
}

// AppendTrackToHistory logs a started track, keeping only the newest
// records.
func (s *Storage) AppendTrackToHistory(guildID string, tr TrackHistoryRecord) error {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}

	record.TracksHistory = append(record.TracksHistory, tr)
	if len(record.TracksHistory) > tracksHistoryLimit {
		record.TracksHistory = record.TracksHistory[len(record.TracksHistory)-tracksHistoryLimit:]
	}
	s.ds.Add(guildID, record)
	return nil
}

// FetchTracksHistory returns the guild's played tracks, oldest first.
func (s *Storage) FetchTracksHistory(guildID string) ([]TrackHistoryRecord, error) {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return record.TracksHistory, nil
}
