// Package storage persists per-guild bot state: the bound music text
// channel, playback history and the command log. It sits on a single
// JSON-file datastore, so records survive restarts without any
// database to run.
package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/keshon/datastore"
)

const (
	commandHistoryLimit int = 20
	tracksHistoryLimit  int = 20
)

type Storage struct {
	ds *datastore.DataStore
}

// Record is everything the bot remembers about one guild.
type Record struct {
	MusicChannelID      string                 `json:"music_channel_id,omitempty"`
	LastVoiceChannelID  string                 `json:"last_voice_channel_id,omitempty"`
	NowPlayingMessageID string                 `json:"now_playing_message_id,omitempty"`
	TracksHistory       []TrackHistoryRecord   `json:"tracks_history,omitempty"`
	CommandsHistoryList []CommandHistoryRecord `json:"cmd_history,omitempty"`
}

// TrackHistoryRecord is one played track, newest appended last.
type TrackHistoryRecord struct {
	Title    string        `json:"title"`
	Artist   string        `json:"artist,omitempty"`
	Source   string        `json:"source"`
	Duration time.Duration `json:"duration,omitempty"`
	PlayedAt time.Time     `json:"played_at"`
}

type CommandHistoryRecord struct {
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	GuildName   string    `json:"guild_name"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Command     string    `json:"command"`
	Param       string    `json:"param"`
	Datetime    time.Time `json:"datetime"`
}

func New(filePath string) (*Storage, error) {
	ds, err := datastore.New(filePath)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds}, nil
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

// getOrCreateGuildRecord loads the guild's record, creating an empty
// one on first sight. The datastore hands back generic maps after a
// reload, so the record is rebuilt through a JSON round trip.
func (s *Storage) getOrCreateGuildRecord(guildID string) (*Record, error) {
	data, exists := s.ds.Get(guildID)
	if !exists {
		newRecord := &Record{}
		s.ds.Add(guildID, newRecord)
		return newRecord, nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("error marshalling data: %w", err)
	}

	var record Record
	err = json.Unmarshal(jsonData, &record)
	if err != nil {
		return nil, fmt.Errorf("error unmarshalling to *Record: %w", err)
	}

	if len(record.CommandsHistoryList) > commandHistoryLimit {
		record.CommandsHistoryList = record.CommandsHistoryList[len(record.CommandsHistoryList)-commandHistoryLimit:]
	}
	if len(record.TracksHistory) > tracksHistoryLimit {
		record.TracksHistory = record.TracksHistory[len(record.TracksHistory)-tracksHistoryLimit:]
	}

	return &record, nil
}
