package plex

import "encoding/xml"

// MediaContainer is the envelope of every Plex Media Server response.
// Only the music-related children the bot consumes are mapped.
type MediaContainer struct {
	XMLName     xml.Name    `xml:"MediaContainer"`
	Size        int         `xml:"size,attr"`
	Tracks      []Track     `xml:"Track"`
	Directories []Directory `xml:"Directory"`
	Playlists   []Playlist  `xml:"Playlist"`
}

// Track is one audio item. GrandparentTitle is the artist and
// ParentTitle the album; Duration is in milliseconds.
type Track struct {
	RatingKey        string  `xml:"ratingKey,attr"`
	Key              string  `xml:"key,attr"`
	Title            string  `xml:"title,attr"`
	GrandparentTitle string  `xml:"grandparentTitle,attr"`
	ParentTitle      string  `xml:"parentTitle,attr"`
	Duration         int64   `xml:"duration,attr"`
	Thumb            string  `xml:"thumb,attr"`
	Media            []Media `xml:"Media"`
}

type Media struct {
	Parts []Part `xml:"Part"`
}

// Part points at the playable file; Key is a server-relative path.
type Part struct {
	Key string `xml:"key,attr"`
}

// Directory is an album or artist entry, depending on Type.
type Directory struct {
	RatingKey   string `xml:"ratingKey,attr"`
	Key         string `xml:"key,attr"`
	Title       string `xml:"title,attr"`
	Type        string `xml:"type,attr"`
	ParentTitle string `xml:"parentTitle,attr"`
	LeafCount   int    `xml:"leafCount,attr"`
	Thumb       string `xml:"thumb,attr"`
}

// Playlist is an audio playlist.
type Playlist struct {
	RatingKey string `xml:"ratingKey,attr"`
	Title     string `xml:"title,attr"`
	Smart     int    `xml:"smart,attr"`
	LeafCount int    `xml:"leafCount,attr"`
	Duration  int64  `xml:"duration,attr"`
}
