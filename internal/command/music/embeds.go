package music

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/plexody/internal/bot"
	"github.com/keshon/plexody/internal/music/session"
	"github.com/keshon/plexody/internal/music/track"
	"github.com/keshon/plexody/pkg/util"
)

const queuePageSize = 21

// NowPlayingEmbed builds the embed posted for the current track.
func NowPlayingEmbed(t track.Descriptor, paused bool) *discordgo.MessageEmbed {
	title := "🎶 Now Playing"
	if paused {
		title = "⏸️ Paused"
	}

	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: fmt.Sprintf("**%s**", t.DisplayTitle()),
		Color:       bot.EmbedColor,
	}
	if t.Artist != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Artist", Value: t.Artist, Inline: true,
		})
	}
	if d := util.FormatTrackDuration(t.Duration); d != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Duration", Value: d, Inline: true,
		})
	}
	if t.ArtworkURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: t.ArtworkURL}
	}
	embed.Footer = &discordgo.MessageEmbedFooter{Text: sourceLabel(t.Source)}
	return embed
}

// TransportRow is the button row under the now-playing embed. Custom
// IDs start with the command name so component routing finds us.
func TransportRow() discordgo.MessageComponent {
	return discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{Label: "Pause", Style: discordgo.SecondaryButton, CustomID: "music_pause_button"},
		discordgo.Button{Label: "Play", Style: discordgo.SuccessButton, CustomID: "music_play_button"},
		discordgo.Button{Label: "Skip", Style: discordgo.PrimaryButton, CustomID: "music_skip_button"},
		discordgo.Button{Label: "Shuffle", Style: discordgo.PrimaryButton, CustomID: "music_shuffle_button"},
		discordgo.Button{Label: "Kill", Style: discordgo.DangerButton, CustomID: "music_kill_button"},
	}}
}

// QueueEmbed renders one page of the queue, the current track on top.
// It returns the page count so callers can validate page numbers.
func QueueEmbed(st session.Status, page int) (*discordgo.MessageEmbed, int) {
	lines := queueLines(st)
	numPages := (len(lines)-1)/queuePageSize + 1
	if numPages < 1 {
		numPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > numPages {
		page = numPages
	}

	start := (page - 1) * queuePageSize
	end := start + queuePageSize
	if end > len(lines) {
		end = len(lines)
	}

	embed := &discordgo.MessageEmbed{
		Title: "🎵 Current Queue",
		Color: bot.EmbedColor,
	}
	// Two entries per field, inline, like the original layout.
	for i := start; i < end; i += 2 {
		value := fmt.Sprintf("**%d.** %s\n\n", i+1, lines[i])
		if i+1 < end {
			value += fmt.Sprintf("**%d.** %s\n\n", i+2, lines[i+1])
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "​", Value: value, Inline: true,
		})
	}
	embed.Footer = &discordgo.MessageEmbedFooter{
		Text: fmt.Sprintf("Page %d/%d", page, numPages),
	}
	return embed, numPages
}

// QueuePages reports how many pages the queue embed spans.
func QueuePages(st session.Status) int {
	n := (len(queueLines(st))-1)/queuePageSize + 1
	if n < 1 {
		n = 1
	}
	return n
}

// QueuePagingRow is the Back/Next row under the queue embed. The page
// rides along in the custom IDs so the handler is stateless.
func QueuePagingRow(page int) discordgo.MessageComponent {
	return discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{Label: "Back", Style: discordgo.PrimaryButton, CustomID: fmt.Sprintf("music_queue_back:%d", page)},
		discordgo.Button{Label: "Next", Style: discordgo.PrimaryButton, CustomID: fmt.Sprintf("music_queue_next:%d", page)},
	}}
}

func queueLines(st session.Status) []string {
	var lines []string
	if st.Current != nil {
		lines = append(lines, fmt.Sprintf("🔊 Currently Playing: %s%s",
			st.Current.DisplayTitle(), durationSuffix(st.Current.Duration)))
	}
	for _, t := range st.Queue {
		lines = append(lines, t.DisplayTitle()+durationSuffix(t.Duration))
	}
	return lines
}

func durationSuffix(d time.Duration) string {
	if s := util.FormatTrackDuration(d); s != "" {
		return " (" + s + ")"
	}
	return ""
}

func sourceLabel(source string) string {
	switch source {
	case track.SourcePlex:
		return "Plex"
	case track.SourceYouTube:
		return "YouTube"
	case track.SourceStream:
		return "Stream"
	default:
		return source
	}
}
