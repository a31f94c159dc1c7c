package importer

import (
	"fmt"
	"strings"

	"github.com/canopy-network/chanalytics/pkg/db/models"
	"github.com/canopy-network/chanalytics/pkg/fetcher"
)

// Normalize trims identifier and ensures the leading "@".
func Normalize(identifier string) (string, error) {
	id := strings.TrimSpace(identifier)
	id = strings.TrimLeft(id, "@")
	if id == "" {
		return "", fmt.Errorf("channel identifier is blank")
	}
	if strings.ContainsAny(id, " \t\n/") {
		return "", fmt.Errorf("channel identifier %q contains invalid characters", identifier)
	}
	return "@" + id, nil
}

// validate checks the required fields of a snapshot before anything is written.
func validate(snap *fetcher.Snapshot) error {
	c := snap.Channel
	var missing []string
	if strings.TrimSpace(string(c.ExternalID)) == "" {
		missing = append(missing, "external id")
	}
	if strings.TrimSpace(c.Username) == "" {
		missing = append(missing, "username")
	}
	if strings.TrimSpace(c.Title) == "" {
		missing = append(missing, "title")
	}
	if len(missing) > 0 {
		return fmt.Errorf("channel %s is missing %s", c.ExternalID, strings.Join(missing, ", "))
	}
	if c.SubscriberCount < 0 {
		return fmt.Errorf("channel %s has negative subscriber count", c.ExternalID)
	}

	for i, p := range snap.Posts {
		if strings.TrimSpace(string(p.ExternalMessageID)) == "" {
			return fmt.Errorf("post %d is missing its message id", i)
		}
		if p.PostedAt.IsZero() {
			return fmt.Errorf("post %s is missing its publication time", p.ExternalMessageID)
		}
		if p.Views < 0 || p.Forwards < 0 || p.Replies < 0 {
			return fmt.Errorf("post %s has negative counters", p.ExternalMessageID)
		}
	}
	return nil
}

func channelFromSnapshot(snap *fetcher.Snapshot) *models.Channel {
	return &models.Channel{
		ExternalID:      string(snap.Channel.ExternalID),
		Username:        snap.Channel.Username,
		Title:           snap.Channel.Title,
		Description:     snap.Channel.Description,
		SubscriberCount: snap.Channel.SubscriberCount,
	}
}

func postFromSnapshot(channelID int64, p fetcher.PostData) *models.Post {
	return &models.Post{
		ChannelID:         channelID,
		ExternalMessageID: string(p.ExternalMessageID),
		Text:              p.Text,
		Views:             p.Views,
		Forwards:          p.Forwards,
		Replies:           p.Replies,
		PostedAt:          p.PostedAt.UTC(),
	}
}
