// Package fetcher obtains channel snapshots from the external fetcher process.
package fetcher

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
)

var (
	// ErrFetch means the fetcher could not produce a snapshot.
	ErrFetch = errors.New("fetch failed")
	// ErrParse means the fetcher output could not be decoded.
	ErrParse = errors.New("unparsable fetcher output")
)

// ID is an external identifier the fetcher may emit as a JSON string or number.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	if _, err := strconv.ParseInt(string(data), 10, 64); err != nil {
		return fmt.Errorf("identifier %s is neither a string nor an integer", data)
	}
	*id = ID(data)
	return nil
}

// Snapshot is the fetcher payload for one channel.
type Snapshot struct {
	Success bool        `json:"success"`
	Channel ChannelData `json:"channel"`
	Posts   []PostData  `json:"posts"`
	Error   string      `json:"error"`
}

type ChannelData struct {
	ExternalID      ID     `json:"telegram_id"`
	Username        string `json:"username"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	SubscriberCount int64  `json:"subscriber_count"`
}

type PostData struct {
	ExternalMessageID ID        `json:"telegram_message_id"`
	Text              string    `json:"text"`
	Views             int64     `json:"views"`
	Forwards          int64     `json:"forwards"`
	Replies           int64     `json:"replies"`
	PostedAt          time.Time `json:"posted_at"`
}

// Decode parses fetcher output. Undecodable data wraps ErrParse; a decoded
// payload reporting failure wraps ErrFetch with the fetcher's message.
func Decode(data []byte) (*Snapshot, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrParse)
	}

	var snap Snapshot
	if err := sonic.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if !snap.Success {
		msg := snap.Error
		if msg == "" {
			msg = "fetcher reported failure"
		}
		return nil, fmt.Errorf("%w: %s", ErrFetch, msg)
	}
	return &snap, nil
}
