package client

import (
	"errors"
	"time"

	"github.com/livekit/protocol/auth"

	"presence-service/internal/config"
)

const callTokenTTL = 24 * time.Hour

// LiveKitClient issues room-join tokens for the media server.
type LiveKitClient struct {
	url       string
	apiKey    string
	apiSecret string
}

func NewLiveKitClient(cfg config.LiveKitConfig) (*LiveKitClient, error) {
	if !cfg.Enabled() {
		return nil, errors.New("LiveKit credentials not configured")
	}
	return &LiveKitClient{url: cfg.URL, apiKey: cfg.APIKey, apiSecret: cfg.APISecret}, nil
}

// IssueToken grants identity permission to join roomName.
func (c *LiveKitClient) IssueToken(roomName, identity, displayName string) (string, error) {
	at := auth.NewAccessToken(c.apiKey, c.apiSecret)
	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     roomName,
	}
	at.AddGrant(grant).
		SetIdentity(identity).
		SetName(displayName).
		SetValidFor(callTokenTTL)

	return at.ToJWT()
}

func (c *LiveKitClient) URL() string {
	return c.url
}
