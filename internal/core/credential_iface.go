package core

//go:generate mockgen -source=credential_iface.go -destination=mocks/mock_credentials.go -package=mocks

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// IceConfiguration is what a client needs to reach the TURN/STUN servers.
type IceConfiguration struct {
	ICEServers         []webrtc.ICEServer `json:"iceServers"`
	ICETransportPolicy string             `json:"iceTransportPolicy,omitempty"`
}

// CredentialProvider issues connectivity server credentials for a participant.
type CredentialProvider interface {
	Credentials(ctx context.Context, name string) (IceConfiguration, error)
}
