package routing

import (
	"encoding/json"

	"github.com/google/uuid"
	"overlay-router/internal/common/errors"
)

// Envelope wraps an application message travelling through gateways
type Envelope struct {
	ID                   string `json:"id"`
	DestinationMemberID  string `json:"destination_member_id"`
	ProtocolName         string `json:"protocol"`
	DestinationCommunity string `json:"destination_community"`
	OriginMemberID       string `json:"origin_member_id,omitempty"`
	Hops                 int    `json:"hops"`
	Payload              []byte `json:"payload"`
}

// NewEnvelope wraps payload for memberID in community
func NewEnvelope(memberID, protocolName, community string, payload []byte) *Envelope {
	return &Envelope{
		ID:                   uuid.NewString(),
		DestinationMemberID:  memberID,
		ProtocolName:         protocolName,
		DestinationCommunity: community,
		Payload:              payload,
	}
}

// Encode serializes the envelope
func (e *Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, errors.FormatError("encode envelope", err)
	}
	return data, nil
}

// Rewrap returns the envelope as sent on the next hop
func (e *Envelope) Rewrap() *Envelope {
	next := *e
	next.Hops++
	return &next
}

// DecodeEnvelope parses an envelope and checks its addressing fields
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, errors.FormatError("malformed envelope", err)
	}

	switch {
	case e.DestinationMemberID == "":
		return nil, errors.FormatError("envelope has no destination member", nil)
	case e.DestinationCommunity == "":
		return nil, errors.FormatError("envelope has no destination community", nil)
	case e.ProtocolName == "":
		return nil, errors.FormatError("envelope has no protocol", nil)
	case e.Hops < 0:
		return nil, errors.FormatError("envelope hop count is negative", nil)
	}
	return &e, nil
}
