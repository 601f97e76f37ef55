package gradebook

import "fmt"

// Channel groups notes by the kind of policy that wrote them.
type Channel string

// Note channels.
const (
	ChannelLates      Channel = "lates"
	ChannelDrops      Channel = "drops"
	ChannelAttempts   Channel = "attempts"
	ChannelRedemption Channel = "redemption"
	ChannelMisc       Channel = "misc"
)

// Channels lists every known channel in display order.
func Channels() []Channel {
	return []Channel{ChannelLates, ChannelDrops, ChannelAttempts, ChannelRedemption, ChannelMisc}
}

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	for _, known := range Channels() {
		if c == known {
			return true
		}
	}
	return false
}

// Note is one human-readable record of a policy action.
type Note struct {
	Channel Channel `json:"channel"`
	Message string  `json:"message"`
}

func (n Note) String() string { return fmt.Sprintf("[%s] %s", n.Channel, n.Message) }
