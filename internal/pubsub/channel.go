package pubsub

import "slices"

// Channel names a topic. The names are part of the contract with downstream
// subscription layers and must not change.
type Channel string

const (
	ChannelDisplay Channel = "DISPLAY"
	ChannelInfo    Channel = "INFO"

	// ChannelNotification carries two payloads: a notify.Record for each newly
	// accepted notification, and an ingest.SliceChanged (key "notifications",
	// Typed a notify.Overview) whenever the unread counts change.
	ChannelNotification Channel = "NOTIFICATION"

	ChannelOwner            Channel = "OWNER"
	ChannelServers          Channel = "SERVERS"
	ChannelConnectionStatus Channel = "CONNECTION_STATUS"
	ChannelArray            Channel = "ARRAY"
	ChannelShares           Channel = "SHARES"
	ChannelUsers            Channel = "USERS"
	ChannelNetwork          Channel = "NETWORK"
)

var allChannels = []Channel{
	ChannelDisplay,
	ChannelInfo,
	ChannelNotification,
	ChannelOwner,
	ChannelServers,
	ChannelConnectionStatus,
	ChannelArray,
	ChannelShares,
	ChannelUsers,
	ChannelNetwork,
}

// Channels returns every known channel.
func Channels() []Channel {
	return slices.Clone(allChannels)
}

// ParseChannel reports whether raw names a known channel.
func ParseChannel(raw string) (Channel, bool) {
	c := Channel(raw)
	return c, slices.Contains(allChannels, c)
}

func (c Channel) String() string { return string(c) }
