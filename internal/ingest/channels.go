package ingest

import (
	"git.home.luguber.info/inful/nasstate/internal/pubsub"
	"git.home.luguber.info/inful/nasstate/internal/state"
)

var keyChannels = map[state.Key][]pubsub.Channel{
	state.KeyVar:           {pubsub.ChannelInfo, pubsub.ChannelServers},
	state.KeyDevices:       {pubsub.ChannelArray},
	state.KeyDisks:         {pubsub.ChannelArray},
	state.KeyShares:        {pubsub.ChannelShares},
	state.KeyUsers:         {pubsub.ChannelUsers},
	state.KeyNetwork:       {pubsub.ChannelNetwork},
	state.KeyDisplay:       {pubsub.ChannelDisplay},
	state.KeyOwner:         {pubsub.ChannelOwner, pubsub.ChannelServers},
	state.KeyNotifications: {pubsub.ChannelNotification},
}

// ChannelsFor returns the channels a change of k is published on.
func ChannelsFor(k state.Key) []pubsub.Channel {
	return append([]pubsub.Channel(nil), keyChannels[k]...)
}
