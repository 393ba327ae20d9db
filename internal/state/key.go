package state

import "slices"

// Key identifies one state slice (a StateFileKey).
type Key string

const (
	KeyVar           Key = "var"
	KeyNetwork       Key = "network"
	KeyDevices       Key = "devices"
	KeyDisks         Key = "disks"
	KeyShares        Key = "shares"
	KeyUsers         Key = "users"
	KeyNotifications Key = "notifications"
	KeyDisplay       Key = "dynamix"
	KeyOwner         Key = "myservers"
)

// Source tells the loader which base directory a key's file lives in.
type Source string

const (
	// SourceEmhttp files are written by emhttp into its state directory.
	SourceEmhttp Source = "emhttp"
	// SourceConfig files live on the flash config directory.
	SourceConfig Source = "config"
	// SourceDerived slices have no backing file; another component builds them.
	SourceDerived Source = "derived"
)

// KeyInfo describes where a key's content comes from.
type KeyInfo struct {
	Key    Key
	File   string // relative to the source directory; empty for derived keys
	Source Source
}

var knownKeys = []KeyInfo{
	{Key: KeyVar, File: "var.ini", Source: SourceEmhttp},
	{Key: KeyNetwork, File: "network.ini", Source: SourceEmhttp},
	{Key: KeyDevices, File: "devs.ini", Source: SourceEmhttp},
	{Key: KeyDisks, File: "disks.ini", Source: SourceEmhttp},
	{Key: KeyShares, File: "shares.ini", Source: SourceEmhttp},
	{Key: KeyUsers, File: "users.ini", Source: SourceEmhttp},
	{Key: KeyDisplay, File: "plugins/dynamix/dynamix.cfg", Source: SourceConfig},
	{Key: KeyOwner, File: "plugins/dynamix.my.servers/myservers.cfg", Source: SourceConfig},
	{Key: KeyNotifications, Source: SourceDerived},
}

// KnownKeys returns every key in a stable order.
func KnownKeys() []Key {
	keys := make([]Key, 0, len(knownKeys))
	for _, info := range knownKeys {
		keys = append(keys, info.Key)
	}
	return keys
}

// FileKeys returns the keys backed by a file on disk.
func FileKeys() []Key {
	var keys []Key
	for _, info := range knownKeys {
		if info.Source != SourceDerived {
			keys = append(keys, info.Key)
		}
	}
	return keys
}

// Lookup returns the description of a known key.
func Lookup(k Key) (KeyInfo, bool) {
	i := slices.IndexFunc(knownKeys, func(info KeyInfo) bool { return info.Key == k })
	if i < 0 {
		return KeyInfo{}, false
	}
	return knownKeys[i], true
}

// ParseKey validates a user-supplied key name.
func ParseKey(raw string) (Key, bool) {
	info, ok := Lookup(Key(raw))
	return info.Key, ok
}
