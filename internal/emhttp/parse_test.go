package emhttp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/nasstate/internal/ini"
	"git.home.luguber.info/inful/nasstate/internal/state"
)

func TestParseDevicesEmpty(t *testing.T) {
	devs := ParseDevices(ini.Decode(""))
	require.NotNil(t, devs)
	assert.Empty(t, devs)
}

func TestParseDevices(t *testing.T) {
	s := ini.Decode(`["sdb"]
id="WDC_WD40EFRX_1234"
device="sdb"
sectors="7814037168"
sector_size="512"
`)
	devs := ParseDevices(s)
	require.Len(t, devs, 1)
	assert.Equal(t, Device{ID: "WDC_WD40EFRX_1234", Device: "sdb", Sectors: 7814037168, SectorSize: 512}, devs[0])
}

func TestParseVar(t *testing.T) {
	v := ParseVar(ini.Decode(`NAME="Tower"
version="6.12.4"
mdState="STARTED"
shareSMBEnabled="yes"
shareNFSEnabled="no"
mdNumDisks="5"
PORT="80"
`))
	assert.Equal(t, "Tower", v.Name)
	assert.Equal(t, "6.12.4", v.Version)
	assert.Equal(t, "STARTED", v.MdState)
	assert.True(t, v.ShareSMBEnabled)
	assert.False(t, v.ShareNFSEnabled)
	assert.EqualValues(t, 5, v.MdNumDisks)
	assert.EqualValues(t, 80, v.Port)
}

func TestParseDisksOrderedByIdx(t *testing.T) {
	disks := ParseDisks(ini.Decode(`["parity"]
idx="0"
name="parity"
status="DISK_OK"
["disk1"]
idx="1"
name="disk1"
fsType="xfs"
temp="34"
["cache"]
idx="30"
name="cache"
rotational="0"
`))
	require.Len(t, disks, 3)
	assert.Equal(t, []string{"parity", "disk1", "cache"}, []string{disks[0].Name, disks[1].Name, disks[2].Name})
	assert.Equal(t, "xfs", disks[1].FsType)
	assert.EqualValues(t, 34, disks[1].Temp)
	assert.False(t, disks[2].Rotational)
}

func TestParseShares(t *testing.T) {
	shares := ParseShares(ini.Decode(`["appdata"]
name="appdata"
include="disk1, disk2,"
exclude=""
useCache="Prefer"
cachePool="cache"
["media"]
name="media"
`))
	require.Len(t, shares, 2)
	app := shares[0]
	assert.Equal(t, []string{"disk1", "disk2"}, app.Include)
	assert.Equal(t, []string{}, app.Exclude)
	assert.Equal(t, "prefer", app.UseCache)
	assert.True(t, app.Cache)
	media := shares[1]
	assert.Equal(t, "no", media.UseCache)
	assert.False(t, media.Cache)
}

func TestParseUsers(t *testing.T) {
	users := ParseUsers(ini.Decode(`["root"]
idx="0"
name="root"
desc="Console and webGui login account"
passwd="yes"
["bob"]
idx="1"
name="bob"
passwd="no"
`))
	require.Len(t, users, 2)
	assert.Equal(t, "root", users[0].Name)
	assert.True(t, users[0].HasPassword)
	assert.False(t, users[1].HasPassword)
}

func TestParseNetwork(t *testing.T) {
	ifs := ParseNetwork(ini.Decode(`["eth0"]
USE_DHCP="no"
IPADDR:0="192.168.1.10"
NETMASK:0="255.255.255.0"
GATEWAY="192.168.1.1"
DNS_SERVER1="1.1.1.1"
DNS_SERVER2="8.8.8.8"
MTU="1500"
`))
	require.Len(t, ifs, 1)
	eth := ifs[0]
	assert.Equal(t, "eth0", eth.Name)
	assert.Equal(t, "192.168.1.10", eth.IPAddr)
	assert.Equal(t, "255.255.255.0", eth.Netmask)
	assert.Equal(t, "192.168.1.1", eth.Gateway)
	assert.Equal(t, []string{"1.1.1.1", "8.8.8.8"}, eth.DNSServers)
	assert.EqualValues(t, 1500, eth.MTU)
	assert.False(t, eth.UseDHCP)
}

func TestParseDisplayAndOwner(t *testing.T) {
	d := ParseDisplay(ini.Decode(`[display]
theme="black"
warning="70"
tabs="0"
`))
	assert.Equal(t, "black", d.Theme)
	assert.Equal(t, "C", d.Unit)
	assert.EqualValues(t, 70, d.Warning)
	assert.False(t, d.Tabs)

	o := ParseOwner(ini.Decode(`[remote]
username="alice"
avatar="https://example.com/a.png"
wanaccess="yes"
`))
	assert.Equal(t, "alice", o.Username)
	assert.True(t, o.WANAccess)

	assert.Equal(t, Owner{}, ParseOwner(state.Slice{}))
}

func TestParseBool(t *testing.T) {
	for in, want := range map[string]bool{"yes": true, "YES": true, "1": true, "no": false, "": false, "0": false} {
		got, ok := ParseBool(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseBool("maybe")
	assert.False(t, ok)
}

func TestProjectFallsBackToSlice(t *testing.T) {
	s := state.Slice{"a": "b"}
	assert.Equal(t, s, Project(state.KeyNotifications, s))
	assert.IsType(t, []Device{}, Project(state.KeyDevices, s))
}
