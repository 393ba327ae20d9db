package emhttp

import (
	"strings"

	"git.home.luguber.info/inful/nasstate/internal/state"
)

// ParseVar reads var.ini.
func ParseVar(s state.Slice) Var {
	return Var{
		Name:            s.String("NAME"),
		Comment:         s.String("COMMENT"),
		Version:         s.String("version"),
		MdState:         s.String("mdState"),
		FsState:         s.String("fsState"),
		FlashGUID:       s.String("flashGUID"),
		FlashProduct:    s.String("flashProduct"),
		FlashVendor:     s.String("flashVendor"),
		RegTy:           s.String("regTy"),
		RegTo:           s.String("regTo"),
		TimeZone:        s.String("timeZone"),
		ShareSMBEnabled: boolField(s, "shareSMBEnabled"),
		ShareNFSEnabled: boolField(s, "shareNFSEnabled"),
		UseSSL:          boolField(s, "USE_SSL"),
		Port:            intField(s, "PORT"),
		PortSSL:         intField(s, "PORTSSL"),
		MdNumDisks:      intField(s, "mdNumDisks"),
		MdNumDisabled:   intField(s, "mdNumDisabled"),
		MdNumInvalid:    intField(s, "mdNumInvalid"),
		MdNumMissing:    intField(s, "mdNumMissing"),
		ShareCount:      intField(s, "shareCount"),
	}
}

// ParseDevices reads devs.ini. A file with no sections yields an empty, non-nil list.
func ParseDevices(s state.Slice) []Device {
	out := []Device{}
	for _, sec := range sections(s) {
		id := sec.body.String("id")
		if id == "" {
			id = sec.name
		}
		out = append(out, Device{
			ID:         id,
			Device:     sec.body.String("device"),
			Sectors:    intField(sec.body, "sectors"),
			SectorSize: intField(sec.body, "sector_size"),
		})
	}
	return out
}

// ParseDisks reads disks.ini, ordered by slot index.
func ParseDisks(s state.Slice) []Disk {
	out := []Disk{}
	for _, sec := range sections(s) {
		b := sec.body
		name := b.String("name")
		if name == "" {
			name = sec.name
		}
		out = append(out, Disk{
			Idx:        intField(b, "idx"),
			Name:       name,
			Device:     b.String("device"),
			ID:         b.String("id"),
			Type:       b.String("type"),
			Status:     b.String("status"),
			Color:      b.String("color"),
			FsType:     b.String("fsType"),
			Size:       intField(b, "size"),
			FsSize:     intField(b, "fsSize"),
			FsFree:     intField(b, "fsFree"),
			FsUsed:     intField(b, "fsUsed"),
			Temp:       intField(b, "temp"),
			NumErrors:  intField(b, "numErrors"),
			Rotational: boolField(b, "rotational"),
			SpunDown:   boolField(b, "spundown"),
		})
	}
	byIdx(out, func(d Disk) int64 { return d.Idx })
	return out
}

// ParseShares reads shares.ini. include/exclude are comma lists; useCache is
// one of yes, no, only or prefer.
func ParseShares(s state.Slice) []Share {
	out := []Share{}
	for _, sec := range sections(s) {
		b := sec.body
		name := b.String("name")
		if name == "" {
			name = sec.name
		}
		useCache := strings.ToLower(strings.TrimSpace(b.String("useCache")))
		if useCache == "" {
			useCache = "no"
		}
		out = append(out, Share{
			Name:       name,
			Comment:    b.String("comment"),
			Free:       intField(b, "free"),
			Used:       intField(b, "used"),
			Size:       intField(b, "size"),
			Include:    SplitList(b.String("include")),
			Exclude:    SplitList(b.String("exclude")),
			UseCache:   useCache,
			Cache:      useCache != "no",
			CachePool:  b.String("cachePool"),
			Allocator:  b.String("allocator"),
			SplitLevel: b.String("splitLevel"),
			Floor:      b.String("floor"),
			Color:      b.String("color"),
			LuksStatus: b.String("luksStatus"),
		})
	}
	return out
}

// ParseUsers reads users.ini, ordered by idx.
func ParseUsers(s state.Slice) []User {
	out := []User{}
	for _, sec := range sections(s) {
		b := sec.body
		name := b.String("name")
		if name == "" {
			name = sec.name
		}
		out = append(out, User{
			Idx:         intField(b, "idx"),
			Name:        name,
			Description: b.String("desc"),
			HasPassword: boolField(b, "passwd"),
		})
	}
	byIdx(out, func(u User) int64 { return u.Idx })
	return out
}

// ParseNetwork reads network.ini. Interface sections are keyed by name (eth0, br0, ...).
func ParseNetwork(s state.Slice) []Interface {
	out := []Interface{}
	for _, sec := range sections(s) {
		b := sec.body
		var dns []string
		for _, k := range []string{"DNS_SERVER1", "DNS_SERVER2", "DNS_SERVER3"} {
			if v := strings.TrimSpace(b.String(k)); v != "" {
				dns = append(dns, v)
			}
		}
		if dns == nil {
			dns = []string{}
		}
		out = append(out, Interface{
			Name:        sec.name,
			Description: b.String("DESCRIPTION:0"),
			Protocol:    b.String("PROTOCOL:0"),
			UseDHCP:     boolField(b, "USE_DHCP:0") || boolField(b, "USE_DHCP"),
			IPAddr:      first(b.String("IPADDR:0"), b.String("IPADDR")),
			Netmask:     first(b.String("NETMASK:0"), b.String("NETMASK")),
			Gateway:     first(b.String("GATEWAY:0"), b.String("GATEWAY")),
			DNSServers:  dns,
			MTU:         intField(b, "MTU"),
			Bonding:     boolField(b, "BONDING"),
			Bridging:    boolField(b, "BRIDGING"),
		})
	}
	return out
}

// ParseDisplay reads the [display] section of dynamix.cfg.
func ParseDisplay(s state.Slice) Display {
	d, ok := s.Section("display")
	if !ok {
		d = state.Slice{}
	}
	unit := d.String("unit")
	if unit == "" {
		unit = "C"
	}
	return Display{
		Theme:    d.String("theme"),
		Unit:     unit,
		Scale:    intField(d, "scale"),
		Number:   d.String("number"),
		Date:     d.String("date"),
		Time:     d.String("time"),
		Locale:   d.String("locale"),
		Banner:   d.String("banner"),
		Tabs:     boolField(d, "tabs"),
		Resize:   boolField(d, "resize"),
		Total:    boolField(d, "total"),
		Warning:  intField(d, "warning"),
		Critical: intField(d, "critical"),
		Hot:      intField(d, "hot"),
		Max:      intField(d, "max"),
	}
}

// ParseOwner reads the [remote] section of myservers.cfg.
func ParseOwner(s state.Slice) Owner {
	r, ok := s.Section("remote")
	if !ok {
		r = state.Slice{}
	}
	return Owner{
		Username:  r.String("username"),
		Avatar:    r.String("avatar"),
		URL:       r.String("url"),
		WANAccess: boolField(r, "wanaccess"),
		WANPort:   intField(r, "wanport"),
	}
}

// Project returns the typed form of a slice for k, or the slice itself for keys
// without a typed form.
func Project(k state.Key, s state.Slice) any {
	switch k {
	case state.KeyVar:
		return ParseVar(s)
	case state.KeyDevices:
		return ParseDevices(s)
	case state.KeyDisks:
		return ParseDisks(s)
	case state.KeyShares:
		return ParseShares(s)
	case state.KeyUsers:
		return ParseUsers(s)
	case state.KeyNetwork:
		return ParseNetwork(s)
	case state.KeyDisplay:
		return ParseDisplay(s)
	case state.KeyOwner:
		return ParseOwner(s)
	}
	return s
}

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
