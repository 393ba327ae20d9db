package emhttp

// Var is the system summary from var.ini.
type Var struct {
	Name            string `json:"name"`
	Comment         string `json:"comment"`
	Version         string `json:"version"`
	MdState         string `json:"mdState"`
	FsState         string `json:"fsState"`
	FlashGUID       string `json:"flashGuid"`
	FlashProduct    string `json:"flashProduct"`
	FlashVendor     string `json:"flashVendor"`
	RegTy           string `json:"regTy"`
	RegTo           string `json:"regTo"`
	TimeZone        string `json:"timeZone"`
	ShareSMBEnabled bool   `json:"shareSmbEnabled"`
	ShareNFSEnabled bool   `json:"shareNfsEnabled"`
	UseSSL          bool   `json:"useSsl"`
	Port            int64  `json:"port"`
	PortSSL         int64  `json:"portSsl"`
	MdNumDisks      int64  `json:"mdNumDisks"`
	MdNumDisabled   int64  `json:"mdNumDisabled"`
	MdNumInvalid    int64  `json:"mdNumInvalid"`
	MdNumMissing    int64  `json:"mdNumMissing"`
	ShareCount      int64  `json:"shareCount"`
}

// Device is one raw block device from devs.ini.
type Device struct {
	ID         string `json:"id"`
	Device     string `json:"device"`
	Sectors    int64  `json:"sectors"`
	SectorSize int64  `json:"sectorSize"`
}

// Disk is one array, cache or flash slot from disks.ini.
type Disk struct {
	Idx        int64  `json:"idx"`
	Name       string `json:"name"`
	Device     string `json:"device"`
	ID         string `json:"id"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	Color      string `json:"color"`
	FsType     string `json:"fsType"`
	Size       int64  `json:"size"`
	FsSize     int64  `json:"fsSize"`
	FsFree     int64  `json:"fsFree"`
	FsUsed     int64  `json:"fsUsed"`
	Temp       int64  `json:"temp"`
	NumErrors  int64  `json:"numErrors"`
	Rotational bool   `json:"rotational"`
	SpunDown   bool   `json:"spundown"`
}

// Share is one user share from shares.ini.
type Share struct {
	Name       string   `json:"name"`
	Comment    string   `json:"comment"`
	Free       int64    `json:"free"`
	Used       int64    `json:"used"`
	Size       int64    `json:"size"`
	Include    []string `json:"include"`
	Exclude    []string `json:"exclude"`
	UseCache   string   `json:"useCache"`
	Cache      bool     `json:"cache"`
	CachePool  string   `json:"cachePool"`
	Allocator  string   `json:"allocator"`
	SplitLevel string   `json:"splitLevel"`
	Floor      string   `json:"floor"`
	Color      string   `json:"color"`
	LuksStatus string   `json:"luksStatus"`
}

// User is one local account from users.ini.
type User struct {
	Idx         int64  `json:"idx"`
	Name        string `json:"name"`
	Description string `json:"description"`
	HasPassword bool   `json:"password"`
}

// Interface is one network interface section from network.ini.
type Interface struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Protocol    string   `json:"protocol"`
	UseDHCP     bool     `json:"useDhcp"`
	IPAddr      string   `json:"ipaddr"`
	Netmask     string   `json:"netmask"`
	Gateway     string   `json:"gateway"`
	DNSServers  []string `json:"dnsServers"`
	MTU         int64    `json:"mtu"`
	Bonding     bool     `json:"bonding"`
	Bridging    bool     `json:"bridging"`
}

// Display holds the webGUI display settings from dynamix.cfg.
type Display struct {
	Theme    string `json:"theme"`
	Unit     string `json:"unit"`
	Scale    int64  `json:"scale"`
	Number   string `json:"number"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Locale   string `json:"locale"`
	Banner   string `json:"banner"`
	Tabs     bool   `json:"tabs"`
	Resize   bool   `json:"resize"`
	Total    bool   `json:"total"`
	Warning  int64  `json:"warning"`
	Critical int64  `json:"critical"`
	Hot      int64  `json:"hot"`
	Max      int64  `json:"max"`
}

// Owner identifies the account the server is signed in to, from myservers.cfg.
type Owner struct {
	Username  string `json:"username"`
	Avatar    string `json:"avatar"`
	URL       string `json:"url"`
	WANAccess bool   `json:"wanAccess"`
	WANPort   int64  `json:"wanPort"`
}
