// Package domain 定义 CMS 数据层的全部实体模型与常量
// internal/core/domain/models.go
package domain

// 固定主键约定：根区域与管理员账号在建库时各占用 rowid 1，且永不可删除。
const (
	RootAreaID      int64 = 1
	AdministratorID int64 = 1
)

// DeviceType 对应 t_device.type 字段
type DeviceType int

const (
	DeviceIPC   DeviceType = 0
	DeviceDVR   DeviceType = 1
	DeviceNVR   DeviceType = 2
	DeviceOnvif DeviceType = 3
	DeviceVRCam DeviceType = 4
)

// LogType 对应 t_user_log.type 字段，0 表示查询全部类型
type LogType int

const (
	LogAll       LogType = 0
	LogAlarm     LogType = 1
	LogOperation LogType = 2
	LogLogin     LogType = 3
)

// AreaAll 是日志查询中 "全部区域" 的哨兵值。
// 查询时会被替换为 "area < 最大区域rowid + 1" 的范围条件，而不是按区域 0 过滤。
const AreaAll int64 = 0

// Area 区域，设备的上级分组。parent_id 为预留字段，目前恒为根区域。
type Area struct {
	ID       int64
	Name     string
	ParentID int64
	Map      string // 区域电子地图名称，本层视为不透明字符串
}

// Device 设备，归属于一个区域，拥有若干通道
type Device struct {
	ID          int64
	AreaID      int64 // t_device.parent_id
	EseeID      string
	IP          string
	Name        string
	Port        int
	LoginName   string
	Pwd         string // 已由调用方加密，本层只存取
	ConnectMode int    // 0: 优先ip连接 1: 优先id连接
	Type        DeviceType
	SSID        string
	SSIDPwd     string
	AreaName    string // 仅非管理员的设备列表查询会携带
	Channels    []Channel
}

// Channel 通道，归属于一个设备，按 serial 在设备内排序
type Channel struct {
	ID           int64
	DeviceID     int64 // t_channel.parent_id
	Serial       int
	IsWall       bool
	Name         string
	IsPanorama   bool
	Posi         string // "x:%d;y:%d" 或空串
	Type         int    // 0: 普通 1: p系列
	IsCruise     bool
	PanoramaType int
	Presets      []PresetPos
}

// PresetPos 通道预置位，三组三轴坐标
type PresetPos struct {
	ID         int64
	ChannelID  int64 // t_preset_pos.preset_channel_id
	Name       string
	Index      int
	X1, Y1, Z1 float64
	X2, Y2, Z2 float64
	X3, Y3, Z3 float64
}

// User 用户账号。Pwd 为调用方加密后的密文。
type User struct {
	ID             int64
	Name           string
	Remark         string
	Pwd            string
	RememberPwd    bool
	AutoLogin      bool
	LastLoginTime  int64
	LastExitTime   int64
	FirstTimeLogin bool // is_first_time_login
}

// Permission 用户的模块权限，与用户一对一，13 个独立开关。
// 建表触发器插入的新行所有开关均为关闭，管理员在建库时被整体置为开启。
type Permission struct {
	UserID             int64 // t_permission.parent_id
	Snapshot           bool
	Record             bool
	RemoteDownload     bool
	PatrolSetting      bool
	PTZSetting         bool
	ResourceManagement bool
	Playback           bool
	UserParam          bool
	LiveView           bool
	UserLog            bool
	ElectronicMap      bool
	DeviceManagement   bool
	RemoteSetting      bool
}

// UserParam 用户参数，与用户一对一，由插入触发器自动建行
type UserParam struct {
	UserID            int64 // t_user_param.parent_id
	RecordPath        string
	SnapshotPath      string
	VideoDownloadPath string
	UserlogPath       string
	TimelineScale     int
}

// Account 登录成功后返回的联合视图：用户 + 用户参数 + 模块权限
type Account struct {
	User
	Param      UserParam
	Permission Permission
}

// ChannelGrant 用户-通道可见性授权，缺行即无权限
type ChannelGrant struct {
	UserID     int64 // t_user_and_channel.parent_id
	ChannelID  int64
	Permission bool
}

// Group 用户自定义的通道分组
type Group struct {
	ID       int64
	UserID   int64 // t_group.parent_id
	Name     string
	Channels []Channel
}

// UserLogEntry 用户日志，只增不改
type UserLogEntry struct {
	ID          int64
	UserID      int64 // t_user_log.parent_id
	UserName    string
	Type        LogType
	Time        int64
	AreaID      int64 // 登录类日志恒为 0
	Description string
}

// Policy 轮巡策略
type Policy struct {
	ID       int64
	Name     string
	Interval int
	Screen   int
}

// PolicyChannel 轮巡策略与通道的关联，携带播放窗口位置
type PolicyChannel struct {
	PolicyID     int64 // t_policy_and_channel.parent_id
	ChannelID    int64
	ScreenNumber int
}
