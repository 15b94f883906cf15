// Package domain internal/core/domain/args.go
// 仓库层公开操作使用的参数包（结构体代替零散位置参数）
package domain

// ChannelSpec 添加/修改设备时的单通道描述
type ChannelSpec struct {
	Name        string
	IsPanorama  int
	ChannelType int
}

// DeviceItem 添加设备的参数包。
// Chs 为空时按 ChannelCount 以默认命名与默认全景属性生成通道。
type DeviceItem struct {
	AreaID       int64      `validate:"required,min=1"`
	EseeID       string     `validate:"required"`
	IP           string     `validate:"required,ip"`
	Name         string     `validate:"required"`
	Port         int        `validate:"min=1,max=65535"`
	LoginName    string     `validate:"required"`
	Pwd          string     // 已加密密文，允许为空
	ConnectMode  int        `validate:"min=0,max=1"`
	Type         DeviceType `validate:"min=0,max=4"`
	SSID         string
	SSIDPwd      string
	ChannelCount int        `validate:"required,min=1"`
	Chs          []ChannelSpec
}

// DeviceInfo 修改设备时携带的完整设备视图（含通道快照）。
// Update 依据新旧两份 DeviceInfo 的 Chs 做逐序号比对。
type DeviceInfo struct {
	ID          int64
	AreaID      int64
	EseeID      string
	IP          string
	Name        string
	Port        int
	LoginName   string
	Pwd         string
	ConnectMode int
	Type        DeviceType
	SSID        string
	SSIDPwd     string
	Chs         []DeviceInfoChannel
}

// DeviceInfoChannel 是 DeviceInfo 内的通道快照，参与差量比对的三个字段 + rowid
type DeviceInfoChannel struct {
	ID          int64
	Name        string
	IsPanorama  int
	ChannelType int
}

// ChannelPosition 电子地图上的通道位置
type ChannelPosition struct {
	ChannelID int64
	X         int
	Y         int
}

// PermissionUpdate 模块权限的部分更新，nil 字段表示不修改该开关。
// 与权限表的 13 个开关一一对应。
type PermissionUpdate struct {
	Snapshot           *bool
	Record             *bool
	RemoteDownload     *bool
	PatrolSetting      *bool
	PTZSetting         *bool
	ResourceManagement *bool
	Playback           *bool
	UserParam          *bool
	LiveView           *bool
	UserLog            *bool
	ElectronicMap      *bool
	DeviceManagement   *bool
	RemoteSetting      *bool
}

// UserParamUpdate 用户参数的部分更新，nil 字段表示不修改
type UserParamUpdate struct {
	RecordPath        *string
	SnapshotPath      *string
	VideoDownloadPath *string
	UserlogPath       *string
	TimelineScale     *int
}

// GrantUpdate 单条通道授权变更
type GrantUpdate struct {
	ChannelID  int64
	Permission bool
}

// PresetArgs 设置预置位的参数包，Serial 指向目标设备内的通道序号
type PresetArgs struct {
	DeviceID   int64
	Serial     int
	Name       string
	Index      int
	X1, Y1, Z1 float64
	X2, Y2, Z2 float64
	X3, Y3, Z3 float64
}

// PolicyArgs 设置轮巡策略的参数包。PolicyID 为 0 时新增，否则修改。
type PolicyArgs struct {
	PolicyID int64
	Name     string
	Interval int
	Screen   int
	Channels []PolicyScreenChannel
}

// PolicyScreenChannel 策略中单个窗口与通道的绑定
type PolicyScreenChannel struct {
	Index     int
	ChannelID int64
}

// LogFilter 日志查询条件。
// Area 取 AreaAll(0) 时表示全部区域；Type 取 LogAll(0) 时表示全部类型。
type LogFilter struct {
	StartTime int64
	EndTime   int64
	Type      LogType
	Area      int64
	KeyWords  string
}

// LoginStatus 登录结果的显式状态，替代原设计中 0/1/行 三态哨兵返回
type LoginStatus int

const (
	LoginOK LoginStatus = iota
	LoginUnknownUser
	LoginWrongPassword
)

// LoginResult 登录操作的带标签结果
type LoginResult struct {
	Status  LoginStatus
	Account *Account // 仅 Status == LoginOK 时非 nil
}
