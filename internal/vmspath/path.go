// Package vmspath 统一管理数据库文件与落盘目录的路径解析
package vmspath

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Mode 执行模式，决定路径解析方式
type Mode string

const (
	// ModeDevelopment 开发模式：路径相对于安装目录（可执行文件所在目录）
	ModeDevelopment Mode = "development"
	// ModeProduction 生产模式：路径位于各平台的用户应用数据目录下
	ModeProduction Mode = "production"
)

// Paths 解析结果
type Paths struct {
	DB       string // 数据库文件完整路径
	SaveRoot string // 录像/截图等落盘文件的根目录
}

// Resolve 按执行模式解析路径。
// 生产模式下 Windows 使用 %LOCALAPPDATA%\CMS，其余平台使用 $HOME/CMS。
func Resolve(mode Mode) (Paths, error) {
	if mode != ModeProduction {
		exePath, err := os.Executable()
		if err != nil {
			return Paths{}, fmt.Errorf("无法获取可执行文件路径: %w", err)
		}
		root := filepath.Dir(exePath)
		return Paths{
			DB:       filepath.Join(root, "data.db"),
			SaveRoot: filepath.Join(root, "save_files"),
		}, nil
	}

	if runtime.GOOS == "windows" {
		base := os.Getenv("LOCALAPPDATA")
		if base == "" {
			return Paths{}, fmt.Errorf("生产模式下环境变量 LOCALAPPDATA 未设置")
		}
		return Paths{
			DB:       filepath.Join(base, "CMS", "data.db"),
			SaveRoot: filepath.Join(base, "CMS", "save_files"),
		}, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, fmt.Errorf("无法获取用户主目录: %w", err)
	}
	return Paths{
		DB:       filepath.Join(home, "CMS", "conf", "data.db"),
		SaveRoot: filepath.Join(home, "CMS", "save_files"),
	}, nil
}

// SaveDirs 返回落盘根目录下的各分类子目录，写入 t_user_param 的列默认值
func (p Paths) SaveDirs() (record, snapshot, videoDownload, userlog string) {
	return filepath.Join(p.SaveRoot, "record"),
		filepath.Join(p.SaveRoot, "snapshot"),
		filepath.Join(p.SaveRoot, "video_download"),
		filepath.Join(p.SaveRoot, "userlog")
}
