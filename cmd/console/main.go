// file: cmd/console/main.go

package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"CMSCore/internal/observe"
	"CMSCore/internal/repo"
	"CMSCore/internal/schema"
	"CMSCore/internal/session"
	"CMSCore/internal/vmspath"

	"github.com/spf13/viper"
)

const version = "v1.0.0"

type ServerConfig struct {
	LogLevel    string `mapstructure:"log_level"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type DataConfig struct {
	Mode            string `mapstructure:"mode"`
	DefaultAreaName string `mapstructure:"default_area_name"`
}

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Data   DataConfig   `mapstructure:"data"`
}

func main() {
	// 在日志系统完全初始化前，使用标准 log
	log.Printf("CMS 数据服务 %s 正在启动...", version)

	exePath, err := os.Executable()
	if err != nil {
		log.Fatalf("CRITICAL: 无法获取可执行文件路径: %v", err)
	}
	rootDir := filepath.Dir(exePath)

	config := loadConfig(filepath.Join(rootDir, "configs", "config.yaml"))

	observe.InitLogger(config.Server.LogLevel)
	slog.Info("CMS 数据服务启动", "version", version)

	paths, err := vmspath.Resolve(vmspath.Mode(config.Data.Mode))
	if err != nil {
		log.Fatalf("CRITICAL: 解析数据目录失败: %v", err)
	}
	slog.Info("路径解析完成", "db", paths.DB, "save_root", paths.SaveRoot)

	record, snapshot, videoDownload, userlog := paths.SaveDirs()
	for _, dir := range []string{record, snapshot, videoDownload, userlog} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("CRITICAL: 创建落盘目录 '%s' 失败: %v", dir, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	manager, err := schema.InitializeIfAbsent(ctx, paths.DB, config.Data.DefaultAreaName, paths.SaveRoot)
	cancel()
	if err != nil {
		log.Fatalf("CRITICAL: 初始化数据库失败: %v", err)
	}
	defer func() {
		slog.Info("正在关闭数据库连接...")
		if err := manager.DB().Close(); err != nil {
			slog.Error("关闭数据库时发生错误", "error", err)
		}
	}()

	db := manager.DB()
	sess := session.New()
	permRepo, err := repo.NewPermissionRepo(db, 0, 0)
	if err != nil {
		log.Fatalf("CRITICAL: 初始化权限仓库失败: %v", err)
	}

	deps := repo.NewRegistry(db, sess, permRepo)
	statsCtx, statsCancel := context.WithTimeout(context.Background(), 5*time.Second)
	counts, err := deps.Stats(statsCtx)
	statsCancel()
	if err != nil {
		log.Fatalf("CRITICAL: 数据库自检失败: %v", err)
	}
	slog.Info("仓库层初始化完成",
		"areas", counts.Areas, "devices", counts.Devices, "users", counts.Users)

	observe.Register()
	var metricsServer *http.Server
	if config.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observe.Handler())
		metricsServer = &http.Server{Addr: config.Server.MetricsAddr, Handler: mux}
		go func() {
			slog.Info("metrics 服务已启动", "address", config.Server.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics 服务启动失败", "error", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("收到停机信号，准备退出...")

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics 服务关闭失败", "error", err)
		}
	}
	slog.Info("程序即将退出。")
}

// loadConfig 读取配置文件；文件缺失时使用默认配置而非直接退出
func loadConfig(path string) Config {
	config := Config{
		Server: ServerConfig{LogLevel: "info"},
		Data:   DataConfig{Mode: string(vmspath.ModeDevelopment), DefaultAreaName: "默认区域"},
	}

	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		log.Printf("读取配置文件 '%s' 失败，使用默认配置: %v", path, err)
		return config
	}
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("CRITICAL: 解析配置到结构体失败: %v", err)
	}
	return config
}
