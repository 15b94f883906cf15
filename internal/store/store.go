// Package store 持有进程生命周期内唯一的 SQLite 连接，并提供顺序批次执行器
// internal/store/store.go
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open 打开（必要时创建）数据库文件并返回连接句柄。
// 整个进程只使用这一个连接：SQLite 自行串行化语句执行，本层不做连接池。
func Open(path string) (*sql.DB, error) {
	dsn := "file:" + path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库 '%s' 失败: %w", path, err)
	}

	// 单连接，无池化
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("数据库 '%s' 连接检查失败: %w", path, err)
	}
	return db, nil
}
