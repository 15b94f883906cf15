// Package session 持有当前已认证用户的会话上下文
// internal/session/session.go
//
// 原设计把当前用户放在进程级全局变量里，仓库层直接读取；这里改为显式的
// Session 对象随调用传入，测试可以并行跑互不干扰的多个会话。
package session

import (
	"sync"

	"CMSCore/internal/core/domain"
)

// Session 当前登录用户的内存镜像。
// 登录成功后建立，登出时清空；仓库层在写操作命中当前用户时同步镜像，
// 调用方无需重新查询。
type Session struct {
	mu  sync.RWMutex
	acc *domain.Account
}

// New 返回一个未登录的空会话
func New() *Session { return &Session{} }

// Establish 登录成功后写入账号视图
func (s *Session) Establish(acc *domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *acc
	s.acc = &cp
}

// Clear 登出时清空会话
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acc = nil
}

// Active 是否有已登录用户
func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.acc != nil
}

// UserID 当前用户 rowid，未登录时为 0
func (s *Session) UserID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.acc == nil {
		return 0
	}
	return s.acc.ID
}

// IsAdmin 当前用户是否为管理员。
// 仓库层的可见性分支只看这里，模块权限开关只约束界面功能。
func (s *Session) IsAdmin() bool {
	return s.UserID() == domain.AdministratorID
}

// Account 返回账号视图的副本，未登录时为 nil
func (s *Session) Account() *domain.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.acc == nil {
		return nil
	}
	cp := *s.acc
	return &cp
}

// Targets 判断一次写操作是否命中当前会话的用户
func (s *Session) Targets(userID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.acc != nil && s.acc.ID == userID
}

// MirrorParam 将用户参数变更同步进镜像
func (s *Session) MirrorParam(u domain.UserParamUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.acc == nil {
		return
	}
	if u.RecordPath != nil {
		s.acc.Param.RecordPath = *u.RecordPath
	}
	if u.SnapshotPath != nil {
		s.acc.Param.SnapshotPath = *u.SnapshotPath
	}
	if u.VideoDownloadPath != nil {
		s.acc.Param.VideoDownloadPath = *u.VideoDownloadPath
	}
	if u.UserlogPath != nil {
		s.acc.Param.UserlogPath = *u.UserlogPath
	}
	if u.TimelineScale != nil {
		s.acc.Param.TimelineScale = *u.TimelineScale
	}
}

// MirrorPassword 密码修改成功后同步镜像，同时清掉记住密码与自动登录标记
func (s *Session) MirrorPassword(newPwd string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.acc == nil {
		return
	}
	s.acc.Pwd = newPwd
	s.acc.AutoLogin = false
	s.acc.RememberPwd = false
}

// MirrorExit 登出写库成功后同步退出时间并清掉自动登录标记
func (s *Session) MirrorExit(exitTime int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.acc == nil {
		return
	}
	s.acc.AutoLogin = false
	s.acc.LastExitTime = exitTime
}
