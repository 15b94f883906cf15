// Package repo 实体仓库：区域/设备/通道/用户/权限/分组/策略/日志的读写
// internal/repo/repo.go
//
// 公共约定：
//   - 所有公开操作接收 context，同步返回结果与 error；
//   - 结构性失败（连接/语句错误）返回包装后的 error；
//   - 查无记录返回 ErrNotFound，密码不匹配返回 ErrPasswordMismatch，
//     两者与结构性失败显式区分，不再用 0/1 哨兵值混写在结果里；
//   - 级联删除由建库触发器完成，仓库代码不重复实现。
package repo

import "errors"

var (
	// ErrNotFound 查询未命中任何记录
	ErrNotFound = errors.New("记录不存在")

	// ErrProtected 根区域 (rowid 1) 与管理员账号 (rowid 1) 不可删除
	ErrProtected = errors.New("内置记录不可删除")

	// ErrPasswordMismatch 原密码比对失败
	ErrPasswordMismatch = errors.New("原密码不正确")

	// ErrEmptyInput 要求非空的入参为空
	ErrEmptyInput = errors.New("入参不能为空")
)
