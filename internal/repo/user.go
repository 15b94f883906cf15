// Package repo file: internal/repo/user.go
package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"CMSCore/internal/core/domain"
	"CMSCore/internal/session"
)

// UserRepo 用户账号与用户参数的仓库
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo 创建 UserRepo 实例
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `rowid, name, remark, pwd, remember_pwd, auto_login,
	last_login_time, last_exit_time, is_first_time_login`

// accountQuery 用户 + 用户参数 + 模块权限的联合查询，登录与自动登录探测共用
const accountQuery = `
	SELECT a.rowid, a.name, a.remark, a.pwd, a.remember_pwd, a.auto_login,
	       a.last_login_time, a.last_exit_time, a.is_first_time_login,
	       b.record_path, b.snapshot_path, b.video_download_path, b.userlog_path, b.timeline_scale,
	       c.snapshot, c.record, c.remote_download, c.patrol_setting, c.ptz_setting,
	       c.resource_management, c.playback, c.user_param, c.live_view, c.user_log,
	       c.electronic_map, c.device_management, c.remote_setting
	FROM t_user a
	JOIN t_user_param b ON a.rowid = b.parent_id
	JOIN t_permission c ON a.rowid = c.parent_id`

func scanAccount(row *sql.Row) (*domain.Account, error) {
	var acc domain.Account
	err := row.Scan(
		&acc.ID, &acc.Name, &acc.Remark, &acc.Pwd, &acc.RememberPwd, &acc.AutoLogin,
		&acc.LastLoginTime, &acc.LastExitTime, &acc.FirstTimeLogin,
		&acc.Param.RecordPath, &acc.Param.SnapshotPath, &acc.Param.VideoDownloadPath,
		&acc.Param.UserlogPath, &acc.Param.TimelineScale,
		&acc.Permission.Snapshot, &acc.Permission.Record, &acc.Permission.RemoteDownload,
		&acc.Permission.PatrolSetting, &acc.Permission.PTZSetting, &acc.Permission.ResourceManagement,
		&acc.Permission.Playback, &acc.Permission.UserParam, &acc.Permission.LiveView,
		&acc.Permission.UserLog, &acc.Permission.ElectronicMap, &acc.Permission.DeviceManagement,
		&acc.Permission.RemoteSetting,
	)
	if err != nil {
		return nil, err
	}
	acc.Param.UserID = acc.ID
	acc.Permission.UserID = acc.ID
	return &acc, nil
}

func scanUser(scan func(dest ...any) error) (domain.User, error) {
	var u domain.User
	err := scan(&u.ID, &u.Name, &u.Remark, &u.Pwd, &u.RememberPwd, &u.AutoLogin,
		&u.LastLoginTime, &u.LastExitTime, &u.FirstTimeLogin)
	return u, err
}

// Login 匹配用户名与密码。
// 先按用户名单独探测，区分 "用户不存在" 与 "密码不正确" 两种结果供界面提示，
// 因此固定需要两次查询。密码为调用方加密后的密文，这里只做等值比对。
func (r *UserRepo) Login(ctx context.Context, name, pwd string) (domain.LoginResult, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM t_user WHERE name = ?`, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LoginResult{Status: domain.LoginUnknownUser}, nil
	}
	if err != nil {
		return domain.LoginResult{}, fmt.Errorf("登录探测用户 '%s' 失败: %w", name, err)
	}

	acc, err := scanAccount(r.db.QueryRowContext(ctx,
		accountQuery+` WHERE a.name = ? AND a.pwd = ?`, name, pwd))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LoginResult{Status: domain.LoginWrongPassword}, nil
	}
	if err != nil {
		return domain.LoginResult{}, fmt.Errorf("登录查询用户 '%s' 失败: %w", name, err)
	}
	return domain.LoginResult{Status: domain.LoginOK, Account: acc}, nil
}

// Logout 登出：清自动登录标记并记录退出时间，命中当前会话时同步镜像
func (r *UserRepo) Logout(ctx context.Context, sess *session.Session, exitTime int64) error {
	userID := sess.UserID()
	_, err := r.db.ExecContext(ctx,
		`UPDATE t_user SET auto_login = 0, last_exit_time = ? WHERE rowid = ?`,
		exitTime, userID)
	if err != nil {
		return fmt.Errorf("记录用户 %d 退出登录失败: %w", userID, err)
	}
	sess.MirrorExit(exitTime)
	return nil
}

// ChangePassword 修改当前会话用户的密码。
// 原密码与会话镜像中的密文比对，不匹配返回 ErrPasswordMismatch；
// 修改成功后清掉记住密码与自动登录标记。
func (r *UserRepo) ChangePassword(ctx context.Context, sess *session.Session, oldPwd, newPwd string) error {
	acc := sess.Account()
	if acc == nil {
		return ErrNotFound
	}
	if oldPwd != acc.Pwd {
		return ErrPasswordMismatch
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE t_user SET pwd = ?, auto_login = 0, remember_pwd = 0 WHERE rowid = ?`,
		newPwd, acc.ID)
	if err != nil {
		return fmt.Errorf("修改用户 %d 密码失败: %w", acc.ID, err)
	}
	sess.MirrorPassword(newPwd)
	return nil
}

// LastLoginCandidate 启动时探测最近登录的用户，用于记住密码/自动登录。
// 无任何登录记录时返回 (nil, nil)。
func (r *UserRepo) LastLoginCandidate(ctx context.Context) (*domain.Account, error) {
	acc, err := scanAccount(r.db.QueryRowContext(ctx, `
		SELECT a.rowid, a.name, a.remark, a.pwd, a.remember_pwd, a.auto_login,
		       a.last_login_time, a.last_exit_time, a.is_first_time_login,
		       b.record_path, b.snapshot_path, b.video_download_path, b.userlog_path, b.timeline_scale,
		       c.snapshot, c.record, c.remote_download, c.patrol_setting, c.ptz_setting,
		       c.resource_management, c.playback, c.user_param, c.live_view, c.user_log,
		       c.electronic_map, c.device_management, c.remote_setting
		FROM (SELECT rowid, * FROM t_user ORDER BY last_login_time DESC LIMIT 1) a
		JOIN t_user_param b ON a.rowid = b.parent_id
		JOIN t_permission c ON a.rowid = c.parent_id`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询最近登录用户失败: %w", err)
	}
	return acc, nil
}

// UpdateLoginInfo 登录成功后记录记住密码/自动登录标记与登录时间
func (r *UserRepo) UpdateLoginInfo(ctx context.Context, userID int64, rememberPwd, autoLogin bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE t_user
		SET remember_pwd = ?, auto_login = ?, last_login_time = ?
		WHERE rowid = ?`,
		rememberPwd, autoLogin, time.Now().UnixMilli(), userID)
	if err != nil {
		return fmt.Errorf("更新用户 %d 登录信息失败: %w", userID, err)
	}
	return nil
}

// ListOthers 获取除管理员以外的全部用户
func (r *UserRepo) ListOthers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM t_user WHERE rowid != ?`, domain.AdministratorID)
	if err != nil {
		return nil, fmt.Errorf("查询用户列表失败: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, scanErr := scanUser(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("扫描用户行失败: %w", scanErr)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetByName 按用户名查询单个用户，未命中返回 ErrNotFound
func (r *UserRepo) GetByName(ctx context.Context, name string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM t_user WHERE name = ?`, name).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询用户 '%s' 失败: %w", name, err)
	}
	return &u, nil
}

// LastLoginUsers 获取最近登录过的用户，limit 非正数时取默认值 3
func (r *UserRepo) LastLoginUsers(ctx context.Context, limit int) ([]domain.User, error) {
	if limit <= 0 {
		limit = 3
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM t_user
		WHERE last_login_time != 0
		ORDER BY last_login_time DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询最近登录用户失败: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, scanErr := scanUser(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("扫描用户行失败: %w", scanErr)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ClearLastLogin 清除用户的最后登录时间，使其不再出现在最近登录列表中
func (r *UserRepo) ClearLastLogin(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE t_user SET last_login_time = 0 WHERE rowid = ?`, userID)
	if err != nil {
		return fmt.Errorf("清除用户 %d 登录时间失败: %w", userID, err)
	}
	return nil
}

// Create 新增用户，密码由调用方加密后传入。
// 插入触发器保证同时生成该用户的权限行与用户参数行。
func (r *UserRepo) Create(ctx context.Context, name, remark, encodedPwd string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO t_user (name, remark, pwd) VALUES (?, ?, ?)`, name, remark, encodedPwd)
	if err != nil {
		return 0, fmt.Errorf("新增用户 '%s' 失败: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("获取新增用户 '%s' 的 rowid 失败: %w", name, err)
	}
	return id, nil
}

// Delete 删除用户。管理员账号受保护；权限/参数/分组/授权行由删除触发器级联清理。
func (r *UserRepo) Delete(ctx context.Context, userID int64) error {
	if userID == domain.AdministratorID {
		return ErrProtected
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM t_user WHERE rowid = ?`, userID)
	if err != nil {
		return fmt.Errorf("删除用户 %d 失败: %w", userID, err)
	}
	return nil
}

// ResetPassword 将用户密码重置为调用方给定的密文（通常是加密后的空密码）
func (r *UserRepo) ResetPassword(ctx context.Context, userID int64, encodedPwd string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE t_user SET pwd = ? WHERE rowid = ?`, encodedPwd, userID)
	if err != nil {
		return fmt.Errorf("重置用户 %d 密码失败: %w", userID, err)
	}
	return nil
}

// UpdateRemark 修改用户备注名
func (r *UserRepo) UpdateRemark(ctx context.Context, userID int64, remark string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE t_user SET remark = ? WHERE rowid = ?`, remark, userID)
	if err != nil {
		return fmt.Errorf("修改用户 %d 备注失败: %w", userID, err)
	}
	return nil
}

// SetFirstTimeLogin 首次登录引导完成后清除首次登录标记
func (r *UserRepo) SetFirstTimeLogin(ctx context.Context, userID int64, firstTime bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE t_user SET is_first_time_login = ? WHERE rowid = ?`, firstTime, userID)
	if err != nil {
		return fmt.Errorf("更新用户 %d 首次登录标记失败: %w", userID, err)
	}
	return nil
}

// UserParam 获取用户参数行
func (r *UserRepo) UserParam(ctx context.Context, userID int64) (*domain.UserParam, error) {
	var p domain.UserParam
	err := r.db.QueryRowContext(ctx, `
		SELECT parent_id, record_path, snapshot_path, video_download_path, userlog_path, timeline_scale
		FROM t_user_param WHERE parent_id = ?`, userID).
		Scan(&p.UserID, &p.RecordPath, &p.SnapshotPath, &p.VideoDownloadPath,
			&p.UserlogPath, &p.TimelineScale)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询用户 %d 参数失败: %w", userID, err)
	}
	return &p, nil
}

// UpdateUserParam 部分更新用户参数，nil 字段跳过；
// 命中当前会话用户时同步会话镜像，调用方无需重新查询。
func (r *UserRepo) UpdateUserParam(ctx context.Context, sess *session.Session, userID int64, u domain.UserParamUpdate) error {
	var updates []string
	var args []any

	if u.RecordPath != nil {
		updates = append(updates, "record_path = ?")
		args = append(args, *u.RecordPath)
	}
	if u.SnapshotPath != nil {
		updates = append(updates, "snapshot_path = ?")
		args = append(args, *u.SnapshotPath)
	}
	if u.VideoDownloadPath != nil {
		updates = append(updates, "video_download_path = ?")
		args = append(args, *u.VideoDownloadPath)
	}
	if u.UserlogPath != nil {
		updates = append(updates, "userlog_path = ?")
		args = append(args, *u.UserlogPath)
	}
	if u.TimelineScale != nil {
		updates = append(updates, "timeline_scale = ?")
		args = append(args, *u.TimelineScale)
	}
	if len(updates) == 0 {
		return nil
	}

	args = append(args, userID)
	query := fmt.Sprintf("UPDATE t_user_param SET %s WHERE parent_id = ?", strings.Join(updates, ", "))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("更新用户 %d 参数失败: %w", userID, err)
	}
	if sess != nil && sess.Targets(userID) {
		sess.MirrorParam(u)
	}
	return nil
}
