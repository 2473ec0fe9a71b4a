package login

import (
	"context"
	"fmt"
	"time"
)

// State 扫码登录状态
type State int

const (
	Pending State = iota
	AwaitingScan
	Scanned
	Confirmed
	Expired
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case AwaitingScan:
		return "awaiting_scan"
	case Scanned:
		return "scanned"
	case Confirmed:
		return "confirmed"
	case Expired:
		return "expired"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal 终态之后不再轮询
func (s State) Terminal() bool {
	switch s {
	case Confirmed, Expired, Failed, Cancelled:
		return true
	}
	return false
}

// Session 一次扫码登录尝试
type Session struct {
	ID         string // 日志关联用
	Key        string // 远端分配的 session key
	State      State
	Credential string // 仅 Confirmed 时有值
	Err        error  // 仅 Failed 时有值
	StartedAt  time.Time
	UpdatedAt  time.Time
}

// Status 状态查询接口的返回
type Status struct {
	Code       int
	Credential string
	Message    string
}

// Codes 状态码由服务商决定，作为配置传入
type Codes struct {
	Expired int
	Waiting int
	Scanned int
	Success int
}

// Validate 四个状态码必须互不相同，否则 Poll 的分支有歧义
func (c Codes) Validate() error {
	named := []struct {
		name string
		code int
	}{
		{"expired", c.Expired},
		{"waiting", c.Waiting},
		{"scanned", c.Scanned},
		{"success", c.Success},
	}
	seen := make(map[int]string, len(named))
	for _, n := range named {
		if prev, ok := seen[n.code]; ok {
			return fmt.Errorf("login codes %s and %s are both %d", prev, n.name, n.code)
		}
		seen[n.code] = n.name
	}
	return nil
}

// NeteaseCodes 网易云扫码登录的状态码
var NeteaseCodes = Codes{
	Expired: 800,
	Waiting: 801,
	Scanned: 802,
	Success: 803,
}

// KeyService 申请 session key
type KeyService interface {
	AcquireKey(ctx context.Context) (string, error)
}

// StatusService 查询 key 当前的扫码状态
type StatusService interface {
	CheckStatus(ctx context.Context, key string) (Status, error)
}

// CredentialStore 登录凭据的持久化
type CredentialStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, credential string) error
	Clear(ctx context.Context) error
}
