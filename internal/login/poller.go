package login

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNoCredential 服务端返回成功码却没有凭据
	ErrNoCredential = errors.New("login succeeded without credential")
	// ErrUnknownCode 无法识别的状态码
	ErrUnknownCode = errors.New("unrecognized status code")
)

// Poller 扫码登录状态机，Poll/Cancel 都是纯状态转换，调度由调用方负责
type Poller struct {
	keys   KeyService
	status StatusService
	codes  Codes
	now    func() time.Time
}

// NewPoller 创建状态机
func NewPoller(keys KeyService, status StatusService, codes Codes) *Poller {
	return &Poller{
		keys:   keys,
		status: status,
		codes:  codes,
		now:    time.Now,
	}
}

func sessionLogger(s Session) *zerolog.Logger {
	l := log.With().Str("component", "login").Str("session", s.ID).Logger()
	return &l
}

// Start 申请 key 并进入 Pending，申请失败直接 Failed
func (p *Poller) Start(ctx context.Context) Session {
	now := p.now()
	s := Session{
		ID:        uuid.NewString(),
		State:     Pending,
		StartedAt: now,
		UpdatedAt: now,
	}

	key, err := p.keys.AcquireKey(ctx)
	if err != nil {
		sessionLogger(s).Error().Err(err).Msg("Failed to acquire login key")
		return p.fail(s, fmt.Errorf("acquire key: %w", err))
	}
	if key == "" {
		return p.fail(s, errors.New("acquire key: empty key"))
	}

	s.Key = key
	sessionLogger(s).Info().Msg("Login session started")
	return s
}

// Poll 查询一次状态，终态下不做任何事
func (p *Poller) Poll(ctx context.Context, s Session) Session {
	if s.State.Terminal() {
		return s
	}

	status, err := p.status.CheckStatus(ctx, s.Key)
	if err != nil {
		return p.fail(s, fmt.Errorf("check status: %w", err))
	}

	next := s
	switch status.Code {
	case p.codes.Expired:
		next.State = Expired
	case p.codes.Waiting:
		next.State = AwaitingScan
	case p.codes.Scanned:
		next.State = Scanned
	case p.codes.Success:
		if status.Credential == "" {
			return p.fail(s, ErrNoCredential)
		}
		next.State = Confirmed
		next.Credential = status.Credential
	default:
		return p.fail(s, fmt.Errorf("%w: %d (%s)", ErrUnknownCode, status.Code, status.Message))
	}

	if next.State != s.State {
		next.UpdatedAt = p.now()
		sessionLogger(next).Info().
			Str("from", s.State.String()).
			Str("to", next.State.String()).
			Int("code", status.Code).
			Msg("Login state changed")
	}
	return next
}

// Cancel 用户关闭窗口或刷新二维码时调用，已是终态则不变
func (p *Poller) Cancel(s Session) Session {
	if s.State.Terminal() {
		return s
	}
	s.State = Cancelled
	s.UpdatedAt = p.now()
	sessionLogger(s).Info().Msg("Login session cancelled")
	return s
}

func (p *Poller) fail(s Session, err error) Session {
	s.State = Failed
	s.Err = err
	s.Credential = ""
	s.UpdatedAt = p.now()
	sessionLogger(s).Warn().Err(err).Msg("Login session failed")
	return s
}

// Run 以固定间隔轮询直到终态；ctx 结束时会话被取消。
// observe 在会话开始和每次状态变化时被调用，可以为 nil。
func (p *Poller) Run(ctx context.Context, interval time.Duration, observe func(Session)) Session {
	if observe == nil {
		observe = func(Session) {}
	}

	s := p.Start(ctx)
	if s.State == Failed && ctx.Err() != nil {
		s = Session{ID: s.ID, State: Pending, StartedAt: s.StartedAt}
		s = p.Cancel(s)
	}
	observe(s)
	if s.State.Terminal() {
		return s
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s = p.Cancel(s)
			observe(s)
			return s
		case <-ticker.C:
			next := p.Poll(ctx, s)
			// 请求因 ctx 结束而失败，按取消处理
			if next.State == Failed && ctx.Err() != nil {
				next = p.Cancel(s)
			}
			if next.State != s.State {
				observe(next)
			}
			s = next
			if s.State.Terminal() {
				return s
			}
		}
	}
}
