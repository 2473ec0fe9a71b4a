package app

import (
	"context"
	"errors"
	"fmt"

	"lyricdesk/internal/config"
	"lyricdesk/internal/login"
	"lyricdesk/pkg/netease"

	"github.com/rs/zerolog/log"
)

// qrAPI netease.Client 中扫码登录相关的方法
type qrAPI interface {
	AcquireQRKey(ctx context.Context) (string, error)
	CheckQR(ctx context.Context, key string) (netease.QRStatus, error)
}

// NeteaseAuth 把网易云扫码接口适配为 login 的两个服务
type NeteaseAuth struct {
	api qrAPI
}

var (
	_ login.KeyService    = (*NeteaseAuth)(nil)
	_ login.StatusService = (*NeteaseAuth)(nil)
	_ qrAPI               = (*netease.Client)(nil)
)

func NewNeteaseAuth(api qrAPI) *NeteaseAuth {
	return &NeteaseAuth{api: api}
}

func (n *NeteaseAuth) AcquireKey(ctx context.Context) (string, error) {
	return n.api.AcquireQRKey(ctx)
}

func (n *NeteaseAuth) CheckStatus(ctx context.Context, key string) (login.Status, error) {
	st, err := n.api.CheckQR(ctx, key)
	if err != nil {
		return login.Status{}, err
	}
	return login.Status{Code: st.Code, Credential: st.Cookie, Message: st.Message}, nil
}

// Login 扫码登录直到终态，成功后保存凭据并更新客户端 cookie。
// observe 用于展示二维码和状态，可以为 nil。
func Login(ctx context.Context, cfg *config.Config, d *Deps, observe func(login.Session)) (login.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Login.Timeout)
	defer cancel()

	auth := NewNeteaseAuth(d.Netease)
	poller := login.NewPoller(auth, auth, cfg.Login.Codes)
	s := poller.Run(ctx, cfg.Login.PollInterval, observe)

	switch s.State {
	case login.Confirmed:
		if err := d.Store.Save(context.Background(), s.Credential); err != nil {
			return s, fmt.Errorf("failed to save credential: %w", err)
		}
		d.Netease.SetCookie(s.Credential)
		log.Info().Str("session", s.ID).Msg("Netease login confirmed, credential saved")
		return s, nil
	case login.Failed:
		return s, s.Err
	case login.Expired:
		return s, fmt.Errorf("qr code expired")
	default:
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return s, fmt.Errorf("login timed out after %s", cfg.Login.Timeout)
		}
		return s, fmt.Errorf("login %s", s.State)
	}
}

// Logout 清除保存的凭据
func Logout(ctx context.Context, d *Deps) error {
	if err := d.Store.Clear(ctx); err != nil {
		return err
	}
	d.Netease.SetCookie("")
	log.Info().Msg("Netease credential cleared")
	return nil
}
