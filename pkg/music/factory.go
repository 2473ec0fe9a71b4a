package music

import (
	"fmt"

	"lyricdesk/pkg/lrclib"
	"lyricdesk/pkg/netease"
)

// Provider 音乐提供商类型
type Provider string

const (
	// ProviderNetEase 网易云音乐
	ProviderNetEase Provider = "netease"
	// ProviderLRCLib LRCLib歌词库
	ProviderLRCLib Provider = "lrclib"
)

// Clients 已创建的具体客户端，工厂按名称挑选
type Clients struct {
	NetEase *netease.Client
	LRCLib  *lrclib.Client
}

// CreateProvider 创建音乐提供商客户端
func CreateProvider(provider Provider, clients Clients) (MusicAPI, error) {
	switch provider {
	case ProviderNetEase:
		if clients.NetEase == nil {
			return nil, fmt.Errorf("netease client not configured")
		}
		return clients.NetEase, nil
	case ProviderLRCLib:
		if clients.LRCLib == nil {
			return nil, fmt.Errorf("lrclib client not configured")
		}
		return clients.LRCLib, nil
	default:
		return nil, fmt.Errorf("unknown music provider: %s", provider)
	}
}

// CreateManager 按优先级创建音乐API管理器
func CreateManager(order []Provider, clients Clients) (*Manager, error) {
	var providers []MusicAPI
	for _, providerType := range order {
		provider, err := CreateProvider(providerType, clients)
		if err != nil {
			logger().Warn().Err(err).Str("provider", string(providerType)).Msg("Failed to create provider")
			continue
		}
		providers = append(providers, provider)
	}

	if len(providers) == 0 {
		return nil, ErrNoProviders
	}

	return NewManager(providers), nil
}

// GetProviderByName 根据名称获取提供商
func GetProviderByName(name string) (Provider, error) {
	switch name {
	case "netease", "网易云", "163":
		return ProviderNetEase, nil
	case "lrclib":
		return ProviderLRCLib, nil
	default:
		return "", fmt.Errorf("unknown provider name: %s", name)
	}
}

// ParseProviders 解析配置中的提供商列表
func ParseProviders(names []string) ([]Provider, error) {
	providers := make([]Provider, 0, len(names))
	for _, name := range names {
		p, err := GetProviderByName(name)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, nil
}
