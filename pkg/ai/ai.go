package ai

import "context"

// Client 用于从媒体标题中提取歌曲信息的大模型
type Client interface {
	Name() string
	HandleText(ctx context.Context, msg string) (string, error)
}
