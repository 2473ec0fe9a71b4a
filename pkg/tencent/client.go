package tencent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/regions"
	tmt "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/tmt/v20180321"
)

// Translator 歌词翻译
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// tmtAPI *tmt.Client 中用到的方法
type tmtAPI interface {
	LanguageDetectWithContext(ctx context.Context, request *tmt.LanguageDetectRequest) (*tmt.LanguageDetectResponse, error)
	TextTranslateWithContext(ctx context.Context, request *tmt.TextTranslateRequest) (*tmt.TextTranslateResponse, error)
}

var _ Translator = (*Client)(nil)

// Client 腾讯云机器翻译，结果按原文缓存
type Client struct {
	tmt       tmtAPI
	target    string
	projectID int64
	cache     sync.Map
}

func logger() *zerolog.Logger {
	l := log.With().Str("component", "tencent").Logger()
	return &l
}

// NewClient target 为空时中文译为英文，其他语言译为中文
func NewClient(secretID, secretKey, region, target string) (*Client, error) {
	if secretID == "" || secretKey == "" {
		return nil, errors.New("tencent secret id and key are required")
	}
	if region == "" {
		region = regions.Guangzhou
	}

	credential := common.NewCredential(secretID, secretKey)
	cpf := profile.NewClientProfile()
	cpf.HttpProfile.ReqMethod = "POST"
	cpf.HttpProfile.ReqTimeout = 10 // s

	tmtClient, err := tmt.NewClient(credential, region, cpf)
	if err != nil {
		logger().Error().Err(err).Msg("new tencent client error")
		return nil, err
	}
	return newClient(tmtClient, target), nil
}

func newClient(api tmtAPI, target string) *Client {
	return &Client{tmt: api, target: target}
}

// Translate 原文已经是目标语言时原样返回
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	if v, ok := c.cache.Load(text); ok {
		return v.(string), nil
	}

	source, err := c.detect(ctx, text)
	if err != nil {
		return "", err
	}

	target := c.targetFor(source)
	if source == target {
		c.cache.Store(text, text)
		return text, nil
	}

	request := tmt.NewTextTranslateRequest()
	request.SourceText = common.StringPtr(text)
	request.Source = common.StringPtr(source)
	request.Target = common.StringPtr(target)
	request.ProjectId = common.Int64Ptr(c.projectID)

	response, err := c.tmt.TextTranslateWithContext(ctx, request)
	if err != nil {
		return "", fmt.Errorf("text translate: %w", err)
	}
	if response == nil || response.Response == nil || response.Response.TargetText == nil {
		return "", errors.New("text translate: empty response")
	}

	result := *response.Response.TargetText
	c.cache.Store(text, result)
	logger().Debug().Str("source", source).Str("target", target).Str("text", text).Str("result", result).Msg("Translated")
	return result, nil
}

func (c *Client) detect(ctx context.Context, text string) (string, error) {
	request := tmt.NewLanguageDetectRequest()
	request.Text = common.StringPtr(text)
	request.ProjectId = common.Int64Ptr(c.projectID)

	response, err := c.tmt.LanguageDetectWithContext(ctx, request)
	if err != nil {
		return "", fmt.Errorf("language detect: %w", err)
	}
	if response == nil || response.Response == nil || response.Response.Lang == nil {
		return "", errors.New("language detect: empty response")
	}
	return *response.Response.Lang, nil
}

func (c *Client) targetFor(source string) string {
	if c.target != "" {
		return c.target
	}
	if source == "zh" {
		return "en"
	}
	return "zh"
}
