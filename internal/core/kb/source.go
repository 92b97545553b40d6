package kb

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"school-meal-engine/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

//go:embed seed/knowledge_base.json
var defaultSeed []byte

// DefaultSeed 內建知識庫種子
func DefaultSeed() (*Seed, error) {
	return ParseSeed(defaultSeed)
}

// ParseSeed 解析種子 JSON，禁止未知欄位
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := common.ParseJSONBytesStrict(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse knowledge base seed: %w", err)
	}
	return &seed, nil
}

// LoadSeed 依來源載入種子：空值為內建、http(s) 以 resty 下載、其餘視為檔案路徑
func LoadSeed(ctx context.Context, source string, timeout time.Duration) (*Seed, error) {
	source = strings.TrimSpace(source)
	switch {
	case source == "":
		common.LogInfo("Loading embedded knowledge base seed")
		return DefaultSeed()
	case strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://"):
		return fetchSeed(ctx, resty.New().SetTimeout(timeout), source)
	default:
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("failed to read knowledge base seed %s: %w", source, err)
		}
		common.LogInfo("Loaded knowledge base seed file", zap.String("path", source), zap.Int("bytes", len(data)))
		return ParseSeed(data)
	}
}

func fetchSeed(ctx context.Context, client *resty.Client, url string) (*Seed, error) {
	resp, err := client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch knowledge base seed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("knowledge base seed source returned %d", resp.StatusCode())
	}

	common.LogInfo("Fetched knowledge base seed",
		zap.String("url", url),
		zap.Int("bytes", len(resp.Body())),
		zap.Duration("latency", resp.Time()),
	)
	return ParseSeed(resp.Body())
}
