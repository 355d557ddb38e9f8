package binance

import (
	"github.com/xpwu/go-config/configs"
)

// Config 币安行情配置
type Config struct {
	APIKey            string  `json:"api_key"`             // API密钥，行情接口可留空
	SecretKey         string  `json:"secret_key"`          // API私钥
	BaseURL           string  `json:"base_url"`            // API地址
	Timeout           int     `json:"timeout"`             // 请求超时时间(秒)
	RequestsPerSecond float64 `json:"requests_per_second"` // 每秒请求上限
	Burst             int     `json:"burst"`               // 突发请求数
}

// ConfigValue 币安配置实例
var ConfigValue = Config{
	APIKey:            "",
	SecretKey:         "",
	BaseURL:           "https://api.binance.com",
	Timeout:           10,
	RequestsPerSecond: 10,
	Burst:             5,
}

func init() {
	configs.Unmarshal(&ConfigValue)
}
