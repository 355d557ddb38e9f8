package database

import (
	"fmt"
	"time"

	"github.com/xpwu/go-config/configs"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host            string `json:"host"`              // 数据库主机地址
	Port            string `json:"port"`              // 数据库端口
	User            string `json:"user"`              // 数据库用户名
	Password        string `json:"password"`          // 数据库密码
	DBName          string `json:"dbname"`            // 数据库名称
	SSLMode         string `json:"sslmode"`           // SSL模式
	MaxOpenConns    int    `json:"max_open_conns"`    // 最大连接数
	MaxIdleConns    int    `json:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime int    `json:"conn_max_lifetime"` // 连接最长存活秒数
}

// GlobalDatabaseConfig 全局数据库配置实例
var GlobalDatabaseConfig = DatabaseConfig{
	Host:            "localhost",
	Port:            "5432",
	User:            "signalengine",
	Password:        "",
	DBName:          "signalengine",
	SSLMode:         "disable",
	MaxOpenConns:    25,
	MaxIdleConns:    5,
	ConnMaxLifetime: 300,
}

// DSN lib/pq 连接串
func (c DatabaseConfig) DSN() string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, sslmode)
}

func (c DatabaseConfig) lifetime() time.Duration {
	if c.ConnMaxLifetime <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.ConnMaxLifetime) * time.Second
}

func init() {
	configs.Unmarshal(&GlobalDatabaseConfig)
}
