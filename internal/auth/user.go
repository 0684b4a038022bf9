package auth

import (
	"crypto/sha512"
	"encoding/hex"
)

// User 登录用户，连接器实例内不可变
// 只用于派生稳定的会话标识
type User struct {
	Username string
	Password string
}

func (u User) String() string {
	return u.Username + ":" + u.Password
}

// Service 会话所属的厂商 API 家族
// 多套 OAuth 客户端配置共存，会话不跨服务共享
type Service string

const (
	// ServiceMySkoda 主会话，CONNECT 令牌
	ServiceMySkoda Service = "MySkoda"
	// ServiceMySkoda2 第二会话，TECHNICAL 令牌，车辆状态端点使用
	ServiceMySkoda2 Service = "MySkoda2"
)

func (s Service) String() string {
	return string(s)
}

// ServiceConfig 单个服务的 OAuth 客户端配置
type ServiceConfig struct {
	ClientID    string
	Scope       string
	RedirectURI string
	AuthURL     string
	ExchangeURL string
	RefreshURL  string
}

var serviceConfigs = map[Service]ServiceConfig{
	ServiceMySkoda: {
		ClientID: "7f045eee-7003-4379-9968-9355ed2adb06@apps_vw-dilab_com",
		Scope: "address badge birthdate cars driversLicense dealers email mileage mbb " +
			"nationalIdentifier openid phone profession profile vin",
		RedirectURI: "myskoda://redirect/login/",
		AuthURL:     "https://identity.vwgroup.io/oidc/v1/authorize",
		ExchangeURL: "https://mysmob.api.connect.skoda-auto.cz/api/v1/authentication/exchange-authorization-code?tokenType=CONNECT",
		RefreshURL:  "https://mysmob.api.connect.skoda-auto.cz/api/v1/authentication/refresh-token?tokenType=CONNECT",
	},
	ServiceMySkoda2: {
		ClientID: "7f045eee-7003-4379-9968-9355ed2adb06@apps_vw-dilab_com",
		Scope: "address badge birthdate cars driversLicense dealers email mileage mbb " +
			"nationalIdentifier openid phone profession profile vin",
		RedirectURI: "myskoda://redirect/login/",
		AuthURL:     "https://identity.vwgroup.io/oidc/v1/authorize",
		ExchangeURL: "https://mysmob.api.connect.skoda-auto.cz/api/v1/authentication/exchange-authorization-code?tokenType=TECHNICAL",
		RefreshURL:  "https://mysmob.api.connect.skoda-auto.cz/api/v1/authentication/refresh-token?tokenType=TECHNICAL",
	},
}

// Config 返回服务的 OAuth 配置
func (s Service) Config() ServiceConfig {
	return serviceConfigs[s]
}

// Hash 由服务和用户派生的稳定哈希
func Hash(service Service, user User) string {
	sum := sha512.Sum512([]byte(service.String() + user.String()))
	return hex.EncodeToString(sum[:])
}

// Identifier 令牌仓库中的会话标识
func Identifier(service Service, user User) string {
	return "CarConnectivity-connector-skoda:" + Hash(service, user)
}
