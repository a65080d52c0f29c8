package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"onboardbridge/pkg/model"
)

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version"`

	Onboarding struct {
		ServiceDomain string            `yaml:"serviceDomain"`
		DefaultEnv    string            `yaml:"defaultEnv"`
		Environments  map[string]string `yaml:"environments"`
	} `yaml:"onboarding"`

	HostedLink struct {
		RedirectURI     string `yaml:"redirectUri"`
		GraceDelayMS    int    `yaml:"graceDelayMs"`
		ExternalBrowser string `yaml:"externalBrowser"` // tab / system
	} `yaml:"hostedLink"`

	Bridge struct {
		InterfaceName string `yaml:"interfaceName"`
		Platform      string `yaml:"platform"`
	} `yaml:"bridge"`

	CDP struct {
		DevToolsURL string `yaml:"devToolsUrl"`
	} `yaml:"cdp"`

	Sqlite struct {
		Dsn    string `yaml:"dsn"`
		Prefix string `yaml:"prefix"`
	} `yaml:"sqlite"`

	Log struct {
		Level  string   `yaml:"level"`
		Writer []string `yaml:"writer"`
		File   string   `yaml:"file"`
	} `yaml:"log"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	c := &Config{Version: "1.0.0"}
	c.applyDefaults()
	return c
}

// Load 读取 yaml 配置文件，缺省字段使用默认值
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := &Config{}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Version == "" {
		c.Version = "1.0.0"
	}
	if c.Onboarding.ServiceDomain == "" {
		c.Onboarding.ServiceDomain = "wedge-can.com"
	}
	if c.Onboarding.DefaultEnv == "" {
		c.Onboarding.DefaultEnv = string(model.EnvSandbox)
	}
	if c.Onboarding.Environments == nil {
		c.Onboarding.Environments = map[string]string{}
	}
	for _, env := range []model.Environment{model.EnvIntegration, model.EnvSandbox, model.EnvProduction} {
		if _, ok := c.Onboarding.Environments[string(env)]; !ok {
			c.Onboarding.Environments[string(env)] = fmt.Sprintf("https://onboarding-%s.%s", env, c.Onboarding.ServiceDomain)
		}
	}
	if strings.TrimSpace(c.HostedLink.RedirectURI) == "" {
		c.HostedLink.RedirectURI = model.DefaultHostedLinkRedirectURI
	}
	if c.HostedLink.GraceDelayMS <= 0 {
		c.HostedLink.GraceDelayMS = 1500
	}
	if c.HostedLink.ExternalBrowser == "" {
		c.HostedLink.ExternalBrowser = "tab"
	}
	if c.Bridge.InterfaceName == "" {
		c.Bridge.InterfaceName = "WedgeSDKAndroid"
	}
	if c.Bridge.Platform == "" {
		c.Bridge.Platform = "android"
	}
	if c.CDP.DevToolsURL == "" {
		c.CDP.DevToolsURL = "http://127.0.0.1:9222"
	}
	if c.Sqlite.Prefix == "" {
		c.Sqlite.Prefix = "onboardbridge_"
	}
	if c.Log.Level == "" {
		c.Log.Level = "debug"
	}
	if len(c.Log.Writer) == 0 {
		c.Log.Writer = []string{"console", "file"}
	}
}

// GraceDelay 托管链接回前台后的等待窗口
func (c *Config) GraceDelay() time.Duration {
	return time.Duration(c.HostedLink.GraceDelayMS) * time.Millisecond
}
