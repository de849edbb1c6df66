package main

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"docflow/internal/api"
	"docflow/internal/config"
)

type commandContext struct {
	configFlag *string
	apiFlag    *string
	ownerFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, apiFlag, ownerFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		apiFlag:    apiFlag,
		ownerFlag:  ownerFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) apiAddress() (string, error) {
	if c.apiFlag != nil && strings.TrimSpace(*c.apiFlag) != "" {
		return strings.TrimSpace(*c.apiFlag), nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	return cfg.Paths.APIBind, nil
}

func (c *commandContext) owner() string {
	if c.ownerFlag != nil && strings.TrimSpace(*c.ownerFlag) != "" {
		return strings.TrimSpace(*c.ownerFlag)
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "default"
}

func (c *commandContext) client() (*api.Client, error) {
	addr, err := c.apiAddress()
	if err != nil {
		return nil, err
	}
	client, err := api.NewClient(addr, c.owner())
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w (is docflowd running?)", err)
	}
	return client, nil
}
