package main

import (
	"fmt"
	"strings"

	"skillpath_miniapp/internal/repository"
	"skillpath_miniapp/internal/service"

	"github.com/spf13/viper"
)

const (
	configPath   = "./"
	configName   = "config"
	configFormat = "yaml"
)

type Config struct {
	Database repository.Config `yaml:"database"`
	Server   ServerConfig      `yaml:"server"`

	TelegramAuth TelegramAuthConfig `yaml:"telegramAuth"`
	Quest        QuestConfig        `yaml:"quest"`

	LogLevel string `yaml:"logLevel"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

type TelegramAuthConfig struct {
	TelegramBotToken string `yaml:"telegramBotToken"`
	DebugMode        bool   `yaml:"debugMode"`
}

type QuestConfig struct {
	RewardBaseXP       int  `yaml:"rewardBaseXP"`
	PerfectWeekBonusXP int  `yaml:"perfectWeekBonusXP"`
	RewardBotEnabled   bool `yaml:"rewardBotEnabled"`
}

func (c QuestConfig) ToService() service.QuestConfig {
	return service.QuestConfig{
		RewardBaseXP:       c.RewardBaseXP,
		PerfectWeekBonusXP: c.PerfectWeekBonusXP,
	}
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName(configName)
	viper.AddConfigPath(configPath)
	viper.SetConfigType(configFormat)

	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("quest.rewardBaseXP", 500)
	viper.SetDefault("quest.perfectWeekBonusXP", 150)

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
