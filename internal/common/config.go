package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config 全局配置
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Cluster   ClusterConfig   `yaml:"cluster"`
	Generator GeneratorConfig `yaml:"generator"`
	Server    ServerConfig    `yaml:"server"`
	Events    EventsConfig    `yaml:"events"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level       string        `yaml:"level"`
	Development bool          `yaml:"development"`
	File        LogFileConfig `yaml:"file"`
}

// LogFileConfig 日志文件滚动配置，Path 为空时只输出到标准错误
type LogFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// ClusterConfig 集群配置，每台机器一条
type ClusterConfig struct {
	Machines []MachineConfig `yaml:"machines"`
}

// MachineConfig 机器配置
type MachineConfig struct {
	CPUCapacity    float64  `yaml:"cpu_capacity" json:"cpu_capacity"`
	MemoryCapacity float64  `yaml:"memory_capacity" json:"memory_capacity"`
	DiskCapacity   float64  `yaml:"disk_capacity" json:"disk_capacity"`
	EdgeMode       EdgeMode `yaml:"edge_mode" json:"edge_mode"`

	// 可选的初始可用量，为空时等于容量
	CPU    *float64 `yaml:"cpu,omitempty" json:"cpu,omitempty"`
	Memory *float64 `yaml:"memory,omitempty" json:"memory,omitempty"`
	Disk   *float64 `yaml:"disk,omitempty" json:"disk,omitempty"`
}

// Capacity 返回配置的容量
func (c MachineConfig) Capacity() Resource {
	return Resource{CPU: c.CPUCapacity, Memory: c.MemoryCapacity, Disk: c.DiskCapacity}
}

// Initial 返回初始可用量
func (c MachineConfig) Initial() Resource {
	initial := c.Capacity()
	if c.CPU != nil {
		initial.CPU = *c.CPU
	}
	if c.Memory != nil {
		initial.Memory = *c.Memory
	}
	if c.Disk != nil {
		initial.Disk = *c.Disk
	}
	return initial
}

// Validate 验证机器配置
func (c MachineConfig) Validate() error {
	capacity := c.Capacity()
	if err := ValidateResource("capacity", capacity); err != nil {
		return err
	}

	initial := c.Initial()
	dims := []struct {
		field    string
		value    float64
		capacity float64
	}{
		{"cpu", initial.CPU, capacity.CPU},
		{"memory", initial.Memory, capacity.Memory},
		{"disk", initial.Disk, capacity.Disk},
	}
	for _, d := range dims {
		if d.value < 0 || d.value > d.capacity {
			return NewValidationError(d.field, fmt.Sprintf("must be within [0, %g]", d.capacity), d.value)
		}
	}

	return c.EdgeMode.Validate()
}

// EdgeMode 边缘计算模式描述
//
// YAML 中既可以写成映射，也可以写成三元组 [enabled, bandwidth, energy_per_unit]。
type EdgeMode struct {
	Enabled       bool    `yaml:"enabled" json:"enabled"`
	Bandwidth     float64 `yaml:"bandwidth" json:"bandwidth"`
	EnergyPerUnit float64 `yaml:"energy_per_unit" json:"energy_per_unit"`
}

// UnmarshalYAML 支持映射与三元组两种写法
func (e *EdgeMode) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		if len(node.Content) != 3 {
			return NewValidationError("edge_mode",
				"sequence form must be [enabled, bandwidth, energy_per_unit]", len(node.Content))
		}
		var mode EdgeMode
		if err := node.Content[0].Decode(&mode.Enabled); err != nil {
			return fmt.Errorf("edge_mode[0]: %w", err)
		}
		if err := node.Content[1].Decode(&mode.Bandwidth); err != nil {
			return fmt.Errorf("edge_mode[1]: %w", err)
		}
		if err := node.Content[2].Decode(&mode.EnergyPerUnit); err != nil {
			return fmt.Errorf("edge_mode[2]: %w", err)
		}
		*e = mode
		return nil
	case yaml.MappingNode:
		type plain EdgeMode
		var mode plain
		if err := node.Decode(&mode); err != nil {
			return err
		}
		*e = EdgeMode(mode)
		return nil
	default:
		return NewValidationError("edge_mode", "must be a mapping or a 3-element sequence", node.Value)
	}
}

// Validate 验证边缘模式参数
func (e EdgeMode) Validate() error {
	if e.Bandwidth < 0 {
		return NewValidationError("edge_mode.bandwidth", "must not be negative", e.Bandwidth)
	}
	if e.EnergyPerUnit < 0 {
		return NewValidationError("edge_mode.energy_per_unit", "must not be negative", e.EnergyPerUnit)
	}
	return nil
}

// GeneratorConfig DAG 生成器配置
type GeneratorConfig struct {
	Seed                 uint64  `yaml:"seed"`
	Mode                 string  `yaml:"mode"` // fixed, random
	N                    int     `yaml:"n"`
	MaxOut               int     `yaml:"max_out"`
	Alpha                float64 `yaml:"alpha"`
	Beta                 float64 `yaml:"beta"`
	MaxReconcileAttempts int     `yaml:"max_reconcile_attempts"`
	MaxVertices          int     `yaml:"max_vertices"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// EventsConfig 资源变更事件配置
type EventsConfig struct {
	Kafka KafkaConfig `yaml:"kafka"`
}

// KafkaConfig Kafka 发布配置，Brokers 为空时不启用
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Enabled 是否启用 Kafka 发布
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// GetDefaultConfig 获取默认配置
func GetDefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:       "info",
			Development: false,
			File: LogFileConfig{
				MaxSizeMB:  100,
				MaxBackups: 3,
				MaxAgeDays: 7,
			},
		},
		Generator: GeneratorConfig{
			Seed:                 1,
			Mode:                 "fixed",
			N:                    10,
			MaxOut:               2,
			Alpha:                1.0,
			Beta:                 1.0,
			MaxReconcileAttempts: 10000,
			MaxVertices:          100000,
		},
		Server: ServerConfig{
			Enabled: true,
			Address: "0.0.0.0",
			Port:    8090,
		},
		Events: EventsConfig{
			Kafka: KafkaConfig{
				Topic: "edgesim.machine.transitions",
			},
		},
	}
}

// LoadConfig 加载配置文件，路径为空时返回默认配置
func LoadConfig(path string) (*Config, error) {
	config := GetDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate 验证全局配置
func (c *Config) Validate() error {
	for i, m := range c.Cluster.Machines {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("cluster.machines[%d]: %w", i, err)
		}
	}
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return NewValidationError("server.port", "must be between 1 and 65535", c.Server.Port)
	}
	if c.Events.Kafka.Enabled() && c.Events.Kafka.Topic == "" {
		return NewValidationError("events.kafka.topic", "cannot be empty when brokers are set", c.Events.Kafka.Topic)
	}
	return nil
}

// applyEnvOverrides 使用环境变量覆盖配置
func applyEnvOverrides(config *Config) {
	config.Log.Level = getEnvOrDefault("EDGESIM_LOG_LEVEL", config.Log.Level)
	config.Server.Port = getEnvIntOrDefault("EDGESIM_SERVER_PORT", config.Server.Port)
	if brokers := os.Getenv("EDGESIM_KAFKA_BROKERS"); brokers != "" {
		config.Events.Kafka.Brokers = strings.Split(brokers, ",")
	}
}

// getEnvOrDefault 获取环境变量或使用默认值
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault 获取环境变量整数值或使用默认值
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
