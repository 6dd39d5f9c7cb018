package mq

import (
	"os"
	"strconv"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Значения по умолчанию для подключения к RabbitMQ.
const (
	DefaultHost     = "localhost"
	DefaultPort     = 5672
	DefaultUser     = "guest"
	DefaultPassword = "guest"
	DefaultVHost    = "/"
)

// ServerConfig — параметры подключения к брокеру.
//
// Читается один раз при старте и не меняется за время жизни соединения.
type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	VHost    string `yaml:"vhost"`
}

// DefaultServerConfig возвращает конфигурацию для локальной разработки.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:     DefaultHost,
		Port:     DefaultPort,
		User:     DefaultUser,
		Password: DefaultPassword,
		VHost:    DefaultVHost,
	}
}

// ServerConfigFromEnv читает конфигурацию из переменных окружения.
//
// Переменные: RABBITMQ_HOST, RABBITMQ_PORT, RABBITMQ_USER, RABBITMQ_PASSWORD, RABBITMQ_VHOST.
// Отсутствующие (или некорректные) значения заменяются значениями по умолчанию.
func ServerConfigFromEnv() ServerConfig {
	cfg := DefaultServerConfig()

	if v := os.Getenv("RABBITMQ_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("RABBITMQ_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Port = port
		}
	}
	if v := os.Getenv("RABBITMQ_USER"); v != "" {
		cfg.User = v
	}
	if v := os.Getenv("RABBITMQ_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("RABBITMQ_VHOST"); v != "" {
		cfg.VHost = v
	}

	return cfg
}

// URL собирает AMQP URL из конфигурации.
func (c ServerConfig) URL() string {
	uri := amqp.URI{
		Scheme:   "amqp",
		Host:     c.Host,
		Port:     c.Port,
		Username: c.User,
		Password: c.Password,
		Vhost:    c.VHost,
	}
	return uri.String()
}

// Redacted возвращает копию конфигурации со скрытым паролем.
func (c ServerConfig) Redacted() ServerConfig {
	if c.Password != "" {
		c.Password = "******"
	}
	return c
}
