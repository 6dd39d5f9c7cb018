// Package config собирает конфигурацию процессов Conveyor из переменных окружения.
//
// Каждый пакет читает свою часть сам (mq.ServerConfigFromEnv,
// hostapi.ConfigFromEnv, ...); здесь они сводятся в одну структуру,
// которую используют cmd/conveyor-worker и команда show-config.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Conveyor/internal/hostapi"
	"github.com/shaiso/Conveyor/internal/mailer"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/retry"
)

// Значения по умолчанию.
const (
	DefaultWorkerPort = "8082"
	DefaultAPIPort    = "8080"
	DefaultPrefetch   = 1

	// ShutdownTimeout — время на завершение HTTP-сервера процесса.
	ShutdownTimeout = 10 * time.Second
)

// Worker — параметры процесса воркера.
type Worker struct {
	Queues   []mq.Queue `yaml:"queues"`
	Prefetch int        `yaml:"prefetch"`
	Port     string     `yaml:"port"`
	TempDir  string     `yaml:"temp_dir,omitempty"`
}

// Config — полная конфигурация сервера.
type Config struct {
	RabbitMQ mq.ServerConfig `yaml:"rabbitmq"`
	Topology mq.Topology     `yaml:"-"`
	Worker   Worker          `yaml:"worker"`
	APIPort  string          `yaml:"api_port"`
	Database string          `yaml:"database"`
	HostAPI  hostapi.Config  `yaml:"host_api"`
	Mailer   mailer.Config   `yaml:"mailer"`
	Retry    retry.Policy    `yaml:"-"`
}

// Load читает конфигурацию из окружения.
//
// Ошибка возвращается только для значений, которые нельзя молча заменить
// значением по умолчанию: неизвестная очередь в WORKER_QUEUES и
// некорректные RETRY_*.
func Load() (Config, error) {
	queues, err := mq.ParseQueues(splitList(os.Getenv("WORKER_QUEUES")))
	if err != nil {
		return Config{}, fmt.Errorf("WORKER_QUEUES: %w", err)
	}

	policy, err := retry.PolicyFromEnv()
	if err != nil {
		return Config{}, err
	}

	topology := mq.DefaultTopology()
	topology.Exchange = getEnv("MQ_EXCHANGE", topology.Exchange)
	topology.DeadLetter = getBool("MQ_DEAD_LETTER")

	cfg := Config{
		RabbitMQ: mq.ServerConfigFromEnv(),
		Topology: topology,
		Worker: Worker{
			Queues:   queues,
			Prefetch: getInt("WORKER_PREFETCH", DefaultPrefetch),
			Port:     getEnv("WORKER_PORT", DefaultWorkerPort),
			TempDir:  os.Getenv("WORKER_TEMP_DIR"),
		},
		APIPort:  getEnv("API_PORT", DefaultAPIPort),
		Database: repo.DSNFromEnv(),
		HostAPI:  hostapi.ConfigFromEnv(),
		Mailer:   mailer.ConfigFromEnv(),
		Retry:    policy,
	}

	return cfg, nil
}

// view — представление конфигурации для вывода: секреты скрыты,
// длительности записаны строками.
type view struct {
	RabbitMQ mq.ServerConfig `yaml:"rabbitmq"`
	Exchange string          `yaml:"exchange"`
	Dead     bool            `yaml:"dead_letter"`
	Worker   Worker          `yaml:"worker"`
	APIPort  string          `yaml:"api_port"`
	Database string          `yaml:"database"`
	HostAPI  hostView        `yaml:"host_api"`
	Mailer   mailer.Config   `yaml:"mailer"`
	Retry    retryView       `yaml:"retry"`
}

type hostView struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
	Timeout string `yaml:"timeout"`
}

type retryView struct {
	Backoff      string            `yaml:"backoff"`
	DefaultDelay string            `yaml:"default_delay"`
	MaxDelay     string            `yaml:"max_delay"`
	MaxAttempts  int               `yaml:"max_attempts"`
	Delays       map[string]string `yaml:"delays,omitempty"`
}

// YAML возвращает конфигурацию в YAML без паролей и токенов.
func (c Config) YAML() ([]byte, error) {
	host := c.HostAPI.Redacted()

	v := view{
		RabbitMQ: c.RabbitMQ.Redacted(),
		Exchange: c.Topology.ExchangeName(),
		Dead:     c.Topology.DeadLetter,
		Worker:   c.Worker,
		APIPort:  c.APIPort,
		Database: redactDSN(c.Database),
		HostAPI: hostView{
			BaseURL: host.BaseURL,
			Token:   host.Token,
			Timeout: host.Timeout.String(),
		},
		Mailer: c.Mailer.Redacted(),
		Retry: retryView{
			Backoff:      c.Retry.Backoff,
			DefaultDelay: c.Retry.DefaultDelay.String(),
			MaxDelay:     c.Retry.MaxDelay.String(),
			MaxAttempts:  c.Retry.MaxAttempts,
		},
	}

	if len(c.Retry.Delays) > 0 {
		v.Retry.Delays = make(map[string]string, len(c.Retry.Delays))
		for t, d := range c.Retry.Delays {
			v.Retry.Delays[string(t)] = d.String()
		}
	}

	out, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}

// redactDSN скрывает пароль в DSN.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}
