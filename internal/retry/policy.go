package retry

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shaiso/Conveyor/internal/mq"
)

// Значения по умолчанию.
const (
	DefaultDelay    = 10 * time.Second
	DefaultMaxDelay = 30 * time.Minute
)

// Стратегии задержки.
const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// Policy — политика повторов.
type Policy struct {
	// Delays — задержка по типу сообщения. Тип без записи получает DefaultDelay.
	Delays map[mq.MessageType]time.Duration

	// DefaultDelay — задержка по умолчанию.
	DefaultDelay time.Duration

	// Backoff — стратегия: "fixed" (default) или "exponential".
	Backoff string

	// MaxDelay — потолок задержки для exponential.
	MaxDelay time.Duration

	// MaxAttempts — максимум попыток (включая первую). 0 — без ограничения.
	MaxAttempts int
}

// DefaultPolicy возвращает политику: фиксированные 10s, без ограничения попыток.
func DefaultPolicy() Policy {
	return Policy{
		Delays:       make(map[mq.MessageType]time.Duration),
		DefaultDelay: DefaultDelay,
		Backoff:      BackoffFixed,
		MaxDelay:     DefaultMaxDelay,
	}
}

// Delay возвращает задержку перед попыткой attempt для типа t.
//
// Для exponential: delay = base * 2^(attempt-2), первая повторная
// попытка (attempt = 2) ждёт base.
func (p Policy) Delay(t mq.MessageType, attempt int) time.Duration {
	base, ok := p.Delays[t]
	if !ok {
		base = p.DefaultDelay
	}
	if base <= 0 {
		base = DefaultDelay
	}

	if p.Backoff != BackoffExponential {
		return base
	}

	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}

	delay := base
	for i := 2; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

// Exhausted проверяет, превышает ли attempt лимит попыток.
func (p Policy) Exhausted(attempt int) bool {
	return p.MaxAttempts > 0 && attempt > p.MaxAttempts
}

// PolicyFromEnv читает политику из переменных окружения.
//
//	RETRY_DELAY_MS      задержка по умолчанию, мс
//	RETRY_DELAYS        задержки по типам: "createRecord=30000,webhook=5000"
//	RETRY_BACKOFF       fixed | exponential
//	RETRY_MAX_DELAY_MS  потолок для exponential, мс
//	RETRY_MAX_ATTEMPTS  максимум попыток, 0 — без ограничения
func PolicyFromEnv() (Policy, error) {
	p := DefaultPolicy()

	if v := os.Getenv("RETRY_DELAY_MS"); v != "" {
		d, err := parseMillis(v)
		if err != nil {
			return p, fmt.Errorf("RETRY_DELAY_MS: %w", err)
		}
		p.DefaultDelay = d
	}

	if v := os.Getenv("RETRY_DELAYS"); v != "" {
		delays, err := ParseDelays(v)
		if err != nil {
			return p, fmt.Errorf("RETRY_DELAYS: %w", err)
		}
		p.Delays = delays
	}

	if v := os.Getenv("RETRY_BACKOFF"); v != "" {
		switch v {
		case BackoffFixed, BackoffExponential:
			p.Backoff = v
		default:
			return p, fmt.Errorf("RETRY_BACKOFF: unknown strategy %q", v)
		}
	}

	if v := os.Getenv("RETRY_MAX_DELAY_MS"); v != "" {
		d, err := parseMillis(v)
		if err != nil {
			return p, fmt.Errorf("RETRY_MAX_DELAY_MS: %w", err)
		}
		p.MaxDelay = d
	}

	if v := os.Getenv("RETRY_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return p, fmt.Errorf("RETRY_MAX_ATTEMPTS: invalid value %q", v)
		}
		p.MaxAttempts = n
	}

	return p, nil
}

// ParseDelays разбирает список "type=ms,type=ms".
func ParseDelays(s string) (map[mq.MessageType]time.Duration, error) {
	delays := make(map[mq.MessageType]time.Duration)

	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		name, value, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("invalid entry %q, expected type=ms", item)
		}

		t := mq.MessageType(strings.TrimSpace(name))
		if !t.Valid() {
			return nil, fmt.Errorf("%w: %q", mq.ErrUnknownMessageType, t)
		}

		d, err := parseMillis(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t, err)
		}
		delays[t] = d
	}

	return delays, nil
}

func parseMillis(v string) (time.Duration, error) {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil || ms < 0 {
		return 0, fmt.Errorf("invalid milliseconds %q", v)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
