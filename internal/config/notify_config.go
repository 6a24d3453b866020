package config

type NotifyConfig interface {
	GetNotifyBackend() string
	GetNotifyRedisURL() string
	GetEmailFrom() string
}

type Notify struct{}

var _ NotifyConfig = Notify{}

// GetNotifyBackend is "log" (write messages to the logger) or "queue"
// (enqueue them for cmd/mailer).
func (Notify) GetNotifyBackend() string {
	return GetEnv("NOTIFY_BACKEND", "log")
}

func (Notify) GetNotifyRedisURL() string {
	return GetEnv("NOTIFY_REDIS_URL", Storage{}.GetRedisURL())
}

func (Notify) GetEmailFrom() string {
	return GetEnv("EMAIL_FROM", "noreply@example.com")
}
