package internal

type (
	Controller interface {
		Handler() Handler
		CronTasks() []CronTask
		ReverseProxies() []ReverseProxy
	}
)
