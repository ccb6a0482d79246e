package main

import "time"

type Config struct {
	Host              string        `env:"HOST,default=localhost"`
	Port              int           `env:"PORT,default=8080"`
	BadgerFilepath    string        `env:"BADGER_FILEPATH,required=true"`
	DatabaseURL       string        `env:"DATABASE_URL,required=true"`
	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	PingInterval      time.Duration `env:"PING_INTERVAL,default=30s"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=5s"`
	VacancyBufferSize int           `env:"VACANCY_BUFFER_SIZE,default=256"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	LLMBaseURL        string        `env:"LLM_BASE_URL,required=true"`
	LLMAPIKey         string        `env:"LLM_API_KEY,required=true"`
	LLMModel          string        `env:"LLM_MODEL,default=gpt-4o-mini"`
	LLMTimeout        time.Duration `env:"LLM_TIMEOUT,default=60s"`
	LogLevel          string        `env:"LOG_LEVEL,default=info"`
}
