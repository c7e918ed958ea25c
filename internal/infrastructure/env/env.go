package env

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"turn-annotator/internal/application/port/output"
)

var _ output.ConfigPort = (*EnvService)(nil)

// EnvService reads configuration from the process environment after loading .env files.
// Keys are looked up with the service prefix, so Get("MODEL") reads ANNOTATOR_MODEL.
type EnvService struct {
	prefix string
	loaded []string
}

func NewEnvService(prefix string) *EnvService {
	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = "dev"
	}

	e := &EnvService{prefix: prefix}
	if err := godotenv.Load(".env"); err == nil {
		e.loaded = append(e.loaded, ".env")
	}

	envFile := fmt.Sprintf(".env.%s", appEnv)
	if err := godotenv.Overload(envFile); err == nil {
		e.loaded = append(e.loaded, envFile)
	}

	return e
}

// LoadedFiles lists the dotenv files that were found, in load order.
func (e *EnvService) LoadedFiles() []string {
	return e.loaded
}

func (e *EnvService) key(name string) string {
	if e.prefix == "" {
		return name
	}
	return e.prefix + "_" + strings.ToUpper(name)
}

func (e *EnvService) Get(key string) string {
	return os.Getenv(e.key(key))
}

func (e *EnvService) MustGet(key string) string {
	val := e.Get(key)
	if val == "" {
		log.Fatalf("ENV %s is missing", e.key(key))
	}
	return val
}

func (e *EnvService) GetWithDefault(key string, defaultValue string) string {
	val := e.Get(key)
	if val == "" {
		return defaultValue
	}
	return val
}

func (e *EnvService) GetBool(key string, defaultValue bool) bool {
	val := e.Get(key)
	if val == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func (e *EnvService) GetInt(key string, defaultValue int) int {
	val := e.Get(key)
	if val == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return parsed
}
