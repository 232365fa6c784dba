package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

const envPrefix = "LEDGER_"

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

type Application struct {
	Port   int    `koanf:"port"`
	Cors   Cors   `koanf:"cors"`
	Store  Store  `koanf:"store"`
	Ledger Ledger `koanf:"ledger"`
}

type Cors struct {
	Origins []string `koanf:"origins"`
}

type Store struct {
	Backend  string   `koanf:"backend"`
	Postgres Postgres `koanf:"postgres"`
	Mongo    Mongo    `koanf:"mongo"`
}

type Postgres struct {
	URL string `koanf:"url"`
}

type Mongo struct {
	URI        string `koanf:"uri"`
	Database   string `koanf:"database"`
	Collection string `koanf:"collection"`
}

type Ledger struct {
	Timezone          string `koanf:"timezone"`
	Locale            string `koanf:"locale"`
	RetroactiveLimits bool   `koanf:"retroactive_limits"`
}

func Defaults() Application {
	return Application{
		Port: 2025,
		Cors: Cors{Origins: []string{"http://localhost:3000"}},
		Store: Store{
			Backend: BackendMemory,
			Mongo: Mongo{
				URI:        "mongodb://localhost:27017",
				Database:   "enaEma",
				Collection: "tasks",
			},
		},
		Ledger: Ledger{
			Timezone: "Local",
			Locale:   "en-US",
		},
	}
}

// Load layers defaults, the optional YAML file at path and the environment.
// A .env file in the working directory is read into the environment first.
func Load(path string) (Application, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("failed to read .env: %v", err)
	}

	var k = koanf.New(".")

	err := k.Load(structs.Provider(Defaults(), "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	if err := loadLegacyEnv(k); err != nil {
		log.Errorf("error loading legacy envs: %v", err)
		return Application{}, err
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix:        envPrefix,
		TransformFunc: transformEnv,
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}

	return app, nil
}

// transformEnv maps LEDGER_STORE_MONGO_URI to store.mongo.uri. A double
// underscore keeps a literal underscore: LEDGER_LEDGER_RETROACTIVE__LIMITS.
// Comma separated values become lists.
func transformEnv(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	key = strings.ReplaceAll(key, "__", "\x00")
	key = strings.ReplaceAll(key, "_", ".")
	key = strings.ReplaceAll(key, "\x00", "_")
	if key == "cors.origins" {
		return key, splitList(value)
	}
	return key, value
}

// loadLegacyEnv honours PORT and MONGODB_URI from older deployments; the
// prefixed variables loaded afterwards take precedence.
func loadLegacyEnv(k *koanf.Koanf) error {
	legacy := map[string]string{
		"PORT":        "port",
		"MONGODB_URI": "store.mongo.uri",
	}
	return k.Load(env.Provider(".", env.Opt{
		TransformFunc: func(key, value string) (string, any) {
			mapped, ok := legacy[key]
			if !ok || value == "" {
				return "", nil
			}
			return mapped, value
		},
	}), nil)
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			list = append(list, p)
		}
	}
	return list
}
