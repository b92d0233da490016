package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

var ErrInvalidTimeZone = errors.New("invalid calendar.timezone")

const (
	TokenStoreFile     = "file"
	TokenStorePostgres = "postgres"
)

type Application struct {
	Server   Server   `koanf:"server"`
	API      API      `koanf:"api"`
	Google   Google   `koanf:"google"`
	Calendar Calendar `koanf:"calendar"`
	Database Database `koanf:"db"`
}

type Server struct {
	Addr string `koanf:"addr"`
	// Host is the public base URL. When set, the OAuth redirect points at
	// its /auth/google/callback instead of the registered redirect.
	Host string `koanf:"host"`
	// TrustProxyHeaders keys rate limits on X-Forwarded-For / X-Real-IP.
	// Enable it only behind a proxy that overwrites those headers.
	TrustProxyHeaders bool `koanf:"trustproxyheaders"`
}

type API struct {
	Token              string `koanf:"token"`
	RateLimitPerMinute int    `koanf:"ratelimitperminute"`
	RateLimitBurst     int    `koanf:"ratelimitburst"`
}

type Google struct {
	CredentialsFile string        `koanf:"credentialsfile"`
	TokenFile       string        `koanf:"tokenfile"`
	TokenStore      string        `koanf:"tokenstore"`
	Account         string        `koanf:"account"`
	Timeout         time.Duration `koanf:"timeout"`
}

type Calendar struct {
	DefaultName       string `koanf:"defaultname"`
	TimeZone          string `koanf:"timezone"`
	Strict            bool   `koanf:"strict"`
	LocalSearchWindow bool   `koanf:"localsearchwindow"`
}

type Database struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	User   string `koanf:"user"`
	Pass   string `koanf:"pass"`
	Name   string `koanf:"name"`
	Schema string `koanf:"schema"`
}

func Defaults() Application {
	return Application{
		Server: Server{
			Addr: ":8080",
		},
		API: API{
			RateLimitPerMinute: 60,
			RateLimitBurst:     10,
		},
		Google: Google{
			CredentialsFile: "credentials.json",
			TokenFile:       "token.json",
			TokenStore:      TokenStoreFile,
			Account:         "default",
			Timeout:         30 * time.Second,
		},
		Calendar: Calendar{
			DefaultName: "Family Calendar",
			TimeZone:    "America/Toronto",
		},
		Database: Database{
			Host:   "localhost",
			Port:   5432,
			User:   "calassist",
			Pass:   "",
			Name:   "calassist",
			Schema: "calassist",
		},
	}
}

func Load(path string) (Application, error) {
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

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: "CALASSIST_",
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, "CALASSIST_")), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}
	if _, err := time.LoadLocation(app.Calendar.TimeZone); err != nil || app.Calendar.TimeZone == "" {
		return Application{}, fmt.Errorf("%w: %q", ErrInvalidTimeZone, app.Calendar.TimeZone)
	}

	return app, nil
}
