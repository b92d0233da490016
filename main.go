package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/calassist/calassist/internal/app"
	"github.com/calassist/calassist/internal/config"
	"github.com/calassist/calassist/pkg/google"
	"github.com/calassist/calassist/pkg/prompt"
	log "github.com/sirupsen/logrus"
)

func init() {
	level := os.Getenv("LOG_LEVEL")
	if level != "" {
		logrusLevel, err := log.ParseLevel(level)
		if err != nil {
			log.Fatal(err)
		}
		log.SetLevel(logrusLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

func main() {
	configPath := flag.String("config", "./config/application.yaml", "path to the YAML configuration file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-config path] [prompt|serve|auth]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		command = "prompt"
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	deps, err := app.BuildDependencies(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}
	defer deps.Close()

	ctx := context.Background()
	switch command {
	case "prompt":
		err = prompt.NewSession(deps.CalendarService, os.Stdin, os.Stdout).Run(ctx)
	case "auth":
		err = google.AuthorizeInteractive(ctx, deps.GoogleAuth, os.Stdin, os.Stdout)
	case "serve":
		var application *app.Application
		application, err = app.NewApplication(cfg, deps)
		if err == nil {
			err = application.Run()
		}
	default:
		flag.Usage()
		deps.Close()
		os.Exit(2)
	}
	if err != nil {
		deps.Close()
		log.Fatal(err)
	}
}
