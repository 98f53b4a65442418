package main

import (
	"context"
	"dynners/common"
	"dynners/config"
	"dynners/dynners"
	"dynners/log"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/kardianos/service"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
)

var (
	configPath = flag.StringP("config", "c", "", "path to config file (default: first of "+fmt.Sprint(config.SearchPaths)+")")
	help       = flag.BoolP("help", "h", false, "Print help message")
)

var buildDate string

func init() {
	flag.Parse()
	if *help {
		fmt.Println(flag.CommandLine.FlagUsages())
		os.Exit(0)
	}
}

func getInitLogger() context.Context {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Printf("Failed creating logger: %v\n", err)
		os.Exit(1)
	}

	return log.WithLogger(context.Background(), logger)
}

func getLogger(ctx context.Context, conf *config.Config) context.Context {
	logOption := zap.NewProductionConfig()

	if conf.Log.Level != nil {
		logOption.Level.SetLevel(*conf.Log.Level)
	}

	if conf.Log.Encoding != nil {
		logOption.Encoding = *conf.Log.Encoding
	}

	if conf.Log.InfoPath != nil {
		logOption.OutputPaths = *conf.Log.InfoPath
	}

	if conf.Log.ErrorPath != nil {
		logOption.ErrorOutputPaths = *conf.Log.ErrorPath
	}

	logger, err := logOption.Build()
	if err != nil {
		log.S(ctx).Fatalw("cannot build real logger", zap.Error(err))
	}

	return log.WithLogger(context.Background(), logger)
}

type program struct {
	ctx    context.Context
	daemon *dynners.Daemon
}

func (p *program) Start(s service.Service) error {
	p.daemon.Start(p.ctx)
	return nil
}

func (p *program) Stop(s service.Service) error {
	log.S(p.ctx).Infow("stopping")
	p.daemon.Stop()
	return nil
}

func main() {
	started := time.Now()
	ctx := getInitLogger()

	if buildDate != "" {
		log.S(ctx).Infow("dynners starting", "variant", "release", "version", config.Version, "build_date", buildDate)
	} else {
		log.S(ctx).Infow("dynners starting", "variant", "debug", "version", config.Version)
	}

	path, err := config.Find(*configPath)
	if err != nil {
		log.S(ctx).Fatalw("failed loading config", zap.Error(err))
	}

	conf, err := config.Load(path)
	if err != nil {
		log.S(ctx).Fatalw("failed loading config", "path", path, zap.Error(err))
	}

	ctx = getLogger(ctx, &conf)
	defer log.L(ctx).Sync()

	ctx = common.WithHTTP(ctx, &http.Client{}, conf.General.UserAgent)

	engine, err := dynners.New(ctx, &conf)
	if err != nil {
		log.S(ctx).Fatalw("cannot init engine", zap.Error(err))
	}
	defer engine.Close()

	daemon := dynners.NewDaemon(engine, time.Duration(*conf.General.UpdateRate)*time.Second)

	if *conf.General.UpdateRate == 0 {
		daemon.Start(ctx)
		<-daemon.Done()
		daemon.Stop()
		return
	}

	s, err := service.New(&program{ctx: ctx, daemon: daemon}, &service.Config{
		Name:        "dynners",
		DisplayName: "dynners",
		Description: "Keeps DNS records in sync with dynamic IP addresses",
	})
	if err != nil {
		log.S(ctx).Fatalw("cannot create service", zap.Error(err))
	}

	if service.Interactive() {
		log.S(ctx).Infow("running in foreground, interrupt to stop")
	} else {
		log.S(ctx).Infow("running as system service", "system", service.ChosenSystem().String())
	}

	if err := s.Run(); err != nil {
		log.S(ctx).Errorw("service exited with error", zap.Error(err))
	}

	log.S(ctx).Infow("dynners stopped", log.Since("uptime", started))
}
