package main

import (
	"fmt"
	"log"

	appconfig "schoolbot/app/config"
	"schoolbot/app/handlers"
	"schoolbot/core/bootstrap"
	corecmd "schoolbot/core/cmd"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config/config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return appconfig.Load(path)
		},
		Bootstrap: func(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			cfg, ok := carrier.(*appconfig.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", carrier)
			}
			res, err := bootstrap.Run(bootstrap.Options{
				Config:   cfg.CoreConfig(),
				Database: cfg.Database,
			})
			if err != nil {
				return nil, err
			}
			return handlers.NewApp(cfg, res.DB), nil
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
