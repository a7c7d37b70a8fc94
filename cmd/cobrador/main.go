package main

import (
	"context"
	"log"
	"os"

	"github.com/JohnF-code/financeflow-app-cobrador/internal/buildinfo"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/cli"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := cli.NewApp(cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
