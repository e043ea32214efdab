package main

import (
	"log"
	"os"

	"github.com/trezcool/soko/core"
	logsvc "github.com/trezcool/soko/services/logger"
	slacksvc "github.com/trezcool/soko/services/slack"
	"github.com/trezcool/soko/storage/database"
	sqlxrepos "github.com/trezcool/soko/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	wd, err := os.Getwd()
	errAndDie(err)
	conf, err := core.NewConfig(wd)
	errAndDie(err)

	rollbar := logsvc.NewRollbarLogger(logger, conf)
	rollbar.Enable(!conf.Debug)

	cli := commandLine{
		conf:     conf,
		notifier: slacksvc.NewNotifier(conf, rollbar),
	}

	// createdb runs before a connection to the app database can exist
	if len(os.Args) > 1 && os.Args[1] != "createdb" {
		db, err := database.Open(conf)
		errAndDie(err)
		defer db.Close()
		errAndDie(db.Ping())

		cli.db = db
		cli.usrRepo = sqlxrepos.NewUserRepository(db)
	}

	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
