package main

import (
	"fmt"

	"github.com/trezcool/goose"

	"github.com/trezcool/soko/fs"
	"github.com/trezcool/soko/storage/database"
)

var gooseRunFunc = goose.RunFS // mockable

func (cli *commandLine) createDB() error {
	return database.CreateIfNotExist(cli.conf)
}

func (cli *commandLine) migrate(args []string) error {
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}

	cli.notify(fmt.Sprintf("[%s] running migrations: %s", cli.conf.Env, args[0]))
	if err := gooseRunFunc(args[0], database.SQLDB(cli.db), appfs.FS, "migrations", arguments...); err != nil {
		cli.notify(fmt.Sprintf("[%s] migrations failed: %v", cli.conf.Env, err))
		return err
	}
	cli.notify(fmt.Sprintf("[%s] migrations done: %s", cli.conf.Env, args[0]))
	return nil
}

func (cli *commandLine) notify(text string) {
	if cli.notifier != nil {
		cli.notifier.Notify(text)
	}
}
