package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/elimu-cd/elimu/core"
	"github.com/elimu-cd/elimu/storage/database"
	sqlxrepos "github.com/elimu-cd/elimu/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.InitConf()
	cli := commandLine{conf: conf}

	// migrate bootstraps the database itself; every other command needs it up
	if len(os.Args) > 1 && os.Args[1] != "migrate" {
		sdb, err := database.Open(conf)
		errAndDie(err)
		defer sdb.Close()
		errAndDie(sdb.Ping())
		cli.usrRepo = sqlxrepos.NewUserRepository(sqlx.NewDb(sdb, conf.Database.Engine))
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
