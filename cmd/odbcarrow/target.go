package main

import (
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	odbcarrow "github.com/semihalev/go-odbcarrow"
)

type targetCommand struct {
	conn connectFlags
}

func addTargetCommand(app *kingpin.Application) {
	cmd := &targetCommand{}
	c := app.Command("target", "Print the resolved ODBC connection string with the password masked.").Action(cmd.run)
	cmd.conn.register(c)
}

func (cmd *targetCommand) run(*kingpin.ParseContext) error {
	host, user, password, cfg, err := cmd.conn.resolve()
	if err != nil {
		exitWithErr(err)
	}
	t := odbcarrow.Resolve(host, user, password, cfg)
	fmt.Printf("style:  %s\n", t.Style())
	fmt.Printf("target: %s\n", t.Redacted())
	return nil
}
