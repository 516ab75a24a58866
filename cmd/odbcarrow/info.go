package main

import (
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	odbcarrow "github.com/semihalev/go-odbcarrow"
)

func addInfoCommand(app *kingpin.Application) {
	app.Command("info", "Print library and ODBC driver manager information.").Action(func(*kingpin.ParseContext) error {
		fmt.Println(odbcarrow.GetVersionInfo())
		return nil
	})
}
