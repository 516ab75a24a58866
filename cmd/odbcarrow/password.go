package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kingpin/v2"

	"github.com/semihalev/go-odbcarrow/internal/profile"
)

func addPasswordCommand(app *kingpin.Application) {
	var host, user string
	c := app.Command("password", "Store a password in the OS keyring, read from stdin.")
	c.Flag("host", "Host the password belongs to.").Required().StringVar(&host)
	c.Flag("user", "User the password belongs to.").Short('u').Required().StringVar(&user)
	c.Action(func(*kingpin.ParseContext) error {
		fmt.Fprintf(os.Stderr, "password for %s@%s: ", user, host)
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			exitWithErr(err)
		}
		if err := profile.SetPassword(user, host, strings.TrimRight(line, "\r\n")); err != nil {
			exitWithErr(err)
		}
		return nil
	})
}
