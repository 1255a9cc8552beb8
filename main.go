package main

import (
	"flag"
	"fmt"
	"os"
	"os/user"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"kansoc/repl"
)

func main() {
	verbosity := flag.Int("v", -1, "log verbosity (-1 warnings, 1 info, 2 debug)")
	flag.Parse()
	commonlog.Configure(*verbosity, nil)

	name := "there"
	if currentUser, err := user.Current(); err == nil {
		name = currentUser.Username
	}
	fmt.Printf("Welcome to the kansoc REPL, %s! Type :help for commands.\n", name)

	if err := repl.Start(flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "repl: %v\n", err)
		os.Exit(1)
	}
}
