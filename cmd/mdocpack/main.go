package main

import (
	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/mdocpack/cmd/mdocpack/commands"
	derrors "git.home.luguber.info/inful/mdocpack/internal/foundation/errors"
	"git.home.luguber.info/inful/mdocpack/internal/version"
)

func main() {
	cli := &commands.CLI{}
	global := commands.NewGlobal()
	ctx := kong.Parse(cli,
		kong.Name("mdocpack"),
		kong.Description("Compile markdoc documents into Next.js page modules."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(global),
	)
	if err := ctx.Run(global, cli); err != nil {
		derrors.NewCLIErrorAdapter(cli.Verbose, global.Logger).HandleError(err)
	}
}
