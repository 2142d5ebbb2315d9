// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

const (
	argAccount  = "account-name"
	argPassword = "account-password"
	argPIN      = "unlock-pin"
)

// credentialArgs are the optional positional account, password and PIN.
func credentialArgs() []cli.Argument {
	return []cli.Argument{
		&cli.StringArg{Name: argAccount},
		&cli.StringArg{Name: argPassword},
		&cli.StringArg{Name: argPIN},
	}
}

// credentialFlags bind the credential environment variables.
func credentialFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "account",
			Usage:   "Account name",
			Sources: cli.EnvVars("BADGEIDLE_ACCOUNT"),
		},
		&cli.StringFlag{
			Name:    "password",
			Usage:   "Account password",
			Sources: cli.EnvVars("BADGEIDLE_PASSWORD"),
		},
		&cli.StringFlag{
			Name:    "pin",
			Usage:   "Parental unlock PIN",
			Sources: cli.EnvVars("BADGEIDLE_PIN"),
		},
	}
}

// runCommand is the long-running idle loop.
func runCommand(r *Runner) *cli.Command {
	flags := append([]cli.Flag{
		configFlag(),
		&cli.StringFlag{
			Name:    "selection",
			Aliases: []string{"s"},
			Usage:   "JSON file with the item ids to idle (overrides idle.selection_file)",
		},
		&cli.BoolFlag{
			Name:  "tui",
			Usage: "Show the interactive dashboard instead of the console",
		},
		&cli.BoolFlag{
			Name:  "no-console",
			Usage: "Do not read commands from standard input",
		},
	}, credentialFlags()...)

	return &cli.Command{
		Name:      "run",
		Usage:     "Log in and idle until no drops remain",
		ArgsUsage: "[account] [password] [pin]",
		Arguments: credentialArgs(),
		Flags:     flags,
		Action:    r.Run,
	}
}

// scanCommand performs a single read-only scan.
func scanCommand(r *Runner) *cli.Command {
	flags := append([]cli.Flag{
		configFlag(),
		&cli.StringFlag{
			Name:    "selection",
			Aliases: []string{"s"},
			Usage:   "JSON file with the item ids to include",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: text, csv, markdown or json",
			Value:   "text",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write to a file instead of standard output",
		},
	}, credentialFlags()...)

	return &cli.Command{
		Name:      "scan",
		Usage:     "Log in, list items with drops remaining and log off",
		ArgsUsage: "[account] [password] [pin]",
		Arguments: credentialArgs(),
		Flags:     flags,
		Action:    r.Scan,
	}
}

// setupCommand handles configuration and database setup.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write an example configuration file",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
		},
	}
}
