package main

import (
	"context"
	"io"
)

func migrateCommand() *command {
	return &command{
		name:        "migrate",
		description: "Apply database migrations",
		run: func(ctx context.Context, args []string, out io.Writer) error {
			fs := newFlagSet("migrate", out)
			if err := fs.Parse(args); err != nil {
				return err
			}

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			return a.migrate(ctx)
		},
	}
}
