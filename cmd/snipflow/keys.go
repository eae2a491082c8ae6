package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dmitrymomot/snipflow/pkg/apikey"
)

func keysCommand() *command {
	return &command{
		name:        "keys",
		description: "Issue, list and revoke API keys",
		subcommands: []*command{
			{name: "issue", description: "Issue a new key and print it once", run: runKeysIssue},
			{name: "list", description: "List the keys of a principal", run: runKeysList},
			{name: "revoke", description: "Revoke a key", run: runKeysRevoke},
		},
	}
}

func authenticator(a *app) *apikey.Authenticator {
	return apikey.NewAuthenticator(apikey.NewPostgresStore(a.pool), apikey.WithLogger(a.log))
}

func runKeysIssue(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("keys issue", out)
	principalFlag := fs.String("principal", "", "owner principal ID")
	name := fs.String("name", "", "display name")
	limit := fs.Int("limit", apikey.DefaultRateLimit, "requests per hour")
	if err := fs.Parse(args); err != nil {
		return err
	}
	principalID, err := parseUUIDFlag("principal", *principalFlag)
	if err != nil {
		return err
	}

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if _, err := a.principals.Get(ctx, principalID); err != nil {
		return err
	}
	k, raw, err := authenticator(a).Issue(ctx, principalID, *name, *limit)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "id:     %s\nprefix: %s\nlimit:  %d/hour\nkey:    %s\n\nStore the key now, it cannot be shown again.\n",
		k.ID, k.Prefix, k.RateLimit, raw)
	return nil
}

func runKeysList(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("keys list", out)
	principalFlag := fs.String("principal", "", "owner principal ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	principalID, err := parseUUIDFlag("principal", *principalFlag)
	if err != nil {
		return err
	}

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	keys, err := authenticator(a).List(ctx, principalID)
	if err != nil {
		return err
	}
	return printKeys(out, keys)
}

func printKeys(out io.Writer, keys []apikey.Key) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPREFIX\tLIMIT\tACTIVE\tLAST USED")
	for _, k := range keys {
		lastUsed := "never"
		if k.LastUsedAt != nil {
			lastUsed = k.LastUsedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%t\t%s\n", k.ID, k.Name, k.Prefix, k.RateLimit, k.Active, lastUsed)
	}
	return tw.Flush()
}

func runKeysRevoke(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("keys revoke", out)
	principalFlag := fs.String("principal", "", "owner principal ID")
	keyFlag := fs.String("key", "", "key ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	principalID, err := parseUUIDFlag("principal", *principalFlag)
	if err != nil {
		return err
	}
	keyID, err := parseUUIDFlag("key", *keyFlag)
	if err != nil {
		return err
	}

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := authenticator(a).Revoke(ctx, principalID, keyID); err != nil {
		return err
	}
	fmt.Fprintf(out, "revoked %s\n", keyID)
	return nil
}
