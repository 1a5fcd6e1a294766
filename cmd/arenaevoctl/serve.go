package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"arenaevo/internal/config"
	"arenaevo/internal/server"
)

func runServe(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	common := addCommonFlags(fs)
	addr := fs.String("addr", "", "listen address (overrides listen_addr)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := common.settings()
	if err != nil {
		return err
	}
	set := setFlags(fs)
	if set["addr"] {
		s.ListenAddr = *addr
	}
	if !set["log-format"] && s.LogFormat == config.DefaultSettings().LogFormat {
		s.LogFormat = "json"
	}

	e, err := openEnv(ctx, s, nil)
	if err != nil {
		return err
	}
	defer e.close()
	fmt.Fprintf(out, "serving store=%s on %s\n", s.Store, s.ListenAddr)
	return server.New(e.arena).ListenAndServe(ctx, s.ListenAddr)
}
