package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/revline/algateway/auth"
	"github.com/revline/algateway/dispatch"
)

const defaultCallTimeout = 30 * time.Second

func newCallCmd() *cobra.Command {
	var (
		configPath string
		pretty     bool
		user       string
	)

	cmd := &cobra.Command{
		Use:   "call <tool> [json-args|-]",
		Short: "Run one tool in-process and print its result",
		Long: "Run one tool in-process against the configured stores and providers.\n" +
			"Arguments are a JSON object; pass - to read them from stdin.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultCallTimeout)
			defer cancel()

			raw, err := callArgs(cmd.InOrStdin(), args[1:])
			if err != nil {
				return err
			}

			cfg, err := loadConfig(ctx, configPath)
			if err != nil {
				return err
			}
			cfg.Observe.LogWriter = cmd.ErrOrStderr()
			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			if user != "" {
				ctx = auth.WithIdentity(ctx, auth.Local(user))
			}
			meta := &dispatch.Meta{ScopeKey: auth.ScopeKeyFromContext(ctx)}
			res := a.dispatcher.Dispatch(ctx, args[0], raw, meta)
			out, err := json.Marshal(res)
			if err != nil {
				return err
			}
			if pretty {
				var buf bytes.Buffer
				if err := json.Indent(&buf, out, "", "  "); err == nil {
					out = buf.Bytes()
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			if !res.OK() {
				return fmt.Errorf("%s failed: %s", args[0], res.Err.Kind)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults apply when empty)")
	cmd.Flags().BoolVarP(&pretty, "pretty", "p", false, "indent the JSON output")
	cmd.Flags().StringVarP(&user, "user", "u", "", "act as this user for garage tools")
	return cmd
}

func callArgs(stdin io.Reader, args []string) (json.RawMessage, error) {
	if len(args) == 0 {
		return nil, nil
	}
	if args[0] != "-" {
		return json.RawMessage(args[0]), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("read arguments: %w", err)
	}
	return data, nil
}
