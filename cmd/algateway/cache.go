package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/revline/algateway/auth"
)

// cacheClient talks to the admin routes of a running gateway.
type cacheClient struct {
	addr   string
	apiKey string
	token  string
	http   *http.Client
}

func (c *cacheClient) do(cmd *cobra.Command, method, path string, out any) error {
	req, err := http.NewRequestWithContext(cmd.Context(), method, strings.TrimRight(c.addr, "/")+path, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set(auth.APIKeyHeader, c.apiKey)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s %s: %s (%d)", method, path, e.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	return json.Unmarshal(body, out)
}

func newCacheCmd() *cobra.Command {
	c := &cacheClient{http: &http.Client{Timeout: 10 * time.Second}}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the result cache of a running gateway",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var stats struct {
				Entries   int     `json:"entries"`
				Hits      int64   `json:"hits"`
				Misses    int64   `json:"misses"`
				Evictions int64   `json:"evictions"`
				HitRate   float64 `json:"hit_rate"`
			}
			if err := c.do(cmd, http.MethodGet, "/v1/cache", &stats); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Entries:   %d\nHits:      %d\nMisses:    %d\nEvictions: %d\nHit rate:  %.1f%%\n",
				stats.Entries, stats.Hits, stats.Misses, stats.Evictions, stats.HitRate*100)
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear [tool]",
		Short: "Clear cached results for one tool, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/v1/cache"
			if len(args) == 1 {
				path += "/" + url.PathEscape(args[0])
			}
			var out struct {
				Removed int `json:"removed"`
			}
			if err := c.do(cmd, http.MethodDelete, path, &out); err != nil {
				return err
			}
			if len(args) == 1 {
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cached %s results.\n", out.Removed, args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cached results.\n", out.Removed)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&c.addr, "addr", "http://localhost:8080", "gateway base URL")
	cmd.PersistentFlags().StringVar(&c.apiKey, "api-key", "", "API key sent as "+auth.APIKeyHeader)
	cmd.PersistentFlags().StringVar(&c.token, "token", "", "bearer token")
	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}
