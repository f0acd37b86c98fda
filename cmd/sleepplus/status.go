package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

const statusTimeout = 5 * time.Second

func newStatusCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the sleep vote of a running server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), statusTimeout)
			defer cancel()

			resp, err := fetchStatus(ctx, http.DefaultClient, addr)
			if err != nil {
				return err
			}
			return renderStatus(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "http://localhost:8080", "base URL of the server")
	return cmd
}

func fetchStatus(ctx context.Context, client *http.Client, addr string) (StatusResponse, error) {
	url := strings.TrimRight(addr, "/") + "/api/status"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return StatusResponse{}, fmt.Errorf("build request: %w", err)
	}
	res, err := client.Do(req)
	if err != nil {
		return StatusResponse{}, fmt.Errorf("query %s: %w", url, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return StatusResponse{}, fmt.Errorf("query %s: %s: %s", url, res.Status, strings.TrimSpace(string(body)))
	}
	var out StatusResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return StatusResponse{}, fmt.Errorf("decode status: %w", err)
	}
	return out, nil
}

func renderStatus(w io.Writer, resp StatusResponse) error {
	if len(resp.Worlds) == 0 {
		_, err := fmt.Fprintln(w, "No overworlds loaded.")
		return err
	}

	data := pterm.TableData{{"World", "Time", "Phase", "Sleeping", "Eligible", "Required"}}
	for _, ws := range resp.Worlds {
		phase := "day"
		switch {
		case ws.Thundering:
			phase = "thunder"
		case ws.Night:
			phase = "night"
		}
		data = append(data, []string{
			string(ws.World),
			strconv.FormatInt(ws.Time, 10),
			phase,
			strconv.Itoa(ws.Sleeping),
			strconv.Itoa(ws.Eligible),
			strconv.Itoa(ws.Required),
		})
	}

	table, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("render status: %w", err)
	}
	_, err = fmt.Fprintln(w, table)
	return err
}
