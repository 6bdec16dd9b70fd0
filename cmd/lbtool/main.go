package main

// lbtool is the operator console: it prints leaderboard pages and weekly
// snapshots as tables, and triggers snapshots and lastTs backfills through
// the server's admin API.
//
// Usage:
//
//	lbtool -addr http://localhost:8080 leaderboard [-limit 10] [-days 0]
//	lbtool -addr ... -token ... snapshot
//	lbtool -addr ... -token ... snapshots
//	lbtool -addr ... -token ... show-snapshot 2026-08-21
//	lbtool -addr ... -token ... backfill [-default-days 3]

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/kosaiyno/iryspredict/internal/application/game"
	"github.com/kosaiyno/iryspredict/internal/domain"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "server base URL")
	token := flag.String("token", os.Getenv("ADMIN_TOKEN"), "admin token for admin commands")
	limit := flag.Int("limit", 10, "page size for leaderboard/snapshots")
	days := flag.Int("days", 0, "leaderboard scope: 0 all-time, 7 weekly, N rolling")
	defaultDays := flag.Int("default-days", 3, "backfill default age in days for wallets missing lastTs")
	flag.Parse()

	cli := &client{base: *addr, token: *token, http: &http.Client{Timeout: 15 * time.Second}}

	var err error
	switch cmd := flag.Arg(0); cmd {
	case "leaderboard", "":
		err = printLeaderboard(cli, *limit, *days)
	case "snapshot":
		err = triggerSnapshot(cli)
	case "snapshots":
		err = listSnapshots(cli, *limit)
	case "show-snapshot":
		if flag.Arg(1) == "" {
			err = fmt.Errorf("show-snapshot requires a weekId argument (YYYY-MM-DD)")
		} else {
			err = showSnapshot(cli, flag.Arg(1))
		}
	case "backfill":
		err = runBackfill(cli, *defaultDays)
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "lbtool:", err)
		os.Exit(1)
	}
}

type client struct {
	base  string
	token string
	http  *http.Client
}

func (c *client) call(method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.base+path, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("x-admin-token", c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, bytes.TrimSpace(raw))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func printLeaderboard(cli *client, limit, days int) error {
	var page struct {
		Days    int                       `json:"days"`
		Entries []domain.LeaderboardEntry `json:"entries"`
	}
	path := fmt.Sprintf("/api/leaderboard?limit=%d&days=%d", limit, days)
	if err := cli.call(http.MethodGet, path, nil, &page); err != nil {
		return err
	}

	scope := "all-time"
	switch {
	case days == 7:
		scope = "current week"
	case days > 0:
		scope = fmt.Sprintf("rolling %dd", days)
	}
	fmt.Printf("leaderboard (%s), %d entries\n", scope, len(page.Entries))
	renderEntries(page.Entries)
	return nil
}

func triggerSnapshot(cli *client) error {
	var snap domain.Snapshot
	if err := cli.call(http.MethodPost, "/api/admin/snapshot", nil, &snap); err != nil {
		return err
	}
	fmt.Printf("snapshot taken for week %s at %s\n", snap.WeekID, time.UnixMilli(snap.Ts).UTC().Format(time.RFC3339))
	renderEntries(snap.Winners)
	return nil
}

func listSnapshots(cli *client, limit int) error {
	var out struct {
		Snapshots []domain.SnapshotRef `json:"snapshots"`
	}
	path := fmt.Sprintf("/api/admin/snapshots?limit=%d", limit)
	if err := cli.call(http.MethodGet, path, nil, &out); err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Week", "Taken at")
	for _, ref := range out.Snapshots {
		table.Append(ref.WeekID, time.UnixMilli(ref.Ts).UTC().Format(time.RFC3339))
	}
	table.Render()
	return nil
}

func showSnapshot(cli *client, weekID string) error {
	var snap domain.Snapshot
	if err := cli.call(http.MethodGet, "/api/admin/snapshots/"+weekID, nil, &snap); err != nil {
		return err
	}
	fmt.Printf("week %s, taken %s\n", snap.WeekID, time.UnixMilli(snap.Ts).UTC().Format(time.RFC3339))
	renderEntries(snap.Winners)
	return nil
}

func runBackfill(cli *client, defaultDays int) error {
	var report game.BackfillReport
	body := map[string]any{"defaultDaysAgo": defaultDays}
	if err := cli.call(http.MethodPost, "/api/admin/backfill", body, &report); err != nil {
		return err
	}
	fmt.Printf("backfill: scanned %d, updated %d, defaulted %d\n", report.Scanned, report.Updated, report.Defaults)
	return nil
}

func renderEntries(entries []domain.LeaderboardEntry) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("#", "Wallet", "Points", "Wins", "Losses", "Streak", "Best")
	for i, e := range entries {
		table.Append(
			fmt.Sprintf("%d", i+1),
			e.Wallet,
			fmt.Sprintf("%d", e.Points),
			fmt.Sprintf("%d", e.Wins),
			fmt.Sprintf("%d", e.Losses),
			fmt.Sprintf("%d", e.Streak),
			fmt.Sprintf("%d", e.Best),
		)
	}
	table.Render()
}
