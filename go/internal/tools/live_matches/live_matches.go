package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/mcdev12/matchday/go/clients/fm_api_client"
	"github.com/mcdev12/matchday/go/internal/config"
	"github.com/mcdev12/matchday/go/internal/livematch"
)

func main() {
	asJSON := flag.Bool("json", false, "print the raw listing as JSON")
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	// 1) Load configuration
	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// 2) Fetch the listing
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client := fm_api_client.NewFMApiClient(cfg.API.BaseURL, cfg.API.AccessToken)
	matches, err := client.GetLiveMatches(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list live matches: %v\n", err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(matches); err != nil {
			fmt.Fprintf(os.Stderr, "encode: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// 3) Print table and summary
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMATCH\tSCORE\tTIME\tWATCHING")
	spectators := 0
	for _, m := range matches {
		fmt.Fprintf(w, "%s\t%s v %s\t%d-%d\t%s %s\t%d\n",
			m.MatchID, m.HomeTeam, m.AwayTeam, m.HomeScore, m.AwayScore,
			livematch.FormatMatchTime(m.CurrentMinute, 0), livematch.PhaseDisplay(m.CurrentPhase),
			m.SpectatorCount,
		)
		spectators += m.SpectatorCount
	}
	w.Flush()

	fmt.Printf("\n%d live matches, %d spectators\n", len(matches), spectators)
}
