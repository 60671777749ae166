package main

import (
	"encoding/json"
	"fmt"
	"time"

	"shortlinks/internal/domain"
	"shortlinks/internal/repository/postgres"
	"shortlinks/internal/shortcode"

	"github.com/spf13/cobra"
)

type statsOutput struct {
	ShortCode   string        `json:"shortCode"`
	OriginalURL string        `json:"originalUrl"`
	Status      domain.Status `json:"status"`
	Clicks      int64         `json:"clicks"`
	LastClicked *time.Time    `json:"lastClicked,omitempty"`
	Referrers   []countOutput `json:"referrers"`
	Locations   []countOutput `json:"locations"`
	Devices     []countOutput `json:"devices"`
}

type countOutput struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

var statsCmd = &cobra.Command{
	Use:   "stats CODE",
	Short: "Print the click analytics of a short code as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		code := args[0]

		if !shortcode.IsValid(code) {
			return fmt.Errorf("%w: %q", domain.ErrInvalidFormat, code)
		}

		db, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		link, err := postgres.NewLinkRepository(db).GetByCode(ctx, code)
		if err != nil {
			return err
		}

		a := link.Analytics
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(statsOutput{
			ShortCode:   link.ShortCode,
			OriginalURL: link.OriginalURL,
			Status:      link.Status,
			Clicks:      a.Clicks,
			LastClicked: a.LastClicked,
			Referrers:   counts(a.Referrers),
			Locations:   counts(a.Locations),
			Devices:     counts(a.Devices),
		})
	},
}

func counts(table []domain.Counter) []countOutput {
	out := make([]countOutput, 0, len(table))
	for _, c := range table {
		out = append(out, countOutput{Key: c.Key, Count: c.Count})
	}
	return out
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
