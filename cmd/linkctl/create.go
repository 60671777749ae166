package main

import (
	"fmt"

	"shortlinks/internal/repository/postgres"
	"shortlinks/internal/service"
	"shortlinks/internal/shortcode"

	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a short link",
	Long: `Validates the destination, allocates a short code (or uses --code)
and stores the link for the given owner.

Example:
  linkctl create --url "https://go.dev/doc" --title "Go docs" --owner alice`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		flags := cmd.Flags()

		longURL, _ := flags.GetString("url")
		title, _ := flags.GetString("title")
		owner, _ := flags.GetString("owner")
		code, _ := flags.GetString("code")
		tags, _ := flags.GetStringSlice("tags")
		public, _ := flags.GetBool("public")

		db, err := openPool(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		repo := postgres.NewLinkRepository(db)
		allocator := shortcode.NewAllocator(repo, cfg.App.ShortCodeLength, cfg.App.AllocationMaxAttempts)
		links := service.NewLinkService(repo, nil, allocator, cfg.App.InsertMaxAttempts, cliLogger())

		link, err := links.CreateLink(ctx, owner, service.CreateLinkInput{
			OriginalURL: longURL,
			Title:       title,
			Tags:        tags,
			IsPublic:    public,
			ShortCode:   code,
		})
		if err != nil {
			return fmt.Errorf("create link: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Short URL:  %s/%s\n", cfg.Server.BaseURL, link.ShortCode)
		fmt.Fprintf(out, "Code:       %s\n", link.ShortCode)
		fmt.Fprintf(out, "Target:     %s\n", link.OriginalURL)
		fmt.Fprintf(out, "Link ID:    %s\n", link.ID)
		return nil
	},
}

func init() {
	flags := createCmd.Flags()
	flags.StringP("url", "u", "", "destination URL (absolute http or https)")
	flags.StringP("title", "t", "", "link title")
	flags.StringP("owner", "o", "", "owner user id")
	flags.StringP("code", "c", "", "custom short code (4-10 letters or digits)")
	flags.StringSlice("tags", nil, "comma separated tags")
	flags.Bool("public", false, "list the link in the public directory")

	for _, name := range []string{"url", "title", "owner"} {
		_ = createCmd.MarkFlagRequired(name)
	}

	rootCmd.AddCommand(createCmd)
}
