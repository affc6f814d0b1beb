package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newCategoriesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage categories",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Create the default categories when none exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := appFrom(cmd).Categories(cmd.Context())
			if err != nil {
				return err
			}
			n, err := r.Seed(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %d categories\n", n)
			return nil
		},
	})
	return cmd
}

func newImagesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "images",
		Short: "Manage article images",
	}

	var fallback bool
	regenerate := &cobra.Command{
		Use:   "regenerate",
		Short: "Replace the featured image of every published article",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := appFrom(cmd).ImageRegenerator(cmd.Context(), fallback)
			if err != nil {
				return err
			}
			res, err := r.Run(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %d/%d articles (%d failed)\n", res.Updated, res.Total, res.Failed)
			return err
		},
	}
	regenerate.Flags().BoolVar(&fallback, "fallback", false, "use catalog images instead of generating new ones")
	cmd.AddCommand(regenerate)
	return cmd
}

func newBreakingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "breaking",
		Short: "List the articles flagged as breaking news",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			store, err := a.Store(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := store.ListBreaking(cmd.Context())
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"#", "Title", "Published", "ID"})
			for i, r := range rows {
				t.AppendRow(table.Row{i + 1, r.Title, r.PublishedAt.Format(time.RFC822), r.ID})
			}
			t.AppendFooter(table.Row{"", fmt.Sprintf("%d breaking, cap %d", len(rows), a.Config().BreakingCap)})
			t.Render()
			return nil
		},
	}
}

func newSitemapCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "sitemap",
		Short: "Write sitemaps and the RSS feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := appFrom(cmd).Sitemap(cmd.Context())
			if err != nil {
				return err
			}
			sum, err := g.Write(cmd.Context(), out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d posts, %d news, %d categories, %d static, %d feed items to %s\n",
				sum.Posts, sum.News, sum.Categories, sum.Static, sum.FeedItems, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "public", "output directory")
	return cmd
}
