package main

import (
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/Sternrassler/oneapi-client/pkg/pagination"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newMoviesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "movies",
		Short: "List all movies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(movieHeader)

			n := 0
			for movie, err := range a.client.Movies().All(cmd.Context()) {
				if err != nil {
					return err
				}
				t.AppendRow(movieRow(movie))
				n++
			}

			t.AppendFooter(table.Row{"", count(n) + " movies"})
			t.Render()
			return nil
		},
	}
}

func newMovieCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "movie <id>",
		Short: "Show one movie",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			movie, found, err := a.client.Movies().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("movie %q not found", args[0])
			}

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(movieHeader)
			t.AppendRow(movieRow(movie))
			t.Render()
			return nil
		},
	}
}

func newQuotesCmd(a *app) *cobra.Command {
	var (
		movieID string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "quotes",
		Short: "List quotes, optionally of one movie",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			quotes := a.client.Quotes()
			if movieID != "" {
				var err error
				if quotes, err = a.client.QuotesForMovie(movieID, 0); err != nil {
					return err
				}
			}

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(quoteHeader)
			t.SetColumnConfigs(quoteColumns())

			n := 0
			for quote, err := range quotes.All(cmd.Context()) {
				if err != nil {
					return err
				}
				if limit > 0 && n == limit {
					break
				}
				t.AppendRow(quoteRow(quote))
				n++
			}

			total, err := quotes.Count(cmd.Context())
			if err != nil {
				return err
			}

			t.AppendFooter(table.Row{"", fmt.Sprintf("%s of %s quotes", count(n), count(total))})
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&movieID, "movie", "m", "", "only quotes of this movie id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most n quotes (0 for all)")

	return cmd
}

func newQuoteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "quote <id>",
		Short: "Show one quote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			quote, found, err := a.client.Quotes().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("quote %q not found", args[0])
			}

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(quoteHeader)
			t.SetColumnConfigs(quoteColumns())
			t.AppendRow(quoteRow(quote))
			t.Render()
			return nil
		},
	}
}

func newRandomQuoteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "random-quote <movie-number>",
		Short: "Print a random quote of the n-th movie (1-based)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			number, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid movie number %q", args[0])
			}

			movies := a.client.Movies()
			total, err := movies.Count(ctx)
			if err != nil {
				return err
			}
			if number < 1 || number > total {
				return fmt.Errorf("movie number must be between 1 and %d", total)
			}

			movie, err := movies.ElementAt(ctx, number-1)
			if err != nil {
				return err
			}

			quotes, err := a.client.QuotesForMovieOf(movie, 0)
			if err != nil {
				return err
			}
			n, err := quotes.Count(ctx)
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("%s has no quotes", movie.Name)
			}

			quote, err := quotes.ElementAt(ctx, rand.IntN(n))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%q\n  - %s (quote %s of %s)\n", quote.Dialog, movie.Name, quote.QuoteID, count(n))
			return nil
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count movies and quotes and show the API quota",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			movies := a.client.Movies()
			quotes := a.client.Quotes()

			// Distinct collections share no state, so they can be counted concurrently.
			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				_, err := movies.Count(ctx)
				return err
			})
			g.Go(func() error {
				_, err := quotes.Count(ctx)
				return err
			})
			if err := g.Wait(); err != nil {
				return err
			}

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Collection", "Items", "Pages", "Pages loaded", "Cached"})
			t.AppendRow(statsRow(movies.Route(), movies.Stats()))
			t.AppendRow(statsRow(quotes.Route(), quotes.Stats()))
			t.Render()

			if quota := a.client.RateLimit(); quota.Known() {
				reset := "unknown"
				if !quota.ResetAt.IsZero() {
					reset = humanize.Time(quota.ResetAt)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rate limit: %s of %s requests left, resets %s\n",
					count(quota.Remaining), count(quota.Limit), reset)
			}
			return nil
		},
	}
}

func statsRow(route string, s pagination.Stats) table.Row {
	return table.Row{route, count(s.TotalItems), count(s.TotalPages), count(s.PagesLoaded), count(s.CachedItems)}
}
