package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/searchconsole/internal/apierr"
	"github.com/JakeFAU/searchconsole/internal/search"
)

func newSearchCmd() *cobra.Command {
	var (
		p           search.Params
		tags        []string
		corrections bool
	)
	cmd := &cobra.Command{
		Use:   "search QUERY...",
		Short: "Search the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			p.Query = strings.Join(args, " ")
			var resp *search.Response
			switch {
			case len(tags) > 0:
				resp, err = a.Search.SearchWithFilters(cmd.Context(), p, search.Filters{Tags: tags})
			case corrections:
				resp, err = a.Search.SearchWithCorrections(cmd.Context(), p)
			default:
				resp, err = a.Search.Search(cmd.Context(), p)
			}
			if err != nil {
				return describeError(err)
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().IntVar(&p.Page, "page", 0, "result page (default 1)")
	cmd.Flags().IntVar(&p.Size, "size", 0, "page size (default search.default_page_size)")
	cmd.Flags().IntVar(&p.TopK, "top-k", 0, "candidates considered (default search.default_top_k)")
	cmd.Flags().StringVar(&p.UserID, "user", "", "user id recorded with the query")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "restrict to documents with these tags")
	cmd.Flags().BoolVar(&corrections, "corrections", false, "apply spelling corrections")
	return cmd
}

func newSuggestCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "suggest PREFIX",
		Short: "Show query suggestions for a prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), a.Search.Suggestions(cmd.Context(), args[0], userID))
		},
	}
	cmd.Flags().StringVar(&userID, "user", "console", "user id for personalized suggestions")
	return cmd
}

func newFeedbackCmd() *cobra.Command {
	var fb search.Feedback
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Mark a search result relevant or irrelevant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Search.SubmitFeedback(cmd.Context(), fb); err != nil {
				return describeError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "feedback recorded")
			return nil
		},
	}
	cmd.Flags().StringVar(&fb.Query, "query", "", "query the result was returned for")
	cmd.Flags().Int64Var(&fb.DocumentID, "doc", 0, "document id")
	cmd.Flags().BoolVar(&fb.IsRelevant, "relevant", true, "whether the document was relevant")
	cmd.Flags().StringVar(&fb.UserID, "user", "console", "user id")
	return cmd
}

// newReplCmd runs an interactive loop. Lines starting with "?" ask for
// suggestions, debounced like keystrokes; other lines search. A newer line
// cancels whatever the previous one still had in flight.
func newReplCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive search with debounced suggestions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ss := a.Search.NewSession(a.Clock, a.Config.Debounce())
			defer ss.Close()

			out := &syncWriter{w: cmd.OutOrStdout()}
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				switch {
				case line == "":
					continue
				case line == ":quit":
					return nil
				case strings.HasPrefix(line, "?"):
					ss.SuggestDebounced(cmd.Context(), strings.TrimPrefix(line, "?"), userID, func(s []string) {
						_ = printJSON(out, map[string][]string{"suggestions": s})
					})
				default:
					resp, err := ss.Search(cmd.Context(), search.Params{Query: line, UserID: userID})
					switch {
					case errors.Is(err, search.ErrSuperseded):
					case err != nil:
						fmt.Fprintln(out, describeError(err))
					default:
						_ = printJSON(out, resp)
					}
				}
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "console", "user id")
	return cmd
}

// describeError renders err with its user-facing title.
func describeError(err error) error {
	f := apierr.Friendly(err)
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) && len(apiErr.Details) > 0 {
		return fmt.Errorf("%s: %s", f.Title, strings.Join(apiErr.Details, "; "))
	}
	return fmt.Errorf("%s: %s", f.Title, f.Message)
}

// syncWriter serializes writes from the read loop and debounce callbacks.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.w.Write(p)
	if err != nil {
		return n, fmt.Errorf("write: %w", err)
	}
	return n, nil
}
