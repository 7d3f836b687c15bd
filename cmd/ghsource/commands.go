package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/git-pkgs/ghsource/internal/core"
	"github.com/git-pkgs/ghsource/internal/github"
)

func newLookupCmd(v *viper.Viper) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "lookup <owner/repo>...",
		Short: "List the tags and branches of repositories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repos, err := parseRepositories(args)
			if err != nil {
				return err
			}
			src, _, _, err := newSource(v)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			results := make(map[string]core.LookupResult, len(repos))
			if len(repos) == 1 {
				res, err := src.Lookup(ctx, repos[0])
				if err != nil {
					return err
				}
				results[repos[0].String()] = res
			} else {
				results = core.BulkLookup(ctx, src, repos)
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), lookupView(repos, results))
			}
			out := cmd.OutOrStdout()
			for _, repo := range repos {
				res, ok := results[repo.String()]
				if !ok {
					fmt.Fprintf(out, "%s: lookup failed\n", repo)
					continue
				}
				printLookup(out, repo, res, len(repos) > 1)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}

type lookupEntry struct {
	Repository string            `json:"repository"`
	Result     string            `json:"result"`
	Versions   map[string]string `json:"versions,omitempty"`
	Redirect   string            `json:"redirect,omitempty"`
}

func lookupView(repos []core.Repository, results map[string]core.LookupResult) []lookupEntry {
	entries := make([]lookupEntry, 0, len(repos))
	for _, repo := range repos {
		e := lookupEntry{Repository: repo.String(), Result: "error"}
		if res, ok := results[repo.String()]; ok {
			e.Result = res.Kind.String()
			switch res.Kind {
			case core.LookupVersions:
				e.Versions = res.Versions
			case core.LookupRedirect:
				e.Redirect = res.Redirect.String()
			}
		}
		entries = append(entries, e)
	}
	return entries
}

func printLookup(w io.Writer, repo core.Repository, res core.LookupResult, prefix bool) {
	lead := ""
	if prefix {
		lead = repo.String() + " "
	}
	switch res.Kind {
	case core.LookupRedirect:
		fmt.Fprintf(w, "%sredirect %s\n", lead, res.Redirect)
	case core.LookupNotFound:
		fmt.Fprintf(w, "%snot found\n", lead)
	default:
		names := make([]string, 0, len(res.Versions))
		for name := range res.Versions {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "%s%s %s\n", lead, res.Versions[name], name)
		}
	}
}

func newDownloadCmd(v *viper.Viper) *cobra.Command {
	var out string
	var quiet bool
	cmd := &cobra.Command{
		Use:   "download <owner/repo> <version> [hash]",
		Short: "Download and unpack a version of a repository",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := core.ParseRepository(args[0])
			if err != nil {
				return err
			}
			version := args[1]

			var opts []github.Option
			if !quiet {
				opts = append(opts, github.WithProgress(progressFunc(stderr)))
			}
			src, _, logger, err := newSource(v, opts...)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			hash := ""
			if len(args) == 3 {
				hash = args[2]
			} else if hash, err = resolveHash(ctx, src, repo, version); err != nil {
				return err
			}

			if out == "" {
				out = filepath.Join(".", repo.Name+"@"+version)
			}
			start := time.Now()
			if err := src.Download(ctx, repo, version, hash, out); err != nil {
				return err
			}
			logger.Info().
				Str("repository", repo.String()).
				Str("version", version).
				Str("dir", out).
				Dur("took", time.Since(start)).
				Msg("downloaded")
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Target directory (default ./<repo>@<version>)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Disable the progress bar")
	return cmd
}

func newPackageCmd(v *viper.Viper) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "package <owner/repo> <version> [hash]",
		Short: "Show the package.json of a version",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := core.ParseRepository(args[0])
			if err != nil {
				return err
			}
			version := args[1]
			src, _, _, err := newSource(v)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			hash := ""
			if len(args) == 3 {
				hash = args[2]
			} else if hash, err = resolveHash(ctx, src, repo, version); err != nil {
				return err
			}

			cfg, err := src.GetPackageConfig(ctx, repo, version, hash)
			if err != nil {
				return err
			}
			if raw {
				return writeJSON(cmd.OutOrStdout(), cfg)
			}
			return writeJSON(cmd.OutOrStdout(), core.DescriptorOf(cfg))
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the full package.json instead of the summary")
	return cmd
}

func newResolveCmd(v *viper.Viper) *cobra.Command {
	var head bool
	cmd := &cobra.Command{
		Use:   "resolve <owner/repo> <version>",
		Short: "Show which archive a download would use",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := core.ParseRepository(args[0])
			if err != nil {
				return err
			}
			src, _, _, err := newSource(v)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			info, err := src.Resolve(ctx, repo, args[1])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "source:   %s\n", info.Source)
			fmt.Fprintf(w, "url:      %s\n", info.URL)
			fmt.Fprintf(w, "kind:     %s\n", info.Kind)
			fmt.Fprintf(w, "max size: %d\n", info.MaxSize)
			if !head {
				return nil
			}
			size, contentType, err := src.Stat(ctx, info)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "size:     %d\n", size)
			fmt.Fprintf(w, "type:     %s\n", contentType)
			return nil
		},
	}
	cmd.Flags().BoolVar(&head, "head", false, "Also issue a HEAD request for the archive")
	return cmd
}

func newConfigCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(v)
			if err != nil {
				return err
			}
			if s.Password != "" {
				s.Password = "********"
			}
			return writeJSON(cmd.OutOrStdout(), s)
		},
	}
}

// resolveHash looks up the content hash of version.
func resolveHash(ctx context.Context, src core.Source, repo core.Repository, version string) (string, error) {
	res, err := src.Lookup(ctx, repo)
	if err != nil {
		return "", err
	}
	switch res.Kind {
	case core.LookupRedirect:
		return "", fmt.Errorf("%s has moved to %s", repo, res.Redirect)
	case core.LookupNotFound:
		return "", &core.NotFoundError{Source: src.Name(), Repository: repo.String()}
	}
	hash, ok := res.Versions[version]
	if !ok {
		return "", &core.NotFoundError{Source: src.Name(), Repository: repo.String(), Version: version}
	}
	return hash, nil
}

func parseRepositories(args []string) ([]core.Repository, error) {
	repos := make([]core.Repository, 0, len(args))
	for _, arg := range args {
		repo, err := core.ParseRepository(arg)
		if err != nil {
			return nil, err
		}
		repos = append(repos, repo)
	}
	return repos, nil
}

// progressFunc renders download progress as a byte counter, or a spinner
// when the length is unknown.
func progressFunc(w io.Writer) github.ProgressFunc {
	return func(description string, size int64) io.Writer {
		opts := []progressbar.Option{
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(description),
			progressbar.OptionShowBytes(true),
			progressbar.OptionThrottle(65 * time.Millisecond),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(w, "\n")
			}),
		}
		if size < 0 {
			opts = append(opts,
				progressbar.OptionSpinnerType(14),
				progressbar.OptionSetRenderBlankState(true),
			)
		}
		return progressbar.NewOptions64(size, opts...)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
