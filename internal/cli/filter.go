package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/mailwarden/internal/config"
	"github.com/ppiankov/mailwarden/internal/model"
	"github.com/ppiankov/mailwarden/internal/retro"
	"github.com/ppiankov/mailwarden/internal/rules"
)

var (
	filterRetro    bool
	filterFrom     string
	filterTo       string
	filterSubject  string
	filterQuery    string
	filterHasAtt   bool
	filterSize     int64
	filterSizeCmp  string
	filterAddLabel []string
	filterRmLabel  []string
)

func init() {
	rootCmd.AddCommand(filterCmd)
	filterCmd.AddCommand(filterCreateCmd, filterGetCmd, filterDeleteCmd, filterListCmd)

	filterCreateCmd.Flags().BoolVar(&filterRetro, "retro", false, "Also apply the rule to existing messages")
	filterCreateCmd.Flags().StringVar(&filterFrom, "from", "", "Match sender")
	filterCreateCmd.Flags().StringVar(&filterTo, "to", "", "Match recipient")
	filterCreateCmd.Flags().StringVar(&filterSubject, "subject", "", "Match subject")
	filterCreateCmd.Flags().StringVar(&filterQuery, "query", "", "Raw search expression, ANDed with other criteria")
	filterCreateCmd.Flags().BoolVar(&filterHasAtt, "has-attachment", false, "Match messages with attachments")
	filterCreateCmd.Flags().Int64Var(&filterSize, "size", 0, "Size threshold in bytes")
	filterCreateCmd.Flags().StringVar(&filterSizeCmp, "size-comparison", "larger", "larger or smaller")
	filterCreateCmd.Flags().StringSliceVar(&filterAddLabel, "add-label", nil, "Label id the rule adds (repeatable)")
	filterCreateCmd.Flags().StringSliceVar(&filterRmLabel, "remove-label", nil, "Label id the rule removes (repeatable)")
}

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Manage labeling rules",
}

// stderrProgress narrates a retroactive run so long runs do not look hung.
type stderrProgress struct{}

func (stderrProgress) PageFetched(pageNum, idsSoFar int) {
	fmt.Fprintf(os.Stderr, "page %d: %d candidate(s) so far\n", pageNum, idsSoFar)
}

func (stderrProgress) ChunkDone(processed, total int) {
	fmt.Fprintf(os.Stderr, "processed %d/%d\n", processed, total)
}

func ruleManager(ctx context.Context, cfg *config.Config) (*rules.Manager, func(), error) {
	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := rules.OpenStore(cfg.RulesDBPath)
	if err != nil {
		return nil, nil, err
	}
	applier := retro.New(client, retro.Config{
		BatchSize:      cfg.Retro.BatchSize,
		MaxItems:       cfg.Retro.MaxItems,
		RateLimitDelay: cfg.Retro.RateLimitDelay,
	}, stderrProgress{})
	m := &rules.Manager{Filters: client, Records: store, Retro: applier}
	return m, func() { _ = store.Close() }, nil
}

var filterCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a rule, optionally applying it retroactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		sel := model.RuleSelector{
			From:          filterFrom,
			To:            filterTo,
			Subject:       filterSubject,
			Query:         filterQuery,
			HasAttachment: filterHasAtt,
			SizeBytes:     filterSize,
		}
		cmp, err := model.ParseSizeComparison(filterSizeCmp)
		if err != nil {
			return err
		}
		if filterSize > 0 {
			sel.SizeComparison = cmp
		}
		action := model.RuleAction{AddLabelIDs: filterAddLabel, RemoveLabelIDs: filterRmLabel}

		m, closeFn, err := ruleManager(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeFn()

		res, err := m.Create(cmd.Context(), sel, action, filterRetro)
		if err != nil {
			return err
		}
		out, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(out))
		if res.RetroRun != nil {
			fmt.Fprintln(os.Stderr, res.RetroRun.Summary())
		}
		return nil
	},
}

var filterGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one rule, including its retroactive run report if any",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		m, closeFn, err := ruleManager(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeFn()

		rec, err := m.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out, _ := json.MarshalIndent(rec, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

var filterDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		m, closeFn, err := ruleManager(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := m.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("deleted")
		return nil
	},
}

var filterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all rules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		m, closeFn, err := ruleManager(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeFn()

		recs, err := m.List(cmd.Context())
		if err != nil {
			return err
		}
		out, _ := json.MarshalIndent(recs, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}
