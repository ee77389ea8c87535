package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"semsearch/internal/ranker"
	"semsearch/internal/sona"
	"semsearch/internal/types"
	"semsearch/internal/vectorstore"
)

// ValidationCase is one fixture row: a query and a substring that should
// appear in the path of at least one of the top results.
type ValidationCase struct {
	Query                 string `json:"query"`
	ExpectedPathSubstring string `json:"expected_path_substring"`
}

// ValidationReport is the saved summary of a validate run.
type ValidationReport struct {
	Accuracy    float64  `json:"accuracy"`
	Passed      int      `json:"passed"`
	Failed      int      `json:"failed"`
	FailedCases []string `json:"failed_cases,omitempty"`
	IndexSize   int      `json:"index_size"`
	TotalTimeMs int64    `json:"total_time_ms"`
}

var (
	validateFixtures string
	validateReport   string
	validateDatabase string
	validateLimit    int
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run a fixture of queries against the index and report hit rate",
	Args:  cobra.NoArgs,
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	if validateFixtures == "" {
		return fmt.Errorf("--fixtures is required")
	}

	data, err := os.ReadFile(validateFixtures)
	if err != nil {
		return fmt.Errorf("reading fixtures: %w", err)
	}
	var cases []ValidationCase
	if err := json.Unmarshal(data, &cases); err != nil {
		return fmt.Errorf("parsing fixtures: %w", err)
	}

	path := dbPath()
	if validateDatabase != "" {
		path = validateDatabase
	}

	embedder, err := newEmbedder()
	if err != nil {
		return fmt.Errorf("creating embedding engine: %w", err)
	}
	store, err := vectorstore.Open(path, embedder.Dimensions())
	if err != nil {
		return fmt.Errorf("opening vector store: %w", err)
	}
	var sonaEng *sona.Engine
	if sonaEng, err = sona.Open(path+".sona", embedder.Dimensions()); err != nil {
		sonaEng = sona.New(embedder.Dimensions())
	}
	r := ranker.New(store, embedder, sonaEng)

	limit := validateLimit
	if limit <= 0 {
		limit = cfg.Server.DefaultLimit
	}

	start := time.Now()
	report := runCases(context.Background(), r, cases, limit)
	report.IndexSize = store.Len()
	report.TotalTimeMs = time.Since(start).Milliseconds()

	reportPath := validateReport
	if reportPath == "" {
		reportPath = "./validation_report.json"
	}
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if err := os.WriteFile(reportPath, out, 0644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	fmt.Printf("accuracy: %.1f%% (%d/%d)\n", report.Accuracy*100, report.Passed, len(cases))
	fmt.Printf("report saved to %s\n", reportPath)
	return nil
}

// searchFunc abstracts the ranker's Search for unit testing without a real
// embedder or vector store.
type searchFunc func(ctx context.Context, query string, k int) ([]types.SearchResult, error)

// runCases scores every validation case against search and builds the
// report, independent of I/O so it can be unit tested directly.
func runCases(ctx context.Context, r *ranker.Ranker, cases []ValidationCase, limit int) ValidationReport {
	return runCasesWith(ctx, r.Search, cases, limit)
}

func runCasesWith(ctx context.Context, search searchFunc, cases []ValidationCase, limit int) ValidationReport {
	passed, failed := 0, 0
	var failedCases []string

	for _, c := range cases {
		results, err := search(ctx, c.Query, limit)
		if err != nil {
			failed++
			failedCases = append(failedCases, fmt.Sprintf("%s: search error: %v", c.Query, err))
			continue
		}
		hit := false
		for _, res := range results {
			if strings.Contains(res.Metadata.Path, c.ExpectedPathSubstring) {
				hit = true
				break
			}
		}
		if hit {
			passed++
		} else {
			failed++
			failedCases = append(failedCases, fmt.Sprintf("%q: expected a path containing %q", c.Query, c.ExpectedPathSubstring))
		}
	}

	accuracy := 0.0
	if len(cases) > 0 {
		accuracy = float64(passed) / float64(len(cases))
	}

	return ValidationReport{
		Accuracy:    accuracy,
		Passed:      passed,
		Failed:      failed,
		FailedCases: failedCases,
	}
}

func init() {
	validateCmd.Flags().StringVar(&validateFixtures, "fixtures", "", "JSON file of [{query, expected_path_substring}] cases")
	validateCmd.Flags().StringVar(&validateReport, "report", "", "Report output path (default ./validation_report.json)")
	validateCmd.Flags().StringVar(&validateDatabase, "database", "", "Vector store path (overrides config)")
	validateCmd.Flags().IntVarP(&validateLimit, "limit", "l", 0, "Results considered per query")
}
