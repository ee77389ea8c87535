package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semsearch/internal/config"
	"semsearch/internal/types"
)

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	origOut := os.Stdout
	rOut, wOut, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = wOut

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, rOut)
		done <- buf.String()
	}()

	fn()

	_ = wOut.Close()
	os.Stdout = origOut
	return <-done
}

func TestSummarizeDownloadCountsExtensions(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"app/code/Foo/Bar.php":   "<?php",
		"view/frontend/page.phtml": "<?php",
		"web/js/widget.js":       "console.log(1);",
		"etc/di.xml":             "<config/>",
		"README.md":              "hello",
	}
	for rel, content := range files {
		full := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}

	output := captureOutput(t, func() {
		require.NoError(t, summarizeDownload(dir))
	})

	assert.Contains(t, output, "php/phtml: 2")
	assert.Contains(t, output, "js: 1")
	assert.Contains(t, output, "xml: 1")
	assert.Contains(t, output, "other: 1")
}

func TestPrintResultsText(t *testing.T) {
	outFormat = "text"
	results := []types.SearchResult{
		{ID: 1, Score: 0.9, Metadata: types.Metadata{Path: "app/code/Foo/Model/Bar.php", ClassName: "Bar", MagentoType: "model"}},
	}
	output := captureOutput(t, func() {
		require.NoError(t, printResults(results))
	})
	assert.Contains(t, output, "app/code/Foo/Model/Bar.php")
	assert.Contains(t, output, "Bar")
	assert.Contains(t, output, "model")
}

func TestPrintResultsTextEmpty(t *testing.T) {
	outFormat = "text"
	output := captureOutput(t, func() {
		require.NoError(t, printResults(nil))
	})
	assert.Contains(t, output, "no results")
}

func TestPrintResultsJSON(t *testing.T) {
	outFormat = "json"
	defer func() { outFormat = "text" }()
	results := []types.SearchResult{
		{ID: 7, Score: 0.5, Metadata: types.Metadata{Path: "etc/di.xml"}},
	}
	output := captureOutput(t, func() {
		require.NoError(t, printResults(results))
	})

	var decoded []types.SearchResult
	require.NoError(t, json.Unmarshal([]byte(output), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "etc/di.xml", decoded[0].Metadata.Path)
}

func TestRunCasesWithHitsAndMisses(t *testing.T) {
	cases := []ValidationCase{
		{Query: "checkout repository", ExpectedPathSubstring: "Checkout/Model/Repository.php"},
		{Query: "nonexistent widget", ExpectedPathSubstring: "Nowhere/Widget.php"},
	}

	fakeSearch := func(ctx context.Context, query string, k int) ([]types.SearchResult, error) {
		if query == "checkout repository" {
			return []types.SearchResult{{Metadata: types.Metadata{Path: "app/code/Vendor/Checkout/Model/Repository.php"}}}, nil
		}
		return []types.SearchResult{{Metadata: types.Metadata{Path: "app/code/Vendor/Unrelated/Foo.php"}}}, nil
	}

	report := runCasesWith(context.Background(), fakeSearch, cases, 5)
	assert.Equal(t, 1, report.Passed)
	assert.Equal(t, 1, report.Failed)
	assert.InDelta(t, 0.5, report.Accuracy, 0.0001)
	require.Len(t, report.FailedCases, 1)
	assert.Contains(t, report.FailedCases[0], "nonexistent widget")
}

func TestRunCasesWithSearchError(t *testing.T) {
	cases := []ValidationCase{{Query: "boom", ExpectedPathSubstring: "x"}}
	fakeSearch := func(ctx context.Context, query string, k int) ([]types.SearchResult, error) {
		return nil, errors.New("embedder unavailable")
	}

	report := runCasesWith(context.Background(), fakeSearch, cases, 5)
	assert.Equal(t, 0, report.Passed)
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.FailedCases[0], "search error")
}

func TestRunCasesWithEmptyFixtureIsZeroAccuracy(t *testing.T) {
	report := runCasesWith(context.Background(), func(ctx context.Context, query string, k int) ([]types.SearchResult, error) {
		return nil, nil
	}, nil, 5)
	assert.Equal(t, 0.0, report.Accuracy)
	assert.Equal(t, 0, report.Passed)
	assert.Equal(t, 0, report.Failed)
}

func TestRunValidateRequiresFixturesFlag(t *testing.T) {
	cfg = config.DefaultConfig()
	validateFixtures = ""
	err := runValidate(nil, nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "fixtures"))
}

func TestDbPathFallsBackToDefault(t *testing.T) {
	cfg = config.DefaultConfig()
	cfg.VectorStore.Path = ""
	assert.Equal(t, ".semsearch/index.db", dbPath())

	cfg.VectorStore.Path = "/tmp/custom.db"
	assert.Equal(t, "/tmp/custom.db", dbPath())
}

func TestSonaPathDerivesFromDbPathWhenUnset(t *testing.T) {
	cfg = config.DefaultConfig()
	cfg.Sona.Path = ""
	cfg.VectorStore.Path = "/tmp/custom.db"
	assert.Equal(t, "/tmp/custom.db.sona", sonaPath())

	cfg.Sona.Path = "/tmp/explicit.sona"
	assert.Equal(t, "/tmp/explicit.sona", sonaPath())
}
