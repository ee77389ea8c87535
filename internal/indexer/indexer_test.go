package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semsearch/internal/vectorstore"
)

const testDims = 8

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return fillVec(float32(len(text)%7) / 10), nil
}

func (fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = fillVec(float32(len(t)%7) / 10)
	}
	return out, nil
}

func (fakeEmbedder) Dimensions() int { return testDims }
func (fakeEmbedder) Name() string    { return "fake" }

func fillVec(v float32) []float32 {
	out := make([]float32, testDims)
	for i := range out {
		out[i] = v
	}
	return out
}

func writeFile(t *testing.T, root, relPath, content string) {
	t.Helper()
	full := filepath.Join(root, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func sampleRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "app/code/Acme/Catalog/Controller/Index/Index.php", `<?php
namespace Acme\Catalog\Controller\Index;

class Index extends \Magento\Framework\App\Action\Action
{
    public function execute()
    {
        return $this->getResponse();
    }
}
`)
	writeFile(t, root, "app/code/Acme/Catalog/etc/di.xml", `<?xml version="1.0"?>
<config>
    <preference for="Acme\Catalog\Api\WidgetRepositoryInterface" type="Acme\Catalog\Model\WidgetRepository"/>
</config>
`)
	writeFile(t, root, "app/code/Acme/Catalog/view/frontend/web/js/widget.js", `define(['jquery'], function ($) {
    'use strict';
    return function (config, element) {
        return $(element);
    };
});
`)
	writeFile(t, root, "app/code/Acme/Catalog/Test/Unit/IndexTest.php", `<?php
class IndexTest extends \PHPUnit\Framework\TestCase {}
`)
	writeFile(t, root, "vendor/magento/module-catalog/Model/Product.php", `<?php
class Product {}
`)
	return root
}

func TestIndexDiscoversAndExcludes(t *testing.T) {
	root := sampleRoot(t)
	store := vectorstore.New(testDims)
	ix := New(root, store, fakeEmbedder{}, WithWorkers(2), WithBatchSize(2))

	stats, err := ix.Index(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.FilesIndexed, "Test/ and vendor/ trees must be excluded")
	assert.Equal(t, 3, stats.VectorsCreated)
	assert.Equal(t, 0, stats.Errors)
}

func TestIndexFileIncremental(t *testing.T) {
	root := sampleRoot(t)
	store := vectorstore.New(testDims)
	ix := New(root, store, fakeEmbedder{})

	newFile := filepath.Join(root, "app/code/Acme/Catalog/Observer/LogObserver.php")
	writeFile(t, root, "app/code/Acme/Catalog/Observer/LogObserver.php", `<?php
namespace Acme\Catalog\Observer;

class LogObserver implements \Magento\Framework\Event\ObserverInterface
{
    public function execute(\Magento\Framework\Event\Observer $observer) {}
}
`)

	require.NoError(t, ix.IndexFile(context.Background(), newFile))
	assert.Equal(t, 1, store.Len())

	// Reindexing the same path tombstones the old vector and inserts a new one.
	require.NoError(t, ix.IndexFile(context.Background(), newFile))
	assert.Equal(t, 1, store.Len())
}

func TestRemoveFileTombstones(t *testing.T) {
	root := sampleRoot(t)
	store := vectorstore.New(testDims)
	ix := New(root, store, fakeEmbedder{})

	target := filepath.Join(root, "app/code/Acme/Catalog/etc/di.xml")
	require.NoError(t, ix.IndexFile(context.Background(), target))
	require.Equal(t, 1, store.Len())

	ids := ix.RemoveFile(target)
	assert.Len(t, ids, 1)
	assert.Equal(t, 0, store.Len())
}

func TestStatsReflectsLiveVectors(t *testing.T) {
	root := sampleRoot(t)
	store := vectorstore.New(testDims)
	ix := New(root, store, fakeEmbedder{})

	_, err := ix.Index(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ix.Stats().VectorsCreated, store.Len())
}
