package parsing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPHPClassExtraction(t *testing.T) {
	analyzer := NewPHPAnalyzer()
	defer analyzer.Close()

	source := `<?php
namespace Vendor\Module\Model;

use Magento\Framework\Model\AbstractModel;

class Product extends AbstractModel implements ProductInterface
{
    public function getName(): string
    {
        return $this->getData('name');
    }
}
`
	meta := analyzer.Analyze(source)
	require.Equal(t, "Product", meta.ClassName)
	assert.Equal(t, `Vendor\Module\Model`, meta.Namespace)
	assert.NotEmpty(t, meta.Extends)
	assert.True(t, meta.IsModel)
}

func TestPHPPluginMethodDetection(t *testing.T) {
	analyzer := NewPHPAnalyzer()
	defer analyzer.Close()

	source := `<?php
class LoggerPlugin
{
    public function beforeExecute($subject, $request)
    {
        return [$request];
    }

    public function afterGetList($subject, $result)
    {
        return $result;
    }
}
`
	meta := analyzer.Analyze(source)
	require.True(t, meta.IsPlugin)
	require.Len(t, meta.PluginMethods, 2)
	assert.Equal(t, "before", meta.PluginMethods[0].MethodType)
	assert.Equal(t, "Execute", meta.PluginMethods[0].TargetMethod)
	assert.Equal(t, "after", meta.PluginMethods[1].MethodType)
	assert.Equal(t, "GetList", meta.PluginMethods[1].TargetMethod)
}

func TestPHPControllerDetection(t *testing.T) {
	analyzer := NewPHPAnalyzer()
	defer analyzer.Close()

	source := `<?php
namespace Vendor\Module\Controller\Index;

class Index
{
    public function execute()
    {
        return $this->resultFactory;
    }
}
`
	meta := analyzer.Analyze(source)
	assert.True(t, meta.IsController)
}
