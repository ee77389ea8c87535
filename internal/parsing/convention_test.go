package parsing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFileType(t *testing.T) {
	assert.Equal(t, "controller", DetectFileType("app/code/Magento/Catalog/Controller/Product/View.php"))
	assert.Equal(t, "di_config", DetectFileType("app/code/Magento/Catalog/etc/di.xml"))
	assert.Equal(t, "observer", DetectFileType("app/code/Magento/Sales/Observer/OrderPlaced.php"))
	assert.Equal(t, "db_schema", DetectFileType("app/code/Magento/Catalog/etc/db_schema.xml"))
	assert.Equal(t, "repository", DetectFileType("app/code/Magento/Catalog/Model/ProductRepository.php"))
	assert.Equal(t, "model", DetectFileType("app/code/Magento/Catalog/Model/Product.php"))
	assert.Equal(t, "template", DetectFileType("app/code/Magento/Catalog/view/frontend/templates/view.phtml"))
}

func TestExtractModuleInfo(t *testing.T) {
	info := ExtractModuleInfo("app/code/Magento/Catalog/Model/Product.php")
	require.NotNil(t, info)
	assert.Equal(t, "Magento", info.Vendor)
	assert.Equal(t, "Catalog", info.Name)
	assert.Equal(t, "Magento_Catalog", info.Full)
}

func TestSplitCamelCase(t *testing.T) {
	assert.Equal(t, "product repository", SplitCamelCase("ProductRepository"))
	assert.Equal(t, "get by id", SplitCamelCase("getById"))
}
