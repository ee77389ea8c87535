package parsing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSAMDDetection(t *testing.T) {
	analyzer := NewJSAnalyzer()
	defer analyzer.Close()

	source := `
define([
    'jquery',
    'Magento_Ui/js/modal/modal'
], function ($, modal) {
    'use strict';

    return function (config) {
        // Widget code
    };
});
`
	meta := analyzer.Analyze(source)
	require.Equal(t, "amd", meta.ModuleType)
	assert.Contains(t, meta.DefineDeps, "jquery")
	assert.Contains(t, meta.DefineDeps, "Magento_Ui/js/modal/modal")
}

func TestJSMixinDetection(t *testing.T) {
	analyzer := NewJSAnalyzer()
	defer analyzer.Close()

	source := `
define(['Magento_Catalog/js/price-utils'], function () {
    'use strict';
    return function (target) {
        return target.extend({
            'mixins': ['Magento_Catalog/js/price-utils']
        });
    };
});
`
	meta := analyzer.Analyze(source)
	assert.True(t, meta.IsMixin)
}

func TestJSWidgetDetection(t *testing.T) {
	analyzer := NewJSAnalyzer()
	defer analyzer.Close()

	source := `
(function ($) {
    $.widget('mage.myWidget', {
        _create: function () {}
    });
})(jQuery);
`
	meta := analyzer.Analyze(source)
	assert.True(t, meta.IsWidget)
	assert.Equal(t, "iife", meta.ModuleType)
}
