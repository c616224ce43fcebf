package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var _ Page = (*RodPage)(nil)

func TestNewAutomation(t *testing.T) {
	config := DefaultConfig()
	automation := NewAutomation(config, zap.NewNop())

	if automation == nil {
		t.Fatal("NewAutomation returned nil")
	}
	assert.Same(t, config, automation.config)
	assert.Nil(t, automation.browser)
	assert.Nil(t, automation.page)
}

func TestAutomationCloseWithoutBrowser(t *testing.T) {
	automation := NewAutomation(DefaultConfig(), zap.NewNop())
	assert.NotPanics(t, automation.Close)
}

func TestDispatchScriptBubbles(t *testing.T) {
	// Storefront handlers listen on ancestors.
	assert.Equal(t, 2, strings.Count(jsDispatch, "bubbles: true"))
	assert.Contains(t, jsDispatch, "new MouseEvent('click'")
	assert.Contains(t, jsDispatch, "new FocusEvent(name")
}

func TestDayScriptClicksFirstChild(t *testing.T) {
	assert.Contains(t, jsClickClassChild, "getElementsByClassName(cls)[0]")
	assert.Contains(t, jsClickClassChild, "children[0].click()")
}
