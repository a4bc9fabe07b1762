package browser

import (
	"testing"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
)

func TestOptions(t *testing.T) {
	base := len(chromedp.DefaultExecAllocatorOptions)

	headless := Options(true)
	visible := Options(false)
	assert.Len(t, headless, len(visible)+1, "headless adds disable-gpu")
	assert.Greater(t, len(visible), base)

	withExtra := Options(false, chromedp.Flag("start-maximized", true))
	assert.Len(t, withExtra, len(visible)+1)
}

func TestOptionsDoesNotAliasDefaults(t *testing.T) {
	a := Options(true)
	b := Options(false)
	a[len(a)-1] = nil
	assert.NotNil(t, b[len(b)-1])
}

func TestStealthScript(t *testing.T) {
	assert.Contains(t, stealthJS, "navigator, 'webdriver'")
	assert.NotNil(t, Stealth())
}
