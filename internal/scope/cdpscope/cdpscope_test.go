package cdpscope

import (
	"context"
	"testing"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTabContext_OwnConnection(t *testing.T) {
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(context.Background(), "ws://127.0.0.1:9222")
	defer cancelAlloc()

	tabCtx, cancelTab := newTabContext(allocCtx, "TAB1")
	defer cancelTab()

	c := chromedp.FromContext(tabCtx)
	require.NotNil(t, c)
	assert.NotNil(t, c.Allocator)
	// No browser is inherited, so cancelling detaches instead of closing the tab.
	assert.Nil(t, c.Browser)
	assert.Nil(t, c.Target)
}

func TestOpen_RequiresURL(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.Error(t, err)
}
