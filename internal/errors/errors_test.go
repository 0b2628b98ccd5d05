package errors

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecordAndClear(t *testing.T) {
	c := NewCollector()

	assert.False(t, c.HasErrors())

	c.Record("/blog", ErrBundleFailed("/blog", errors.New("bad import")))
	c.Record("/about", ErrRenderFailed("/about", nil))

	assert.True(t, c.HasErrors())

	re, ok := c.Latest("/blog")
	require.True(t, ok)
	assert.Equal(t, "/blog", re.Route)
	assert.Equal(t, ErrorTypeBundling, re.Err.Type)
	assert.False(t, re.Timestamp.IsZero())

	c.Clear("/blog")
	_, ok = c.Latest("/blog")
	assert.False(t, ok)
	assert.True(t, c.HasErrors(), "other routes still failing")

	c.Clear("/about")
	assert.False(t, c.HasErrors())
}

func TestCollectorReplacesPreviousEntry(t *testing.T) {
	c := NewCollector()

	c.Record("/", ErrBundleFailed("/", nil))
	c.Record("/", ErrRenderFailed("/", nil))

	re, ok := c.Latest("/")
	require.True(t, ok)
	assert.Equal(t, ErrorTypeRender, re.Err.Type)
	assert.Len(t, c.All(), 1)
}

func TestCollectorWrapsPlainErrors(t *testing.T) {
	c := NewCollector()
	c.Record("/x", errors.New("plain failure"))

	re, ok := c.Latest("/x")
	require.True(t, ok)
	assert.Equal(t, ErrorTypeInternal, re.Err.Type)
}

func TestCollectorAllSorted(t *testing.T) {
	c := NewCollector()
	c.Record("/z", ErrEmptyBundle("/z"))
	c.Record("/a", ErrEmptyBundle("/a"))
	c.Record("/m", ErrEmptyBundle("/m"))

	all := c.All()
	require.Len(t, all, 3)
	assert.Equal(t, "/a", all[0].Route)
	assert.Equal(t, "/m", all[1].Route)
	assert.Equal(t, "/z", all[2].Route)
}

func TestCollectorConcurrentAccess(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	routes := []string{"/a", "/b", "/c", "/d"}

	for i := 0; i < 50; i++ {
		for _, route := range routes {
			wg.Add(1)
			go func(r string) {
				defer wg.Done()
				c.Record(r, ErrBundleFailed(r, nil))
				c.Latest(r)
				c.All()
			}(route)
		}
	}

	wg.Wait()
	assert.Len(t, c.All(), len(routes))
}
