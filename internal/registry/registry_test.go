package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rrerr "railrelay/internal/errors"
)

func TestRegistry_IdentityAndKey(t *testing.T) {
	r := New()
	r.RecordIdentity("10.0.0.1:5000", "alice")
	r.RecordKey("10.0.0.1:5000", 3)

	name, err := r.DisplayNameOf("10.0.0.1:5000")
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	key, err := r.LastKeyOf("10.0.0.1:5000")
	require.NoError(t, err)
	assert.Equal(t, 3, key)

	r.RecordKey("10.0.0.1:5000", 5)
	key, _ = r.LastKeyOf("10.0.0.1:5000")
	assert.Equal(t, 5, key)
}

func TestRegistry_UnknownIdentity(t *testing.T) {
	r := New()

	name, err := r.DisplayNameOf("10.0.0.9:1")
	assert.ErrorIs(t, err, rrerr.ErrUnknownIdentity)
	assert.Empty(t, name)

	// A key on its own does not make a peer known.
	r.RecordKey("10.0.0.9:1", 2)
	_, err = r.DisplayNameOf("10.0.0.9:1")
	assert.ErrorIs(t, err, rrerr.ErrUnknownIdentity)

	_, err = r.LastKeyOf("nobody")
	assert.ErrorIs(t, err, rrerr.ErrUnknownIdentity)
}

func TestRegistry_Forget(t *testing.T) {
	r := New()
	r.RecordIdentity("a", "alice")
	r.RecordKey("a", 2)
	r.RecordIdentity("b", "bob")

	r.Forget("a")
	assert.Equal(t, 1, r.Len())
	_, err := r.DisplayNameOf("a")
	assert.ErrorIs(t, err, rrerr.ErrUnknownIdentity)
	_, err = r.LastKeyOf("a")
	assert.ErrorIs(t, err, rrerr.ErrUnknownIdentity)

	name, err := r.DisplayNameOf("b")
	require.NoError(t, err)
	assert.Equal(t, "bob", name)
}

func TestRegistry_ConcurrentIdentities(t *testing.T) {
	const n = 200
	r := New()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("10.1.%d.%d:%d", i/256, i%256, 40000+i)
			r.RecordIdentity(id, fmt.Sprintf("user-%d", i))
			for k := 1; k <= 5; k++ {
				r.RecordKey(id, k+i)
				_, _ = r.DisplayNameOf(id)
			}
			_ = r.Names()
		}(i)
	}
	wg.Wait()

	require.Equal(t, n, r.Len())
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("10.1.%d.%d:%d", i/256, i%256, 40000+i)
		name, err := r.DisplayNameOf(id)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("user-%d", i), name)

		key, err := r.LastKeyOf(id)
		require.NoError(t, err)
		assert.Equal(t, 5+i, key)
	}
}

func TestRegistry_NamesIsACopy(t *testing.T) {
	r := New()
	r.RecordIdentity("a", "alice")
	names := r.Names()
	names["a"] = "mallory"

	name, _ := r.DisplayNameOf("a")
	assert.Equal(t, "alice", name)
}
