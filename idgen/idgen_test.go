package idgen_test

import (
	"regexp"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/seb7887/gofw/idgen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var uuidPattern = regexp.MustCompile(`^[a-f0-9-]{36}$`)

func TestNewUUID(t *testing.T) {
	id := idgen.NewUUID()
	assert.Regexp(t, uuidPattern, id)
	assert.True(t, idgen.IsUUID(id))
	assert.NotEqual(t, id, idgen.NewUUID())
}

func TestIsUUID(t *testing.T) {
	assert.False(t, idgen.IsUUID(""))
	assert.False(t, idgen.IsUUID("not-a-uuid"))
	assert.False(t, idgen.IsUUID("6ba7b8109dad11d180b400c04fd430c8"), "only the hyphenated form is accepted")
}

func TestNewULID_Concurrent(t *testing.T) {
	const n = 64
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[string]struct{}, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := idgen.NewULID()
			mu.Lock()
			ids[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ids, n)
	for id := range ids {
		assert.Len(t, id, 26)
	}
}

func TestForKind(t *testing.T) {
	gen, err := idgen.ForKind("")
	require.NoError(t, err)
	assert.Regexp(t, uuidPattern, gen())

	gen, err = idgen.ForKind("ULID")
	require.NoError(t, err)
	assert.Len(t, gen(), 26)

	_, err = idgen.ForKind("snowflake")
	require.Error(t, err)
}

func TestUseUUID(t *testing.T) {
	gen, err := idgen.ForKind(idgen.KindUUID)
	require.NoError(t, err)

	idgen.UseUUID(func() string { return "fixed" })
	t.Cleanup(func() { idgen.UseUUID(uuid.NewString) })

	assert.Equal(t, "fixed", gen())
}
