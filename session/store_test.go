package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctxguard/budget"
)

func sampleState() budget.State {
	s := budget.NewState()
	for _, p := range []string{"/repo/z/a.go", "/repo/a/b.md", "/repo/z/c_test.go"} {
		s = budget.Accumulate(s, budget.NewItem(p, 1000))
	}
	return s
}

func TestLoadMissingReturnsFreshState(t *testing.T) {
	store := NewStore(t.TempDir())

	got := store.Load("never-seen")
	assert.Equal(t, int64(0), got.TotalBytes)
	assert.Equal(t, 0, got.ReadCount)
	assert.Empty(t, got.Files)

	state, err := store.Read("never-seen")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nested", "state"))
	orig := sampleState()

	require.NoError(t, store.Save("abc", orig))
	loaded := store.Load("abc")

	assert.Equal(t, orig.TotalBytes, loaded.TotalBytes)
	assert.Equal(t, orig.ReadCount, loaded.ReadCount)
	assert.Equal(t, orig.Files, loaded.Files)
	assert.Equal(t, orig.Categories.Buckets(), loaded.Categories.Buckets())
	assert.Equal(t, orig.Directories.Buckets(), loaded.Directories.Buckets())

	// save(load(id)) then load(id) is stable.
	require.NoError(t, store.Save("abc", loaded))
	again := store.Load("abc")
	assert.Equal(t, loaded.Directories.Buckets(), again.Directories.Buckets())
	assert.Equal(t, loaded.Files, again.Files)
}

func TestSavedFormatIsPlainJSON(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Save("fmt", sampleState()))

	data, err := os.ReadFile(store.Path("fmt"))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.EqualValues(t, 3000, raw["total_bytes"])
	assert.EqualValues(t, 3, raw["read_count"])
	dirs, ok := raw["directories"].(map[string]any)
	require.True(t, ok, "directories should be a plain object")
	assert.EqualValues(t, 2, dirs["/repo/z"])
}

func TestLoadCorruptReturnsFreshState(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	cases := map[string]string{
		"garbage":  "{not json",
		"wrong":    `{"categories": [1,2,3]}`,
		"drifted":  `{"total_bytes": 10, "read_count": 2, "files": []}`,
		"negative": `{"categories": {"code": -1}}`,
	}
	for id, content := range cases {
		require.NoError(t, os.WriteFile(store.Path(id), []byte(content), 0644))

		got := store.Load(id)
		assert.Equal(t, 0, got.ReadCount, id)

		_, err := store.Read(id)
		assert.Error(t, err, id)
	}
}

func TestLoadLegacyFileWithoutSchemaVersion(t *testing.T) {
	store := NewStore(t.TempDir())
	legacy := `{
  "total_bytes": 12,
  "read_count": 1,
  "files": [{"path": "a.go", "size": 12, "category": "code"}],
  "categories": {"code": 1},
  "directories": {"": 1}
}`
	require.NoError(t, os.WriteFile(store.Path("old"), []byte(legacy), 0644))

	got := store.Load("old")
	assert.Equal(t, budget.SchemaVersion, got.SchemaVersion)
	assert.Equal(t, int64(12), got.TotalBytes)
	assert.Equal(t, 1, got.Directories.Get(""))
}

func TestUpdate(t *testing.T) {
	store := NewStore(t.TempDir())

	for i := 0; i < 3; i++ {
		_, err := store.Update("s1", func(s budget.State) (budget.State, bool) {
			return budget.Accumulate(s, budget.NewItem("x/a.go", 10)), true
		})
		require.NoError(t, err)
	}
	got := store.Load("s1")
	assert.Equal(t, 3, got.ReadCount)
	assert.False(t, got.UpdatedAt.IsZero())

	// Returning false leaves the stored state alone.
	_, err := store.Update("s1", func(s budget.State) (budget.State, bool) {
		return budget.Accumulate(s, budget.NewItem("x/b.go", 10)), false
	})
	require.NoError(t, err)
	assert.Equal(t, 3, store.Load("s1").ReadCount)
}

func TestUpdateConcurrentWritersDoNotLoseReads(t *testing.T) {
	store := NewStore(t.TempDir())

	const writers = 8
	const perWriter = 10
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, err := store.Update("shared", func(s budget.State) (budget.State, bool) {
					return budget.Accumulate(s, budget.NewItem("d/f.go", 4)), true
				})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	got := store.Load("shared")
	assert.Equal(t, writers*perWriter, got.ReadCount)
	assert.Equal(t, int64(writers*perWriter*4), got.TotalBytes)
	assert.NoError(t, got.Validate())
}

func TestSessionsAreIndependent(t *testing.T) {
	store := NewStore(t.TempDir())
	add := func(id string, size int64) {
		_, err := store.Update(id, func(s budget.State) (budget.State, bool) {
			return budget.Accumulate(s, budget.NewItem("a.go", size)), true
		})
		require.NoError(t, err)
	}
	add("one", 10)
	add("two", 100)
	add("one", 5)

	assert.Equal(t, int64(15), store.Load("one").TotalBytes)
	assert.Equal(t, int64(100), store.Load("two").TotalBytes)
}

func TestSanitizeID(t *testing.T) {
	tests := map[string]string{
		"":                   UnknownID,
		"abc-123_x.y":        "abc-123_x.y",
		"550e8400-e29b-41d4": "550e8400-e29b-41d4",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeID(in), in)
	}

	for _, in := range []string{"..", "../../etc/passwd", "with space/slash"} {
		got := SanitizeID(in)
		assert.Regexp(t, `^[A-Za-z0-9._-]+~[0-9a-f]{16}$`, got, in)
		assert.NotContains(t, got, "/", in)
		assert.Equal(t, got, SanitizeID(in), "must be stable")
		assert.Equal(t, got, SanitizeID(got), "sanitized ids map to themselves")
	}
	assert.True(t, strings.HasPrefix(SanitizeID("with space/slash"), "with_space_slash~"))
}

func TestSanitizeIDIsInjective(t *testing.T) {
	ids := []string{"a/b", "a_b", "a:b", "a b", "sess/1", "sess:1", "sess_1", "..", "."}
	seen := map[string]string{}
	for _, id := range ids {
		got := SanitizeID(id)
		if prev, ok := seen[got]; ok {
			t.Fatalf("%q and %q both map to %q", prev, id, got)
		}
		seen[got] = id
	}
}

func TestDistinctIDsStayIndependent(t *testing.T) {
	store := NewStore(t.TempDir())
	for i, id := range []string{"a/b", "a_b", "a:b"} {
		_, err := store.Update(id, func(st budget.State) (budget.State, bool) {
			for n := 0; n <= i; n++ {
				st = budget.Accumulate(st, budget.NewItem("/x/f.go", 10))
			}
			return st, true
		})
		require.NoError(t, err)
	}

	assert.Equal(t, 1, store.Load("a/b").ReadCount)
	assert.Equal(t, 2, store.Load("a_b").ReadCount)
	assert.Equal(t, 3, store.Load("a:b").ReadCount)

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 3)
	for _, sum := range list {
		st, err := store.Read(sum.ID)
		require.NoError(t, err)
		require.NotNil(t, st, sum.ID)
		assert.Equal(t, sum.State.ReadCount, st.ReadCount, sum.ID)
	}
}

func TestListAndDelete(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Save("alpha", sampleState()))
	require.NoError(t, store.Save("beta", budget.NewState()))
	require.NoError(t, os.WriteFile(store.Path("broken"), []byte("nope"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "unrelated.json"), []byte("{}"), 0644))

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 3)

	byID := map[string]Summary{}
	for _, s := range list {
		byID[s.ID] = s
	}
	assert.Equal(t, 3, byID["alpha"].State.ReadCount)
	assert.Error(t, byID["broken"].Err)

	require.NoError(t, store.Delete("alpha"))
	require.NoError(t, store.Delete("alpha"))
	list, err = store.List()
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestListMissingDir(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "absent"))
	list, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestIDFromPath(t *testing.T) {
	store := NewStore("/tmp/state")
	id, ok := IDFromPath(store.Path("sess-1"))
	assert.True(t, ok)
	assert.Equal(t, "sess-1", id)

	_, ok = IDFromPath("/tmp/state/read_tracker_x.json.lock")
	assert.False(t, ok)
}
