package cohort

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/rollcall/internal/client"
)

func TestParse(t *testing.T) {
	data := []byte(`
rosters:
  CS101: [S003, S001, " S002 ", S001, ""]
  BSIT-1:
    - S001
`)

	st, err := Parse(data)
	require.NoError(t, err)

	students, err := st.Roster(context.Background(), "CS101")
	require.NoError(t, err)
	require.Equal(t, []string{"S003", "S001", "S002"}, students)

	students, err = st.Roster(context.Background(), "BSIT-1")
	require.NoError(t, err)
	require.Equal(t, []string{"S001"}, students)
}

func TestStatic_unknownKey(t *testing.T) {
	st := NewStatic(map[string][]string{"CS101": {"S001"}})

	students, err := st.Roster(context.Background(), "nope")
	require.NoError(t, err)
	require.NotNil(t, students)
	require.Empty(t, students)
}

func TestStatic_returnsCopy(t *testing.T) {
	st := NewStatic(map[string][]string{"CS101": {"S001", "S002"}})

	students, err := st.Roster(context.Background(), "CS101")
	require.NoError(t, err)
	students[0] = "mutated"

	again, err := st.Roster(context.Background(), "CS101")
	require.NoError(t, err)
	require.Equal(t, "S001", again[0])
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rosters.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rosters:\n  C1: [A, B]\n"), 0o600))

	st, err := LoadFile(path)
	require.NoError(t, err)

	students, err := st.Roster(context.Background(), "C1")
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B"}, students)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = Parse([]byte("rosters: [not, a, map]"))
	require.Error(t, err)
}

func TestHTTP_Roster(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/rosters/CS101":
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Cache-Control", "max-age=300")
			_, _ = w.Write([]byte(`{"students":["S002","S001","S002"]}`))
		case "/rosters/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	resolver := NewHTTP(srv.URL+"/", client.NewInMemoryCachingHTTPClient(5*time.Second))
	ctx := context.Background()

	t.Run("fetch and normalize", func(t *testing.T) {
		students, err := resolver.Roster(ctx, "CS101")
		require.NoError(t, err)
		require.Equal(t, []string{"S002", "S001"}, students)
	})

	t.Run("served from cache", func(t *testing.T) {
		before := hits.Load()
		students, err := resolver.Roster(ctx, "CS101")
		require.NoError(t, err)
		require.Len(t, students, 2)
		require.Equal(t, before, hits.Load())
	})

	t.Run("not found is empty", func(t *testing.T) {
		students, err := resolver.Roster(ctx, "unknown")
		require.NoError(t, err)
		require.Empty(t, students)
	})

	t.Run("server error", func(t *testing.T) {
		_, err := resolver.Roster(ctx, "broken")
		require.ErrorIs(t, err, ErrRosterUnavailable)
	})
}

func TestResolverFunc(t *testing.T) {
	var r Resolver = ResolverFunc(func(ctx context.Context, key string) ([]string, error) {
		return []string{key}, nil
	})

	students, err := r.Roster(context.Background(), "X")
	require.NoError(t, err)
	require.Equal(t, []string{"X"}, students)
}
