package credentials

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/rollcall/internal/auth"
	"github.com/wolfeidau/rollcall/internal/models"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func issue(t *testing.T, id string, role models.Role) string {
	t.Helper()
	token, err := auth.IssueToken(testSecret, models.Principal{ID: id, Role: role}, time.Hour)
	require.NoError(t, err)
	return token
}

func TestNewStore(t *testing.T) {
	t.Run("creates directory with correct permissions", func(t *testing.T) {
		tmpDir := t.TempDir()
		credDir := filepath.Join(tmpDir, "creds")

		store, err := NewStore(credDir)
		require.NoError(t, err)
		assert.NotNil(t, store)

		info, err := os.Stat(credDir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
	})

	t.Run("creates config.json on initialization", func(t *testing.T) {
		tmpDir := t.TempDir()
		store, err := NewStore(tmpDir)
		require.NoError(t, err)

		info, err := os.Stat(filepath.Join(tmpDir, "config.json"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

		cfg, err := store.loadConfig()
		require.NoError(t, err)
		assert.Equal(t, 1, cfg.Version)
		assert.Empty(t, cfg.DefaultProfile)
		assert.Empty(t, cfg.Profiles)
	})

	t.Run("keeps existing config", func(t *testing.T) {
		tmpDir := t.TempDir()
		store, err := NewStore(tmpDir)
		require.NoError(t, err)
		_, err = store.Save(Profile{Name: "school", Server: "https://rollcall.example.com"})
		require.NoError(t, err)

		reopened, err := NewStore(tmpDir)
		require.NoError(t, err)
		profiles, err := reopened.List()
		require.NoError(t, err)
		assert.Len(t, profiles, 1)
	})
}

func TestStore_Save(t *testing.T) {
	t.Run("fills identity from the token", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)

		profile, err := store.Save(Profile{
			Name:   "school",
			Server: "https://rollcall.example.com/",
			Token:  issue(t, "I1", models.RoleInstructor),
		})
		require.NoError(t, err)
		assert.Equal(t, "https://rollcall.example.com", profile.Server)
		assert.Equal(t, "I1", profile.PrincipalID)
		assert.Equal(t, "instructor", profile.Role)
		require.NotNil(t, profile.ExpiresAt)
		assert.False(t, profile.Expired(time.Now()))
		assert.True(t, profile.Expired(time.Now().Add(2*time.Hour)))
	})

	t.Run("first profile becomes default", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)

		_, err = store.Save(Profile{Name: "first", Server: "https://a"})
		require.NoError(t, err)
		_, err = store.Save(Profile{Name: "second", Server: "https://b"})
		require.NoError(t, err)

		def, err := store.GetDefault()
		require.NoError(t, err)
		assert.Equal(t, "first", def.Name)
	})

	t.Run("replacing keeps created at", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)

		created := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
		store.now = func() time.Time { return created }
		_, err = store.Save(Profile{Name: "school", Server: "https://a"})
		require.NoError(t, err)

		store.now = func() time.Time { return created.Add(time.Hour) }
		profile, err := store.Save(Profile{Name: "school", Server: "https://b"})
		require.NoError(t, err)
		assert.Equal(t, created, profile.CreatedAt)
		assert.Equal(t, created.Add(time.Hour), profile.UpdatedAt)
		assert.Equal(t, "https://b", profile.Server)
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)

		_, err = store.Save(Profile{Name: "school"})
		assert.ErrorIs(t, err, ErrInvalidProfile)
		_, err = store.Save(Profile{Server: "https://a"})
		assert.ErrorIs(t, err, ErrInvalidProfile)
	})

	t.Run("rejects undecodable token", func(t *testing.T) {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)

		_, err = store.Save(Profile{Name: "school", Server: "https://a", Token: "not-a-jwt"})
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestStore_GetAndResolve(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Resolve("")
	assert.ErrorIs(t, err, ErrNoDefaultProfile)

	_, err = store.Get("missing")
	assert.ErrorIs(t, err, ErrProfileNotFound)

	_, err = store.Save(Profile{Name: "school", Server: "https://a"})
	require.NoError(t, err)
	_, err = store.Save(Profile{Name: "kiosk", Server: "https://b"})
	require.NoError(t, err)

	profile, err := store.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "school", profile.Name)

	profile, err = store.Resolve("kiosk")
	require.NoError(t, err)
	assert.Equal(t, "https://b", profile.Server)
}

func TestStore_List(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"zeta", "alpha", "mid"} {
		_, err := store.Save(Profile{Name: name, Server: "https://a"})
		require.NoError(t, err)
	}

	profiles, err := store.List()
	require.NoError(t, err)
	require.Len(t, profiles, 3)
	assert.Equal(t, "alpha", profiles[0].Name)
	assert.Equal(t, "mid", profiles[1].Name)
	assert.Equal(t, "zeta", profiles[2].Name)
}

func TestStore_Delete(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save(Profile{Name: "school", Server: "https://a"})
	require.NoError(t, err)

	require.NoError(t, store.Delete("school"))
	assert.ErrorIs(t, store.Delete("school"), ErrProfileNotFound)

	_, err = store.GetDefault()
	assert.ErrorIs(t, err, ErrNoDefaultProfile)
}

func TestStore_SetDefault(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save(Profile{Name: "school", Server: "https://a"})
	require.NoError(t, err)
	_, err = store.Save(Profile{Name: "kiosk", Server: "https://b"})
	require.NoError(t, err)

	require.NoError(t, store.SetDefault("kiosk"))
	def, err := store.GetDefault()
	require.NoError(t, err)
	assert.Equal(t, "kiosk", def.Name)

	assert.ErrorIs(t, store.SetDefault("missing"), ErrProfileNotFound)
}

func TestInspectToken(t *testing.T) {
	info, err := InspectToken(issue(t, "kiosk-7", models.RoleDevice))
	require.NoError(t, err)
	assert.Equal(t, "kiosk-7", info.PrincipalID)
	assert.Equal(t, "device", info.Role)
	assert.Equal(t, auth.KeyID(testSecret), info.KeyID)
	require.NotNil(t, info.ExpiresAt)

	_, err = InspectToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
