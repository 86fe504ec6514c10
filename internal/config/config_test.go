package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/wantnot/internal/common"
	"github.com/Veraticus/wantnot/internal/engine"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("OPENAI_API_KEY", "sk-openai")

	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, CorpusDriverSQLite, cfg.Corpus.Driver)
	assert.Equal(t, 1536, cfg.Corpus.Dimensions)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "sk-ant", cfg.LLM.APIKey)
	assert.Equal(t, "sk-openai", cfg.Embedding.APIKey)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 15*time.Minute, cfg.LLM.CacheTTL)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "*/15 * * * *", cfg.Schedule.Cron)
	assert.NotContains(t, cfg.Database.Path, "~")

	assert.Equal(t, engine.DefaultConfig(), cfg.Engine())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("WANTNOT_LLM_PROVIDER", "openai")
	t.Setenv("WANTNOT_CATEGORIZATION_RULE_THRESHOLD", "0.95")
	t.Setenv("WANTNOT_CATEGORIZATION_CONTRIBUTE", "false")
	t.Setenv("WANTNOT_LLM_TIMEOUT", "5s")
	t.Setenv("OPENAI_API_KEY", "sk-openai")

	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "sk-openai", cfg.LLM.APIKey)

	eng := cfg.Engine()
	assert.InDelta(t, 0.95, eng.Thresholds.Rule, 1e-9)
	assert.False(t, eng.Contribute)
	assert.Equal(t, 5*time.Second, eng.LLMTimeout)

	classifier := cfg.Classifier()
	assert.Equal(t, "openai", classifier.Provider)
	assert.Equal(t, 200, classifier.MaxTokens)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{name: "threshold above one", key: "categorization.llm_threshold", value: 1.5},
		{name: "negative similarity", key: "categorization.min_similarity", value: -0.1},
		{name: "unknown driver", key: "corpus.driver", value: "mysql"},
		{name: "unknown provider", key: "llm.provider", value: "cohere"},
		{name: "zero dimensions", key: "corpus.dimensions", value: 0},
		{name: "negative step", key: "learning.rule_step", value: -0.1},
		{name: "cap above one", key: "learning.confidence_cap", value: 1.2},
		{name: "zero batch limit", key: "categorization.llm_batch_limit", value: 0},
		{name: "zero timeout", key: "embedding.timeout", value: 0},
		{name: "unknown log level", key: "logging.level", value: "verbose"},
		{name: "empty cron", key: "schedule.cron", value: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper()
			v.Set(tt.key, tt.value)

			_, err := Load(v)
			require.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestLoad_PostgresRequiresDSN(t *testing.T) {
	v := newViper()
	v.Set("corpus.driver", "postgres")

	_, err := Load(v)
	require.ErrorIs(t, err, common.ErrInvalidConfig)

	v.Set("corpus.postgres_dsn", "postgres://localhost/wantnot")
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, CorpusDriverPostgres, cfg.Corpus.Driver)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("WANTNOT_TEST_DIR", "/srv/data")

	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "~", want: home},
		{in: "~/db/wantnot.db", want: filepath.Join(home, "db", "wantnot.db")},
		{in: "$WANTNOT_TEST_DIR/wantnot.db", want: "/srv/data/wantnot.db"},
		{in: "/abs/path.db", want: "/abs/path.db"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}

func TestDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	dir, err := Dir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/xdg/wantnot", dir)
}

func TestEnsureParentDir(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "nested", "wantnot.db")

	require.NoError(t, EnsureParentDir(path))
	info, err := os.Stat(filepath.Join(root, "nested"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	require.NoError(t, EnsureParentDir(":memory:"))
}
