package flagx

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	cfgFlags := []string{"-c", "--config"}
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "subcommand and other flags dropped",
			args:    []string{"shell", "-c", "profile.json", "--log-level", "debug"},
			allowed: cfgFlags,
			want:    []string{"-c", "profile.json"},
		},
		{
			name:    "equals form",
			args:    []string{"login", "--config=alt.json", "-u", "admin"},
			allowed: cfgFlags,
			want:    []string{"--config=alt.json"},
		},
		{
			name:    "value may not start with a dash",
			args:    []string{"-c", "--record-driver", "memory"},
			allowed: cfgFlags,
			want:    []string{"-c"},
		},
		{
			name:    "flag at the end",
			args:    []string{"migrate", "--config"},
			allowed: cfgFlags,
			want:    []string{"--config"},
		},
		{
			name:    "repeated env files keep their order",
			args:    []string{"--env-file", ".env", "-b", "avatars", "--env-file=.env.local"},
			allowed: []string{"--env-file"},
			want:    []string{"--env-file", ".env", "--env-file=.env.local"},
		},
		{
			name:    "nothing to keep",
			args:    []string{"shell"},
			allowed: cfgFlags,
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterArgs(tt.args, tt.allowed)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("FilterArgs() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestConfigPath(t *testing.T) {
	t.Run("short -c with value", func(t *testing.T) {
		assert.Equal(t, "/path/short.json", ConfigPath([]string{"-c", "/path/short.json"}))
	})

	t.Run("long --config with equals", func(t *testing.T) {
		assert.Equal(t, "/path/long.json", ConfigPath([]string{"shell", "--config=/path/long.json"}))
	})

	t.Run("unknown flags are ignored", func(t *testing.T) {
		assert.Empty(t, ConfigPath([]string{"-x", "1", "--log-level", "debug"}))
	})

	t.Run("multiple flags, last wins", func(t *testing.T) {
		assert.Equal(t, "/path/2.json", ConfigPath([]string{"-c", "/path/1.json", "-config", "/path/2.json"}))
	})
}

func TestEnvFiles(t *testing.T) {
	got := EnvFiles([]string{"--env-file", ".env", "login", "--env-file=.env.dev, .env.local", "--other", "x"})
	assert.Equal(t, []string{".env", ".env.dev", ".env.local"}, got)

	assert.Empty(t, EnvFiles([]string{"shell"}))
}
