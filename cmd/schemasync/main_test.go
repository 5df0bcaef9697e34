package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag to its default between tests.
func resetFlags(t *testing.T) {
	t.Helper()
	rootCmd.Flags().VisitAll(func(f *pflag.Flag) {
		require.NoError(t, f.Value.Set(f.DefValue))
		f.Changed = false
	})
}

func parse(t *testing.T, args ...string) {
	t.Helper()
	resetFlags(t)
	require.NoError(t, rootCmd.ParseFlags(args))
}

func TestBuildConfigFromFlags(t *testing.T) {
	dir := t.TempDir()
	parse(t,
		"--source", "mysql://root:pw@db1:3306/shop",
		"--target", "mysql://root:pw@db2:3306/shop",
		"-a", "-c", "-D",
		"--tables", "users, orders",
		"--out-dir", dir,
	)

	cfg, err := buildConfig(rootCmd)
	require.NoError(t, err)
	assert.True(t, cfg.SyncAutoIncrement)
	assert.True(t, cfg.SyncComments)
	assert.True(t, cfg.NoDate)
	assert.False(t, cfg.Versioned)
	assert.Equal(t, []string{"users", "orders"}, cfg.Tables)
	assert.Nil(t, cfg.Views, "unset filters select everything")
	assert.Equal(t, "utf8", cfg.Charset)
	assert.Equal(t, dir, cfg.OutDir)
	assert.Equal(t, 4, cfg.Concurrency)
}

func TestBuildConfigEmptyFilter(t *testing.T) {
	parse(t,
		"--source", "mysql://root:pw@db1:3306/shop",
		"--target", "mysql://root:pw@db2:3306/shop",
		"--tables", ",,",
		"--out-dir", t.TempDir(),
	)

	cfg, err := buildConfig(rootCmd)
	require.NoError(t, err)
	assert.NotNil(t, cfg.Tables, "a filter naming nothing selects no tables")
	assert.Empty(t, cfg.Tables)
	assert.Nil(t, cfg.Views)
}

func TestBuildConfigFileAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schemasync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
source: mysql://root:pw@file-src:3306/shop
target: mysql://root:pw@file-dst:3306/shop
out_dir: `+dir+`
sync_comments: true
charset: utf8mb4
views: [v_orders]
`), 0o644))

	parse(t, "--config", path, "--target", "mysql://root:pw@flag-dst:3306/shop", "--charset", "latin1")

	cfg, err := buildConfig(rootCmd)
	require.NoError(t, err)
	assert.Equal(t, "mysql://root:pw@file-src:3306/shop", cfg.Source)
	assert.Equal(t, "mysql://root:pw@flag-dst:3306/shop", cfg.Target)
	assert.Equal(t, "latin1", cfg.Charset)
	assert.True(t, cfg.SyncComments)
	assert.Equal(t, []string{"v_orders"}, cfg.Views)
}

func TestBuildConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "missing target",
			args: []string{"--source", "mysql://root@db1/shop"},
			want: "missing source or target",
		},
		{
			name: "relative out dir",
			args: []string{"--source", "mysql://root@db1/shop", "--target", "mysql://root@db2/shop", "--out-dir", "patches"},
			want: "must be an absolute path",
		},
		{
			name: "missing config file",
			args: []string{"--config", "/nonexistent/schemasync.yaml"},
			want: "failed to read config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parse(t, tt.args...)
			_, err := buildConfig(rootCmd)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestVersionFlag(t *testing.T) {
	resetFlags(t)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"-V"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "schemasync ")
}
