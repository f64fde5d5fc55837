package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"siren/internal/config"
	"siren/internal/msr"
	"siren/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	server     *testsupport.MSRServer
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	server := testsupport.NewMSRServer(t)
	cfg := testsupport.NewConfig(t, testsupport.WithAPIEndpoint(server.APIBase()), testsupport.WithStubbedBinaries())
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	server.AddAlbum(msr.AlbumDetail{
		CID:        "5101",
		Name:       "Sanity;Vigilance",
		Intro:      "Two singles.",
		Belong:     "arknights",
		CoverURL:   "https://web.hycdn.cn/siren/pic/5101.jpg",
		CoverDeURL: "https://web.hycdn.cn/siren/pic/5101-de.jpg",
		Songs: []msr.AlbumSong{
			{CID: "1001", Name: "Sanity", Artistes: []string{"塞壬唱片-MSR"}},
			{CID: "1002", Name: "Vigilance", Artistes: []string{"塞壬唱片-MSR"}},
		},
	}, []string{"塞壬唱片-MSR"})
	for _, song := range []struct{ cid, name string }{{"1001", "Sanity"}, {"1002", "Vigilance"}} {
		server.AddSong(msr.SongDetail{
			CID:      song.cid,
			Name:     song.name,
			AlbumCID: "5101",
			Artists:  []string{"塞壬唱片-MSR"},
		}, testsupport.AudioBytes(song.name, 4096))
	}

	return &cliTestEnv{cfg: cfg, server: server, configPath: configPath, baseDir: base}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[api]
endpoint = %q
max_retries = 0
retry_delay_ms = 1

[download]
dir = %q
concurrency = 2
batch_size = 2
min_free_mib = 0

[cache]
backend = %q
path = %q

[player]
binary = "ffplay"
loop = false

[logging]
level = "error"
dir = ""
`, cfg.API.Endpoint, cfg.Download.Dir, cfg.Cache.Backend, cfg.Cache.Path)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected output to contain %q, got:\n%s", substr, output)
	}
}
