package commands

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/buildbridge/internal/build"
	"git.home.luguber.info/inful/buildbridge/internal/config"
	"git.home.luguber.info/inful/buildbridge/internal/eventstore"
	"git.home.luguber.info/inful/buildbridge/internal/execevent"
	dberrors "git.home.luguber.info/inful/buildbridge/internal/foundation/errors"
	"git.home.luguber.info/inful/buildbridge/internal/launcher"
	"git.home.luguber.info/inful/buildbridge/internal/module"
)

var (
	core     = module.Project{Name: module.NewName("org.example", "core", "1.0")}
	compile  = module.StepInfo{ArtifactID: "maven-compiler-plugin", Version: "3.1", Goal: "compile", ExecutionID: "default-compile"}
	testConf = `
version: "1.0"
modules:
  - id: org.example:core:1.0
    reporters: [log, summary]
  - id: org.example:api:1.0
    reporters: [summary]
transport:
  mode: %s
store:
  path: %s
reporters:
  output_dir: %s
`
)

func writeConfig(t *testing.T, mode string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "buildbridge.yaml")
	body := []byte(fmt.Sprintf(testConf, mode, filepath.Join(dir, "events.db"), filepath.Join(dir, "reports")))
	require.NoError(t, os.WriteFile(path, body, 0o600))
	return path, dir
}

func writeRecording(t *testing.T, dir string, final execevent.Kind, failure error) string {
	t.Helper()
	var buf bytes.Buffer
	enc := execevent.NewEncoder(&buf)
	require.NoError(t, enc.EncodeToolInfo("3.9.6"))
	for _, ev := range []execevent.Event{
		{Kind: execevent.KindSessionStarted, Projects: []module.Project{core}},
		{Kind: execevent.KindProjectStarted, Project: &core},
		{Kind: execevent.KindStepStarted, Project: &core, Step: &compile},
		{Kind: execevent.KindStepSucceeded, Project: &core, Step: &compile},
		{Kind: final, Project: &core},
		{Kind: execevent.KindSessionEnded},
	} {
		require.NoError(t, enc.Encode(ev))
	}
	if failure != nil {
		require.NoError(t, enc.EncodeBuildFailure(failure))
	}
	path := filepath.Join(dir, "events.ndjson")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func replay(t *testing.T, cfgPath, file string) error {
	t.Helper()
	cli := &CLI{Config: cfgPath}
	g := &Global{Logger: slog.Default()}
	cfg, err := cli.loadConfig(g)
	require.NoError(t, err)
	return RunBuild(cfg, g, build.BuildRequest{Launcher: &launcher.Replay{Path: file}})
}

func TestReplayStoresModuleStateAndReports(t *testing.T) {
	cfgPath, dir := writeConfig(t, "store")
	file := writeRecording(t, dir, execevent.KindProjectSucceeded, nil)

	require.NoError(t, replay(t, cfgPath, file))

	assert.FileExists(t, filepath.Join(dir, "reports", "index.html"))
	assert.FileExists(t, filepath.Join(dir, "reports", "org.example.core.html"))

	store, err := eventstore.NewSQLiteStore(filepath.Join(dir, "events.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	projection := eventstore.NewModuleStateProjection(store, 0)
	require.NoError(t, projection.Rebuild(t.Context()))

	history := projection.GetHistory()
	require.Len(t, history, 1)
	assert.Equal(t, module.ResultSuccess, history[0].Result)

	var out bytes.Buffer
	require.NoError(t, (&StatusCmd{BuildID: history[0].BuildID}).print(&out, projection))
	assert.Contains(t, out.String(), "org.example:core:1.0")
	assert.Contains(t, out.String(), "SUCCEEDED")
	assert.Contains(t, out.String(), "NOT_BUILT")
}

func TestReplayFailedBuildIsBuildError(t *testing.T) {
	cfgPath, dir := writeConfig(t, "local")
	file := writeRecording(t, dir, execevent.KindProjectFailed, errors.New("compilation failure"))

	err := replay(t, cfgPath, file)
	require.Error(t, err)
	assert.True(t, dberrors.HasCategory(err, dberrors.CategoryBuild))
	assert.Equal(t, 11, dberrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestReplayForceSuccess(t *testing.T) {
	cfgPath, dir := writeConfig(t, "local")
	file := writeRecording(t, dir, execevent.KindProjectFailed, errors.New("compilation failure"))

	cli := &CLI{Config: cfgPath}
	g := &Global{Logger: slog.Default()}
	cfg, err := cli.loadConfig(g)
	require.NoError(t, err)
	BridgeFlags{ForceSuccess: true}.apply(cfg)

	require.NoError(t, RunBuild(cfg, g, build.BuildRequest{Launcher: &launcher.Replay{Path: file}}))
}

func enableMetrics(t *testing.T, cfgPath, listen string) {
	t.Helper()
	f, err := os.OpenFile(cfgPath, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = fmt.Fprintf(f, "metrics:\n  enabled: true\n  listen: %q\n", listen)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestReplayWithMetricsServer(t *testing.T) {
	cfgPath, dir := writeConfig(t, "local")
	enableMetrics(t, cfgPath, "127.0.0.1:0")
	file := writeRecording(t, dir, execevent.KindProjectSucceeded, nil)

	require.NoError(t, replay(t, cfgPath, file))
	assert.FileExists(t, filepath.Join(dir, "reports", "index.html"))
}

func TestMetricsPortInUseFailsBeforeBuild(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = busy.Close() }()

	cfgPath, dir := writeConfig(t, "local")
	enableMetrics(t, cfgPath, busy.Addr().String())
	file := writeRecording(t, dir, execevent.KindProjectSucceeded, nil)

	err = replay(t, cfgPath, file)
	require.Error(t, err)
	assert.True(t, dberrors.HasCategory(err, dberrors.CategoryRuntime))
	assert.Equal(t, 12, dberrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
	assert.NoFileExists(t, filepath.Join(dir, "reports", "index.html"))
}

func TestBuildChainSharesReporterInstances(t *testing.T) {
	cfgPath, _ := writeConfig(t, "local")
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	names, byName, err := cfg.Registrations()
	require.NoError(t, err)
	chain, err := buildChain(cfg, names, byName, slog.Default(), nil)
	require.NoError(t, err)

	coreReporters, ok := chain.Reporters(names[0])
	require.True(t, ok)
	apiReporters, ok := chain.Reporters(names[1])
	require.True(t, ok)
	require.Len(t, coreReporters, 2)
	require.Len(t, apiReporters, 1)
	assert.Same(t, coreReporters[1], apiReporters[0])
}

func TestBuildChainUnknownReporter(t *testing.T) {
	cfg := config.Example()
	cfg.Modules[0].Reporters = []string{"carrier-pigeon"}
	names, byName, err := cfg.Registrations()
	require.NoError(t, err)

	_, err = buildChain(cfg, names, byName, slog.Default(), nil)
	require.Error(t, err)
	assert.True(t, dberrors.HasCategory(err, dberrors.CategoryConfig))
}

func TestInitWritesLoadableConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, (&InitCmd{Output: dir}).Run(&Global{}, &CLI{}))

	cfg, err := config.Load(filepath.Join(dir, "buildbridge.yaml"))
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Modules)
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, slogLevel(config.LogLevelDebug))
	assert.Equal(t, slog.LevelWarn, slogLevel(config.LogLevelWarn))
	assert.Equal(t, slog.LevelInfo, slogLevel(""))
}
