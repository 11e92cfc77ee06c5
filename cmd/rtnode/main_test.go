package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/blockberries/rtcore/config"
	"github.com/blockberries/rtcore/example/tester"
	"github.com/blockberries/rtcore/server"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestChainSpecRoundTrip(t *testing.T) {
	out := run(t, "chain-spec")
	g, err := tester.ParseGenesis([]byte(out))
	require.NoError(t, err)
	require.Equal(t, tester.DevGenesis(), g)

	path := filepath.Join(t.TempDir(), "genesis.yaml")
	run(t, "chain-spec", "-o", path)
	g, err = tester.LoadGenesis(path)
	require.NoError(t, err)
	require.Equal(t, tester.DevGenesis(), g)
}

func TestKeyGenerateIsDeterministicForPhrase(t *testing.T) {
	phrase := "bottom drive obey lake curtain smoke basket hold race lonely fit walk"
	a := run(t, "key", "generate", "--mnemonic", phrase)
	b := run(t, "key", "generate", "--mnemonic", phrase)
	require.Equal(t, a, b)
	require.Contains(t, a, "babe: ")
	require.Contains(t, a, "gran: ")

	fresh := run(t, "key", "generate")
	require.True(t, strings.HasPrefix(fresh, "mnemonic: "))
	require.NotEqual(t, a, fresh)
}

func TestNodeGraph(t *testing.T) {
	cfg := config.Default()
	cfg.GRPC.Address = "127.0.0.1:0"
	cfg.Metrics.Address = "127.0.0.1:0"
	cfg.Log.Level = "warn"
	require.NoError(t, fx.ValidateApp(nodeOptions(cfg)))

	var srv *server.Server
	app := fxtest.New(t, nodeOptions(cfg), fx.Populate(&srv))
	app.RequireStart()
	defer app.RequireStop()

	g, err := srv.Genesis(context.Background())
	require.NoError(t, err)
	require.Zero(t, g.Number)
}
