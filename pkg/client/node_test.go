package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shvgo/shvclient/internal/chanutil"
	"github.com/shvgo/shvclient/pkg/rpc"
)

func testMounts() map[string]*ClientNode[struct{}] {
	noop := func(ctx context.Context, request *rpc.Message, sender CommandSender, data *struct{}) {}
	return map[string]*ClientNode[struct{}]{
		".app":          FixedNode[struct{}](nil, nil),
		"static":        FixedNode(PropertyMethods, []Route[struct{}]{NewRoute([]string{MethGet, MethSet}, noop)}),
		"dynamic/sync":  FixedNode[struct{}](nil, nil),
		"dynamic/async": FixedNode[struct{}](nil, nil),
	}
}

func TestFindLongestPrefix(t *testing.T) {
	mounts := testMounts()

	tests := []struct {
		path      string
		wantMount string
		wantRest  string
		wantFound bool
	}{
		{"static", "static", "", true},
		{"static/none", "static", "none", true},
		{"static/a/b", "static", "a/b", true},
		{"dynamic/sync", "dynamic/sync", "", true},
		{"dynamic/sync/sub", "dynamic/sync", "sub", true},
		{"dynamic", "", "", false},
		{"dynamic/a", "", "", false},
		{"statics", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		mount, rest, found := findLongestPrefix(mounts, tt.path)
		assert.Equal(t, tt.wantFound, found, "path %q", tt.path)
		assert.Equal(t, tt.wantMount, mount, "path %q", tt.path)
		assert.Equal(t, tt.wantRest, rest, "path %q", tt.path)
	}
}

func TestChildrenOnPath(t *testing.T) {
	mounts := testMounts()

	children, found := childrenOnPath(mounts, "")
	require.True(t, found)
	assert.Equal(t, []string{".app", "dynamic", "static"}, children)

	children, found = childrenOnPath(mounts, "dynamic")
	require.True(t, found)
	assert.Equal(t, []string{"async", "sync"}, children)

	_, found = childrenOnPath(mounts, "static")
	assert.False(t, found)

	_, found = childrenOnPath(mounts, "nothing")
	assert.False(t, found)
}

func localDirLs(t *testing.T, path, method string, param rpc.Value) *localDirLsResult {
	t.Helper()
	request := rpc.NewRequest(path, method, param)
	frame, err := request.ToFrame()
	require.NoError(t, err)
	return processLocalDirLs(testMounts(), frame, param)
}

func TestProcessLocalDirLs(t *testing.T) {
	// Intermediate path: served locally.
	res := localDirLs(t, "dynamic", MethLs, rpc.Null())
	require.NotNil(t, res)
	require.Nil(t, res.err)
	assert.True(t, res.result.Equal(rpc.List(rpc.String("async"), rpc.String("sync"))))

	res = localDirLs(t, "dynamic", MethDir, rpc.Null())
	require.NotNil(t, res)
	require.Nil(t, res.err)
	assert.Len(t, res.result.AsList(), 2, "intermediate nodes expose only dir and ls")

	// ls child-existence argument.
	res = localDirLs(t, "dynamic", MethLs, rpc.String("sync"))
	require.NotNil(t, res)
	assert.True(t, res.result.Equal(rpc.Bool(true)))

	res = localDirLs(t, "dynamic", MethLs, rpc.String("nope"))
	require.NotNil(t, res)
	assert.True(t, res.result.Equal(rpc.Bool(false)))

	// Root listing.
	res = localDirLs(t, "", MethLs, rpc.Null())
	require.NotNil(t, res)
	assert.True(t, res.result.Equal(rpc.List(rpc.String(".app"), rpc.String("dynamic"), rpc.String("static"))))

	// Mounted paths defer to their node.
	assert.Nil(t, localDirLs(t, "static", MethDir, rpc.Null()))
	assert.Nil(t, localDirLs(t, "static", MethLs, rpc.Null()))
	assert.Nil(t, localDirLs(t, "static/none", MethDir, rpc.Null()))

	// Paths with no mount beneath fail locally.
	res = localDirLs(t, "dynamic/a", MethDir, rpc.Null())
	require.NotNil(t, res)
	require.NotNil(t, res.err)
	assert.Equal(t, rpc.ErrMethodNotFound, res.err.Code)

	// Non-introspection methods are never handled locally.
	assert.Nil(t, localDirLs(t, "dynamic", MethGet, rpc.Null()))
}

// captureSender returns a command sender whose sent messages can be awaited.
func captureSender(t *testing.T) (CommandSender, func() *rpc.Message) {
	t.Helper()
	commands := chanutil.NewUnbounded[ClientCommand]()
	t.Cleanup(commands.Close)
	sender := CommandSender{commands: commands}
	next := func() *rpc.Message {
		select {
		case command := <-commands.Out():
			send, ok := command.(sendMessageCommand)
			require.True(t, ok, "node dispatch should only send messages")
			return send.message
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for a node response")
			return nil
		}
	}
	return sender, next
}

func dispatchToNode[T any](node *ClientNode[T], request *rpc.Message, sender CommandSender, data *T) {
	node.processRequest(context.Background(), request, "test", sender, data)
}

func TestConstantNode_AnswersGettersFromValues(t *testing.T) {
	node := ConstantNode[struct{}](
		[]*rpc.MetaMethod{
			{Name: MethGet, Flags: rpc.FlagIsGetter, Access: rpc.AccessBrowse},
			{Name: MethPing, Access: rpc.AccessBrowse},
		},
		map[string]rpc.Value{MethGet: rpc.Int(42)},
	)
	sender, next := captureSender(t)

	request := rpc.NewRequest("", MethGet, rpc.Null())
	request.SetAccessLevel(rpc.AccessBrowse)
	dispatchToNode(node, request, sender, nil)
	response := next()
	result, ok := response.Result()
	require.True(t, ok)
	assert.True(t, result.Equal(rpc.Int(42)))

	// Methods without a value answer null.
	request = rpc.NewRequest("", MethPing, rpc.Null())
	request.SetAccessLevel(rpc.AccessBrowse)
	dispatchToNode(node, request, sender, nil)
	result, ok = next().Result()
	require.True(t, ok)
	assert.True(t, result.IsNull())
}

func TestFixedNode_DirListsDeclaredMethods(t *testing.T) {
	node := FixedNode[struct{}](PropertyMethods, nil)
	sender, next := captureSender(t)

	request := rpc.NewRequest("", MethDir, rpc.Null())
	request.SetAccessLevel(rpc.AccessBrowse)
	dispatchToNode(node, request, sender, nil)

	result, ok := next().Result()
	require.True(t, ok)
	require.Len(t, result.AsList(), 5, "dir, ls plus the three property methods")
	assert.Equal(t, MethDir, result.AsList()[0].AsMap()["name"].AsString())

	// dir with a method-name argument returns the single descriptor.
	request = rpc.NewRequest("", MethDir, rpc.String(MethSet))
	request.SetAccessLevel(rpc.AccessBrowse)
	dispatchToNode(node, request, sender, nil)
	result, ok = next().Result()
	require.True(t, ok)
	assert.Equal(t, MethSet, result.AsMap()["name"].AsString())

	// dir for an unknown method returns null.
	request = rpc.NewRequest("", MethDir, rpc.String("bogus"))
	request.SetAccessLevel(rpc.AccessBrowse)
	dispatchToNode(node, request, sender, nil)
	result, ok = next().Result()
	require.True(t, ok)
	assert.True(t, result.IsNull())
}

func TestFixedNode_LsOnLeafIsEmpty(t *testing.T) {
	node := FixedNode[struct{}](PropertyMethods, nil)
	sender, next := captureSender(t)

	request := rpc.NewRequest("", MethLs, rpc.Null())
	request.SetAccessLevel(rpc.AccessBrowse)
	dispatchToNode(node, request, sender, nil)
	result, ok := next().Result()
	require.True(t, ok)
	assert.True(t, result.Equal(rpc.List()))

	request = rpc.NewRequest("", MethLs, rpc.String("child"))
	request.SetAccessLevel(rpc.AccessBrowse)
	dispatchToNode(node, request, sender, nil)
	result, ok = next().Result()
	require.True(t, ok)
	assert.True(t, result.Equal(rpc.Bool(false)))
}

func TestFixedNode_RejectsSubPath(t *testing.T) {
	node := FixedNode[struct{}](PropertyMethods, nil)
	sender, next := captureSender(t)

	request := rpc.NewRequest("none", MethDir, rpc.Null())
	request.SetAccessLevel(rpc.AccessBrowse)
	dispatchToNode(node, request, sender, nil)

	rpcErr := next().Err()
	require.NotNil(t, rpcErr)
	assert.Equal(t, rpc.ErrMethodNotFound, rpcErr.Code)
}

func TestDynamicNode_GetterControlsExistence(t *testing.T) {
	getter := func(ctx context.Context, path string, data *struct{}) []*rpc.MetaMethod {
		if path == "" {
			return PropertyMethods
		}
		return nil
	}
	handled := make(chan string, 1)
	handler := func(ctx context.Context, request *rpc.Message, sender CommandSender, data *struct{}) {
		handled <- request.Method()
		replyResult(request, sender, rpc.String(request.Method()))
	}
	node := DynamicNode(getter, handler)
	sender, next := captureSender(t)

	// Unknown sub-path.
	request := rpc.NewRequest("a", MethDir, rpc.Null())
	request.SetAccessLevel(rpc.AccessBrowse)
	dispatchToNode(node, request, sender, nil)
	rpcErr := next().Err()
	require.NotNil(t, rpcErr)
	assert.Equal(t, rpc.ErrMethodNotFound, rpcErr.Code)

	// dir uses the fresh method list from the getter.
	request = rpc.NewRequest("", MethDir, rpc.Null())
	request.SetAccessLevel(rpc.AccessBrowse)
	dispatchToNode(node, request, sender, nil)
	result, ok := next().Result()
	require.True(t, ok)
	assert.Len(t, result.AsList(), 5)

	// Declared methods reach the handler.
	request = rpc.NewRequest("", MethGet, rpc.Null())
	request.SetAccessLevel(rpc.AccessRead)
	dispatchToNode(node, request, sender, nil)
	result, ok = next().Result()
	require.True(t, ok)
	assert.Equal(t, MethGet, result.AsString())
	assert.Equal(t, MethGet, <-handled)
}

func TestDynamicNode_MissingAccessLevelIsInvalidRequest(t *testing.T) {
	getter := func(ctx context.Context, path string, data *struct{}) []*rpc.MetaMethod {
		return PropertyMethods
	}
	handler := func(ctx context.Context, request *rpc.Message, sender CommandSender, data *struct{}) {
		t.Error("handler must not run without an access level")
	}
	node := DynamicNode(getter, handler)
	sender, next := captureSender(t)

	request := rpc.NewRequest("", MethDir, rpc.Null())
	dispatchToNode(node, request, sender, nil)

	rpcErr := next().Err()
	require.NotNil(t, rpcErr)
	assert.Equal(t, rpc.ErrInvalidRequest, rpcErr.Code)
}

func TestAccessEnforcement_HandlerNeverRunsWhenDenied(t *testing.T) {
	handler := func(ctx context.Context, request *rpc.Message, sender CommandSender, data *struct{}) {
		t.Error("handler must not run with insufficient access")
	}
	node := FixedNode(PropertyMethods, []Route[struct{}]{NewRoute([]string{MethGet, MethSet}, handler)})
	sender, next := captureSender(t)

	request := rpc.NewRequest("", MethSet, rpc.Null())
	request.SetAccessLevel(rpc.AccessBrowse)
	dispatchToNode(node, request, sender, nil)

	rpcErr := next().Err()
	require.NotNil(t, rpcErr)
	assert.Equal(t, rpc.ErrPermissionDenied, rpcErr.Code)
}
