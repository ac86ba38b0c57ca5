package client

import (
	"context"
	"sort"
	"strings"

	"github.com/shvgo/shvclient/internal/logger"
	"github.com/shvgo/shvclient/pkg/rpc"
)

// Well-known method and signal names.
const (
	MethDir = "dir"
	MethLs  = "ls"
	MethGet = "get"
	MethSet = "set"
	SigChng = "chng"
)

// Introspection methods implicitly exposed by every node.
var (
	DirMetaMethod = &rpc.MetaMethod{
		Name:   MethDir,
		Access: rpc.AccessBrowse,
		Param:  "DirParam",
		Result: "DirResult",
	}
	LsMetaMethod = &rpc.MetaMethod{
		Name:   MethLs,
		Access: rpc.AccessBrowse,
		Param:  "LsParam",
		Result: "LsResult",
	}
)

// PropertyMethods is the conventional method set of a value property node.
var PropertyMethods = []*rpc.MetaMethod{
	{Name: MethGet, Flags: rpc.FlagIsGetter, Access: rpc.AccessRead},
	{Name: MethSet, Flags: rpc.FlagIsSetter, Access: rpc.AccessWrite},
	{Name: SigChng, Flags: rpc.FlagIsSignal, Access: rpc.AccessRead},
}

// RequestHandler serves one request dispatched to a node. The handler is
// responsible for sending exactly one response via sender.SendMessage; the
// loop does not reply on its behalf.
type RequestHandler[T any] func(ctx context.Context, request *rpc.Message, sender CommandSender, data *T)

// MethodsGetter resolves the method list of a dynamic node's sub-path.
// Returning nil means no node exists at that sub-path.
type MethodsGetter[T any] func(ctx context.Context, path string, data *T) []*rpc.MetaMethod

// Route binds a set of method names of a fixed node to one handler.
type Route[T any] struct {
	methods map[string]struct{}
	handler RequestHandler[T]
}

// NewRoute creates a route for the given method names.
func NewRoute[T any](methods []string, handler RequestHandler[T]) Route[T] {
	set := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		set[m] = struct{}{}
	}
	return Route[T]{methods: set, handler: handler}
}

type nodeKind int

const (
	nodeConstant nodeKind = iota
	nodeFixed
	nodeDynamic
)

// ClientNode is one mounted node: a tagged variant over the three node
// flavors. Nodes are immutable once mounted.
type ClientNode[T any] struct {
	kind nodeKind

	// constant
	values map[string]rpc.Value

	// constant and fixed
	methods []*rpc.MetaMethod

	// fixed
	routes []Route[T]

	// dynamic
	getter  MethodsGetter[T]
	handler RequestHandler[T]
}

// ConstantNode creates a node answering each declared getter method with a
// fixed value. Methods without an entry in values answer null.
func ConstantNode[T any](methods []*rpc.MetaMethod, values map[string]rpc.Value) *ClientNode[T] {
	return &ClientNode[T]{kind: nodeConstant, methods: methods, values: values}
}

// FixedNode creates a node with an enumerated method list and routes
// binding method names to handlers.
func FixedNode[T any](methods []*rpc.MetaMethod, routes []Route[T]) *ClientNode[T] {
	return &ClientNode[T]{kind: nodeFixed, methods: methods, routes: routes}
}

// DynamicNode creates a node whose methods and children are resolved per
// request by getter and served by a single handler.
func DynamicNode[T any](getter MethodsGetter[T], handler RequestHandler[T]) *ClientNode[T] {
	return &ClientNode[T]{kind: nodeDynamic, getter: getter, handler: handler}
}

// resolveMethod finds a method by name among the implicit introspection
// methods and the declared list.
func resolveMethod(declared []*rpc.MetaMethod, name string) *rpc.MetaMethod {
	switch name {
	case MethDir:
		return DirMetaMethod
	case MethLs:
		return LsMetaMethod
	}
	for _, mm := range declared {
		if mm.Name == name {
			return mm
		}
	}
	return nil
}

// dirResult renders the `dir` response: the full descriptor list, or a
// single descriptor (null when unknown) when the param selects one method.
func dirResult(declared []*rpc.MetaMethod, param rpc.Value) rpc.Value {
	all := make([]*rpc.MetaMethod, 0, len(declared)+2)
	all = append(all, DirMetaMethod, LsMetaMethod)
	all = append(all, declared...)

	if param.Kind() == rpc.KindString {
		for _, mm := range all {
			if mm.Name == param.AsString() {
				return mm.DirMap()
			}
		}
		return rpc.Null()
	}

	maps := make([]rpc.Value, 0, len(all))
	for _, mm := range all {
		maps = append(maps, mm.DirMap())
	}
	return rpc.List(maps...)
}

// lsResult renders the `ls` response from a child list: existence test when
// the param is a string, the sorted child list otherwise.
func lsResult(children []string, param rpc.Value) rpc.Value {
	if param.Kind() == rpc.KindString {
		for _, child := range children {
			if child == param.AsString() {
				return rpc.Bool(true)
			}
		}
		return rpc.Bool(false)
	}
	items := make([]rpc.Value, 0, len(children))
	for _, child := range children {
		items = append(items, rpc.String(child))
	}
	return rpc.List(items...)
}

// processRequest dispatches one request to this node. The request's path has
// already been rewritten to the node-local sub-path. It runs outside the
// client loop; any response goes through sender.
func (n *ClientNode[T]) processRequest(ctx context.Context, request *rpc.Message, mountPath string, sender CommandSender, data *T) {
	switch n.kind {
	case nodeConstant, nodeFixed:
		n.processStaticRequest(ctx, request, sender, data)
	case nodeDynamic:
		n.processDynamicRequest(ctx, request, sender, data)
	}
}

// processStaticRequest serves constant and fixed nodes, whose method lists
// are known without consulting the node.
func (n *ClientNode[T]) processStaticRequest(ctx context.Context, request *rpc.Message, sender CommandSender, data *T) {
	if request.ShvPath() != "" {
		replyError(request, sender, rpc.NewError(rpc.ErrMethodNotFound,
			"Method %q does not exist on path %q", request.Method(), request.ShvPath()))
		return
	}

	method := request.Method()
	mm := resolveMethod(n.methods, method)
	if mm == nil {
		replyError(request, sender, rpc.NewError(rpc.ErrMethodNotFound, "Unknown method %q", method))
		return
	}
	if level, ok := request.AccessLevel(); !ok || level < mm.Access {
		replyError(request, sender, rpc.NewError(rpc.ErrPermissionDenied,
			"Insufficient access level for method %q", method))
		return
	}

	switch method {
	case MethDir:
		replyResult(request, sender, dirResult(n.methods, request.Param()))
		return
	case MethLs:
		if route := n.findRoute(MethLs); route != nil {
			route.handler(ctx, request, sender, data)
			return
		}
		// Leaf node: no children.
		replyResult(request, sender, lsResult(nil, request.Param()))
		return
	}

	if n.kind == nodeConstant {
		replyResult(request, sender, n.values[method])
		return
	}

	if route := n.findRoute(method); route != nil {
		route.handler(ctx, request, sender, data)
		return
	}
	replyError(request, sender, rpc.NewError(rpc.ErrMethodNotFound, "No route for method %q", method))
}

// processDynamicRequest serves dynamic nodes: the method list is fetched
// from the getter for every request, including introspection.
func (n *ClientNode[T]) processDynamicRequest(ctx context.Context, request *rpc.Message, sender CommandSender, data *T) {
	methods := n.getter(ctx, request.ShvPath(), data)
	if methods == nil {
		replyError(request, sender, rpc.NewError(rpc.ErrMethodNotFound,
			"Method %q does not exist on path %q", request.Method(), request.ShvPath()))
		return
	}

	method := request.Method()
	mm := resolveMethod(methods, method)
	if mm == nil {
		replyError(request, sender, rpc.NewError(rpc.ErrMethodNotFound, "Unknown method %q", method))
		return
	}
	level, ok := request.AccessLevel()
	if !ok {
		replyError(request, sender, rpc.NewError(rpc.ErrInvalidRequest,
			"Request to method %q without access level", method))
		return
	}
	if level < mm.Access {
		replyError(request, sender, rpc.NewError(rpc.ErrPermissionDenied,
			"Insufficient access level for method %q", method))
		return
	}

	if method == MethDir {
		replyResult(request, sender, dirResult(methods, request.Param()))
		return
	}
	n.handler(ctx, request, sender, data)
}

func (n *ClientNode[T]) findRoute(method string) *Route[T] {
	for i := range n.routes {
		if _, ok := n.routes[i].methods[method]; ok {
			return &n.routes[i]
		}
	}
	return nil
}

func replyResult(request *rpc.Message, sender CommandSender, result rpc.Value) {
	resp, err := request.PrepareResponse()
	if err != nil {
		logger.Warn("Cannot prepare response", logger.KeyError, err)
		return
	}
	resp.SetResult(result)
	if err := sender.SendMessage(resp); err != nil {
		logger.Error("Cannot send response", logger.KeyError, err)
	}
}

func replyError(request *rpc.Message, sender CommandSender, rpcErr *rpc.Error) {
	resp, err := request.PrepareResponse()
	if err != nil {
		logger.Warn("Cannot prepare response", logger.KeyError, err)
		return
	}
	resp.SetError(rpcErr)
	if err := sender.SendMessage(resp); err != nil {
		logger.Error("Cannot send response", logger.KeyError, err)
	}
}

// findLongestPrefix finds the mount whose path is the longest prefix of
// shvPath on segment boundaries. The second return value is the remaining
// node-local sub-path.
func findLongestPrefix[T any](mounts map[string]*ClientNode[T], shvPath string) (mount, rest string, found bool) {
	prefix := shvPath
	for {
		if _, ok := mounts[prefix]; ok && prefix != "" {
			rest = strings.TrimPrefix(strings.TrimPrefix(shvPath, prefix), "/")
			return prefix, rest, true
		}
		idx := strings.LastIndexByte(prefix, '/')
		if idx < 0 {
			return "", "", false
		}
		prefix = prefix[:idx]
	}
}

// childrenOnPath collects the immediate child segments of mounts strictly
// under path. found is false when no mount lives under path.
func childrenOnPath[T any](mounts map[string]*ClientNode[T], path string) (children []string, found bool) {
	seen := make(map[string]struct{})
	for mountPath := range mounts {
		var rest string
		switch {
		case path == "":
			rest = mountPath
		case strings.HasPrefix(mountPath, path+"/"):
			rest = mountPath[len(path)+1:]
		default:
			continue
		}
		segment, _, _ := strings.Cut(rest, "/")
		if segment == "" {
			continue
		}
		if _, dup := seen[segment]; !dup {
			seen[segment] = struct{}{}
			children = append(children, segment)
		}
	}
	if len(children) == 0 {
		return nil, false
	}
	sort.Strings(children)
	return children, true
}

// localDirLsResult is the outcome of the loop's dir/ls pre-processing.
type localDirLsResult struct {
	result rpc.Value
	err    *rpc.Error
}

// processLocalDirLs answers dir and ls requests that address the gaps of
// the mount tree: paths which are not mounts themselves but ancestors of
// one or more mounts. dir at or under a mount, and ls on a mount point or on
// a path under a mount with no mount beneath it, return nil and descend the
// tree; dir/ls on paths that are neither at, under, nor above a mount
// produce MethodNotFound without engaging any node.
func processLocalDirLs[T any](mounts map[string]*ClientNode[T], frame *rpc.Frame, param rpc.Value) *localDirLsResult {
	method := frame.Method()
	if method != MethDir && method != MethLs {
		return nil
	}
	shvPath := frame.ShvPath()
	_, rest, mounted := findLongestPrefix(mounts, shvPath)
	isMountPoint := mounted && rest == ""
	children, hasChildren := childrenOnPath(mounts, shvPath)

	if method == MethDir {
		if mounted {
			return nil // the node serves its own dir
		}
		if !hasChildren {
			return &localDirLsResult{err: rpc.NewError(rpc.ErrMethodNotFound,
				"Invalid shv path %q", shvPath)}
		}
		return &localDirLsResult{result: dirResult(nil, param)}
	}

	// ls
	if hasChildren && !isMountPoint {
		return &localDirLsResult{result: lsResult(children, param)}
	}
	if mounted {
		return nil // the node serves its own ls
	}
	return &localDirLsResult{err: rpc.NewError(rpc.ErrMethodNotFound,
		"Invalid shv path %q", shvPath)}
}
