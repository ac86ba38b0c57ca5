package rpc

// Flag is a bitfield describing properties of a meta-method.
type Flag uint32

const (
	FlagNone     Flag = 0
	FlagIsSignal Flag = 1 << 0
	FlagIsGetter Flag = 1 << 1
	FlagIsSetter Flag = 1 << 2
)

// MetaMethod is the static descriptor of one RPC method on a node.
// Within a node, methods are identified by name.
type MetaMethod struct {
	Name        string
	Flags       Flag
	Access      AccessLevel
	Param       string
	Result      string
	Description string
}

// DirMap renders the descriptor in the map shape returned by `dir`.
func (m *MetaMethod) DirMap() Value {
	return Map(map[string]Value{
		"name":        String(m.Name),
		"flags":       UInt(uint64(m.Flags)),
		"access":      String(m.Access.String()),
		"param":       String(m.Param),
		"result":      String(m.Result),
		"description": String(m.Description),
	})
}
