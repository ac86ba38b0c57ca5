package client

import (
	"github.com/shvgo/shvclient/pkg/rpc"
)

// Method names of the built-in `.app` and `.device` nodes.
const (
	MethShvVersionMajor = "shvVersionMajor"
	MethShvVersionMinor = "shvVersionMinor"
	MethName            = "name"
	MethVersion         = "version"
	MethSerialNumber    = "serialNumber"
	MethPing            = "ping"
)

// The SHV protocol version spoken by this client.
const (
	shvVersionMajor = 3
	shvVersionMinor = 0
)

// DotAppNode describes the mandatory `.app` mount of every client.
type DotAppNode struct {
	AppName string
}

// NewDotAppNode creates the `.app` node descriptor.
func NewDotAppNode(appName string) DotAppNode {
	return DotAppNode{AppName: appName}
}

var appMethods = []*rpc.MetaMethod{
	{Name: MethShvVersionMajor, Flags: rpc.FlagIsGetter, Access: rpc.AccessBrowse},
	{Name: MethShvVersionMinor, Flags: rpc.FlagIsGetter, Access: rpc.AccessBrowse},
	{Name: MethName, Flags: rpc.FlagIsGetter, Access: rpc.AccessBrowse},
	{Name: MethPing, Access: rpc.AccessBrowse},
}

// node renders the descriptor as a constant node.
func (n DotAppNode) node() (methods []*rpc.MetaMethod, values map[string]rpc.Value) {
	return appMethods, map[string]rpc.Value{
		MethShvVersionMajor: rpc.Int(shvVersionMajor),
		MethShvVersionMinor: rpc.Int(shvVersionMinor),
		MethName:            rpc.String(n.AppName),
		// ping answers null; no value entry needed
	}
}

// DotDeviceNode describes the `.device` mount of device-flavored clients.
type DotDeviceNode struct {
	DeviceName   string
	Version      string
	SerialNumber *string
}

// NewDotDeviceNode creates the `.device` node descriptor.
func NewDotDeviceNode(deviceName, version string, serialNumber *string) DotDeviceNode {
	return DotDeviceNode{DeviceName: deviceName, Version: version, SerialNumber: serialNumber}
}

var deviceMethods = []*rpc.MetaMethod{
	{Name: MethName, Flags: rpc.FlagIsGetter, Access: rpc.AccessBrowse},
	{Name: MethVersion, Flags: rpc.FlagIsGetter, Access: rpc.AccessBrowse},
	{Name: MethSerialNumber, Flags: rpc.FlagIsGetter, Access: rpc.AccessBrowse},
}

func (n DotDeviceNode) node() (methods []*rpc.MetaMethod, values map[string]rpc.Value) {
	serial := rpc.Null()
	if n.SerialNumber != nil {
		serial = rpc.String(*n.SerialNumber)
	}
	return deviceMethods, map[string]rpc.Value{
		MethName:         rpc.String(n.DeviceName),
		MethVersion:      rpc.String(n.Version),
		MethSerialNumber: serial,
	}
}
