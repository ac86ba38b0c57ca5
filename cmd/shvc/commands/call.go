package commands

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/shvgo/shvclient/pkg/client"
	"github.com/shvgo/shvclient/pkg/rpc"
)

var callCmd = &cobra.Command{
	Use:   "call PATH METHOD [PARAM]",
	Short: "Call an RPC method and print the result",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		param := rpc.Null()
		if len(args) == 3 {
			param = parseParam(args[2])
		}

		return runOneShot(cfg, func(ctx context.Context, sender client.CommandSender) error {
			response, err := callMethod(ctx, sender, args[0], args[1], param)
			if err != nil {
				return err
			}
			result, _ := response.Result()
			fmt.Println(result)
			return nil
		})
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls PATH",
	Short: "List the children of a node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		return runOneShot(cfg, func(ctx context.Context, sender client.CommandSender) error {
			response, err := callMethod(ctx, sender, args[0], client.MethLs, rpc.Null())
			if err != nil {
				return err
			}
			result, _ := response.Result()
			for _, child := range result.AsList() {
				fmt.Println(child.AsString())
			}
			return nil
		})
	},
}

var dirCmd = &cobra.Command{
	Use:   "dir PATH",
	Short: "List the methods of a node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		return runOneShot(cfg, func(ctx context.Context, sender client.CommandSender) error {
			response, err := callMethod(ctx, sender, args[0], client.MethDir, rpc.Null())
			if err != nil {
				return err
			}
			result, _ := response.Result()
			printMethodTable(result)
			return nil
		})
	},
}

// printMethodTable renders a dir result as a table.
func printMethodTable(result rpc.Value) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Name", "Flags", "Access", "Param", "Result", "Description"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)

	rows := result.AsList()
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].AsMap()["name"].AsString() < rows[j].AsMap()["name"].AsString()
	})
	for _, row := range rows {
		m := row.AsMap()
		table.Append([]string{
			m["name"].AsString(),
			flagString(rpc.Flag(m["flags"].AsUInt())),
			m["access"].AsString(),
			m["param"].AsString(),
			m["result"].AsString(),
			m["description"].AsString(),
		})
	}
	table.Render()
}

func flagString(flags rpc.Flag) string {
	out := ""
	if flags&rpc.FlagIsGetter != 0 {
		out += "G"
	}
	if flags&rpc.FlagIsSetter != 0 {
		out += "S"
	}
	if flags&rpc.FlagIsSignal != 0 {
		out += "N"
	}
	return out
}
